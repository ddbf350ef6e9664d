package infra

import (
	"context"
	"testing"
	"time"

	"deal-gateway/gateway/domain"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestWindow() (*SlidingWindow, *manualClock) {
	clk := &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewSlidingWindow(60*time.Second, WithClock(clk.Now), WithCleanupEvery(0)), clk
}

func TestSlidingWindow_CeilingWithinWindow(t *testing.T) {
	s, clk := newTestWindow()

	for i := 0; i < 3; i++ {
		if !s.Check("x", 3) {
			t.Fatalf("expected call %d to be allowed", i+1)
		}
		clk.Advance(time.Second)
	}
	if s.Check("x", 3) {
		t.Fatalf("expected 4th call within window to be denied")
	}

	// 61s após a primeira chamada
	clk.Advance(58 * time.Second)
	if !s.Check("x", 3) {
		t.Fatalf("expected call 61s after the first to be allowed")
	}
}

func TestSlidingWindow_DeniedAttemptsAreNotRecorded(t *testing.T) {
	s, clk := newTestWindow()

	s.Check("x", 1)
	for i := 0; i < 10; i++ {
		clk.Advance(time.Second)
		s.Check("x", 1)
	}
	// só a primeira foi registrada; ela sai da janela em t0+60s
	clk.Advance(50 * time.Second)
	if !s.Check("x", 1) {
		t.Fatalf("expected denied attempts not to extend the window")
	}
}

func TestSlidingWindow_ActionsAreIndependent(t *testing.T) {
	s, _ := newTestWindow()

	if !s.Check(domain.ActionSearch, 1) {
		t.Fatalf("expected search allowed")
	}
	if !s.Check(domain.ActionWishlist, 1) {
		t.Fatalf("expected wishlist allowed (own window)")
	}
	if s.Check(domain.ActionSearch, 1) {
		t.Fatalf("expected second search denied")
	}
}

func TestSlidingWindow_RetryAfter(t *testing.T) {
	s, clk := newTestWindow()

	s.Check("x", 2)
	clk.Advance(10 * time.Second)
	s.Check("x", 2)
	clk.Advance(5 * time.Second)

	if got := s.RetryAfter("x", 2); got != 45*time.Second {
		t.Fatalf("expected RetryAfter=45s, got %s", got)
	}
	if got := s.RetryAfter("x", 3); got != 0 {
		t.Fatalf("expected RetryAfter=0 below ceiling, got %s", got)
	}
}

func TestSlidingWindow_CleanupDropsIdleActions(t *testing.T) {
	s, clk := newTestWindow()

	s.Check("a", 5)
	s.Check("b", 5)
	clk.Advance(30 * time.Second)
	s.Check("b", 5)
	clk.Advance(31 * time.Second)

	s.Cleanup()
	if got := s.Actions(); got != 1 {
		t.Fatalf("expected only b to survive cleanup, got %d actions", got)
	}
	if got := s.Count("b"); got != 1 {
		t.Fatalf("expected 1 stamp for b, got %d", got)
	}
}

func TestSlidingWindow_JanitorStopsWithContext(t *testing.T) {
	s := NewSlidingWindow(time.Millisecond, WithCleanupEvery(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	s.StartJanitor(ctx)

	s.Check("a", 1)
	deadline := time.Now().Add(time.Second)
	for s.Actions() != 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if s.Actions() != 0 {
		t.Fatalf("expected janitor to clean idle action")
	}
}
