package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-gateway/gateway/domain"
	"deal-gateway/gateway/infra"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTransport conta chamadas por URL e responde {"url": ...}.
type fakeTransport struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeTransport) Get(ctx context.Context, url string, _ domain.Options) (domain.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return domain.Response{Status: 200, Body: []byte(fmt.Sprintf(`{"url":%q}`, url))}, nil
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("blocked") }
func (failingKV) Set(context.Context, string, string) error   { return errors.New("blocked") }

func newTestGateway(tr domain.Transport, clk *testClock, opts ...Option) *Gateway {
	opts = append([]Option{WithClock(clk.Now), WithLocation(time.UTC)}, opts...)
	return New(tr, opts...)
}

func TestGateway_CacheHitAvoidsNetwork(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	g := newTestGateway(tr, newTestClock())

	v1, err := g.FetchJSON(ctx, "https://deals.example/search", domain.Options{"q": "tv"})
	require.NoError(t, err)
	v2, err := g.FetchJSON(ctx, "https://deals.example/search", domain.Options{"q": "tv"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Equal(t, v1, v2)
}

func TestGateway_EscapedSlashIsDistinctResource(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	g := newTestGateway(tr, newTestClock())

	v1, err := g.FetchJSON(ctx, "https://deals.example/deals/x%2Flink", nil)
	require.NoError(t, err)
	v2, err := g.FetchJSON(ctx, "https://deals.example/deals/x/link", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), tr.calls.Load())
	assert.Equal(t, map[string]any{"url": "https://deals.example/deals/x%2Flink"}, v1)
	assert.Equal(t, map[string]any{"url": "https://deals.example/deals/x/link"}, v2)
}

func TestGateway_CacheExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	clk := newTestClock()
	g := newTestGateway(tr, clk)

	_, err := g.FetchJSON(ctx, "https://deals.example/search", nil)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Millisecond)
	assert.False(t, g.Cached("https://deals.example/search", nil))

	_, err = g.FetchJSON(ctx, "https://deals.example/search", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), tr.calls.Load())
}

func TestGateway_ConcurrentIdenticalCallsDeduplicated(t *testing.T) {
	tr := &fakeTransport{gate: make(chan struct{})}
	g := newTestGateway(tr, newTestClock())

	var wg sync.WaitGroup
	out := make([]any, 2)
	for i := range out {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.FetchJSON(context.Background(), "https://deals.example/hot", domain.Options{"a": 1, "b": 2})
			assert.NoError(t, err)
			out[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(tr.gate)
	wg.Wait()

	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Equal(t, out[0], out[1])
}

func TestGateway_FIFOEvictionAt51Entries(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	g := newTestGateway(tr, newTestClock())

	url := func(i int) string { return fmt.Sprintf("https://deals.example/item/%d", i) }
	for i := 0; i < 51; i++ {
		_, err := g.FetchJSON(ctx, url(i), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 50, g.CacheLen())
	assert.False(t, g.Cached(url(0), nil))
	for i := 1; i < 51; i++ {
		assert.True(t, g.Cached(url(i), nil), "entry %d should be cached", i)
	}
}

func TestGateway_OptionOrderSharesCacheEntry(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	g := newTestGateway(tr, newTestClock())

	_, err := g.FetchJSON(ctx, "https://deals.example/s", domain.Options{"a": 1, "b": 2})
	require.NoError(t, err)
	_, err = g.FetchJSON(ctx, "https://deals.example/s", domain.Options{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, int32(1), tr.calls.Load())
}

func TestGateway_RateLimiterWindow(t *testing.T) {
	clk := newTestClock()
	g := newTestGateway(&fakeTransport{}, clk)

	assert.True(t, g.Check("x", 3))
	clk.Advance(10 * time.Second)
	assert.True(t, g.Check("x", 3))
	clk.Advance(10 * time.Second)
	assert.True(t, g.Check("x", 3))
	assert.False(t, g.Check("x", 3))

	clk.Advance(41 * time.Second)
	assert.True(t, g.Check("x", 3))
}

func TestGateway_AllowUsesConfiguredCeiling(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(&fakeTransport{}, newTestClock(),
		WithCeilings(map[domain.Action]int{domain.ActionSearch: 2}))

	assert.True(t, g.Allow(ctx, "search").Allowed)
	assert.True(t, g.Allow(ctx, "search").Allowed)
	dec := g.Allow(ctx, "search")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 2, dec.Limit)
	assert.Equal(t, 60*time.Second, dec.RetryAfter)

	// ação desconhecida sem teto padrão não é limitada
	for i := 0; i < 100; i++ {
		require.True(t, g.Allow(ctx, "browse").Allowed)
	}
}

func TestGateway_ClientsHaveSeparateWindowsAndQuotas(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(&fakeTransport{}, newTestClock(),
		WithCeilings(map[domain.Action]int{domain.ActionSearch: 1}))

	assert.True(t, g.AllowFor(ctx, "alice", "search").Allowed)
	assert.False(t, g.AllowFor(ctx, "alice", "search").Allowed)
	assert.True(t, g.AllowFor(ctx, "bob", "search").Allowed)

	for i := 0; i < 3; i++ {
		g.IncrementFor(ctx, "alice", false)
	}
	assert.False(t, g.CheckAllowedFor(ctx, "alice", false))
	assert.True(t, g.CheckAllowedFor(ctx, "bob", false))
	assert.Equal(t, 3, g.QuotaStatusFor(ctx, "bob", false).Remaining)
}

func TestGateway_GuestQuotaDailyReset(t *testing.T) {
	ctx := context.Background()
	kv := infra.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, domain.QuotaDateKey, "2026-10-18"))
	require.NoError(t, kv.Set(ctx, domain.QuotaCountKey, "3"))

	g := newTestGateway(&fakeTransport{}, newTestClock(), WithQuotaStore(kv))
	assert.True(t, g.CheckAllowed(ctx, false))
}

func TestGateway_GuestQuotaExhaustion(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(&fakeTransport{}, newTestClock())

	assert.Equal(t, 1, g.Increment(ctx, false))
	assert.True(t, g.LowRemaining(1))
	assert.Equal(t, 2, g.Increment(ctx, false))
	assert.Equal(t, 3, g.Increment(ctx, false))

	assert.False(t, g.CheckAllowed(ctx, false))
	assert.True(t, g.CheckAllowed(ctx, true))
	assert.Equal(t, 0, g.QuotaStatus(ctx, false).Remaining)
}

func TestGateway_StorageFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(&fakeTransport{}, newTestClock(), WithQuotaStore(failingKV{}))

	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			assert.True(t, g.CheckAllowed(ctx, false))
			assert.Equal(t, domain.QuotaUntracked, g.Increment(ctx, false))
		}
	})
}

func TestGateway_NonSuccessStatusOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	g := New(infra.NewHTTPTransport())
	for i := 0; i < 2; i++ {
		_, err := g.FetchJSON(context.Background(), srv.URL+"/deal/404", nil)
		var nf *domain.NetworkFailure
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, http.StatusNotFound, nf.Status)
	}
	assert.Equal(t, int32(2), hits.Load(), "failures must not be cached")
}

func TestGateway_TimeoutOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := New(infra.NewHTTPTransport(), WithLimits(Limits{Timeout: 30 * time.Millisecond}))
	_, err := g.FetchJSON(context.Background(), srv.URL, nil)
	var nf *domain.NetworkFailure
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.Timeout)
}

func TestGateway_StatsAreRecorded(t *testing.T) {
	ctx := context.Background()
	stats := infra.NewMemoryStatsStore()
	g := newTestGateway(&fakeTransport{}, newTestClock(), WithStats(stats))

	_, _ = g.FetchJSON(ctx, "https://deals.example/a", nil)
	_, _ = g.FetchJSON(ctx, "https://deals.example/a", nil)
	g.Allow(ctx, "search")

	assert.Equal(t, int64(1), stats.Count(domain.KindCache, domain.OutcomeMiss))
	assert.Equal(t, int64(1), stats.Count(domain.KindCache, domain.OutcomeHit))
	assert.Equal(t, int64(1), stats.Count(domain.KindFetch, domain.OutcomeOK))
	assert.Equal(t, int64(1), stats.Count(domain.KindRate, domain.OutcomeAllowed))
}

func TestLimits_NormalizeFillsDefaults(t *testing.T) {
	l := Limits{TTL: time.Minute}.normalize()
	assert.Equal(t, time.Minute, l.TTL)
	assert.Equal(t, DefaultLimits().Window, l.Window)
	assert.Equal(t, 50, l.MaxEntries)
}
