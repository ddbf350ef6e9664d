package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-gateway/gateway/domain"
)

type mapKV map[string]string

func (m mapKV) Get(_ context.Context, k string) (string, error) { return m[k], nil }
func (m mapKV) Set(_ context.Context, k, v string) error        { m[k] = v; return nil }

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) {
	return "", errors.New("storage blocked")
}
func (brokenKV) Set(context.Context, string, string) error { return errors.New("storage blocked") }

type panickyKV struct{}

func (panickyKV) Get(context.Context, string) (string, error) { panic("security error") }
func (panickyKV) Set(context.Context, string, string) error   { panic("security error") }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newQuota(store domain.KVStore, clk *fakeClock) *GuestQuota {
	q := NewGuestQuota(store, 3)
	q.Clock = clk.Now
	q.Location = time.UTC
	return q
}

func TestGuestQuota_StaleDateResetsCount(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	kv := mapKV{
		domain.QuotaDateKey:  "2026-03-09",
		domain.QuotaCountKey: "3",
	}
	q := newQuota(kv, clk)

	assert.True(t, q.CheckAllowed(ctx, false))
	assert.Equal(t, 1, q.Increment(ctx, false))
	assert.Equal(t, "2026-03-10", kv[domain.QuotaDateKey])
	assert.Equal(t, "1", kv[domain.QuotaCountKey])
}

func TestGuestQuota_ExhaustsAfterCeiling(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	q := newQuota(mapKV{}, clk)

	for want := 1; want <= 3; want++ {
		require.True(t, q.CheckAllowed(ctx, false), "search %d should be allowed", want)
		require.Equal(t, want, q.Increment(ctx, false))
	}
	assert.False(t, q.CheckAllowed(ctx, false))
	assert.True(t, q.CheckAllowed(ctx, true))
}

func TestGuestQuota_RollsOverAtMidnight(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)}
	q := newQuota(mapKV{}, clk)

	for i := 0; i < 3; i++ {
		q.Increment(ctx, false)
	}
	require.False(t, q.CheckAllowed(ctx, false))

	clk.Advance(2 * time.Minute)
	assert.True(t, q.CheckAllowed(ctx, false))
	assert.Equal(t, 0, q.Status(ctx, false).Used)
}

func TestGuestQuota_AuthenticatedIsUntracked(t *testing.T) {
	ctx := context.Background()
	kv := mapKV{}
	q := newQuota(kv, &fakeClock{now: time.Now()})

	assert.Equal(t, domain.QuotaUntracked, q.Increment(ctx, true))
	assert.Empty(t, kv)
	st := q.Status(ctx, true)
	assert.True(t, st.Unlimited)
	assert.True(t, st.Allowed)
}

func TestGuestQuota_StorageFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	for name, kv := range map[string]domain.KVStore{
		"error": brokenKV{},
		"panic": panickyKV{},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			q := newQuota(kv, &fakeClock{now: time.Now()})
			for i := 0; i < 5; i++ {
				assert.True(t, q.CheckAllowed(ctx, false))
				assert.Equal(t, domain.QuotaUntracked, q.Increment(ctx, false))
			}
			assert.True(t, q.Status(ctx, false).Unlimited)
		})
	}
}

func TestGuestQuota_GarbageCountTreatedAsZero(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	kv := mapKV{domain.QuotaDateKey: "2026-03-10", domain.QuotaCountKey: "lots"}
	q := newQuota(kv, clk)

	assert.Equal(t, 1, q.Increment(ctx, false))
}

func TestGuestQuota_LowRemainingWarning(t *testing.T) {
	q := NewGuestQuota(mapKV{}, 3)

	assert.True(t, q.LowRemaining(1))
	assert.True(t, q.LowRemaining(2))
	assert.False(t, q.LowRemaining(3))
	assert.False(t, q.LowRemaining(0))
	assert.False(t, q.LowRemaining(domain.QuotaUntracked))

	assert.Equal(t, 2, q.Remaining(1))
	assert.Equal(t, 0, q.Remaining(5))
	assert.Equal(t, -1, q.Remaining(domain.QuotaUntracked))
}

// stallingKV segura cada leitura da contagem até outra leitura chegar (ou o prazo
// vencer), abrindo a janela para dois incrementos lerem o mesmo valor.
type stallingKV struct {
	mu      sync.Mutex
	data    map[string]string
	readers atomic.Int32
}

func (k *stallingKV) Get(_ context.Context, key string) (string, error) {
	if key == domain.QuotaCountKey {
		k.readers.Add(1)
		deadline := time.Now().Add(100 * time.Millisecond)
		for k.readers.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data[key], nil
}

func (k *stallingKV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func TestGuestQuota_ConcurrentIncrementsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	kv := &stallingKV{data: map[string]string{
		domain.QuotaDateKey:  "2026-03-10",
		domain.QuotaCountKey: "1",
	}}
	q := newQuota(kv, clk)

	var wg sync.WaitGroup
	got := make([]int, 2)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = q.Increment(ctx, false)
		}(i)
	}
	wg.Wait()

	sort.Ints(got)
	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, "3", kv.data[domain.QuotaCountKey])
}

func TestGuestQuota_SubjectsCountSeparately(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	kv := mapKV{}
	q := newQuota(kv, clk)

	for i := 0; i < 3; i++ {
		q.IncrementFor(ctx, "10.0.0.1", false)
	}
	assert.False(t, q.CheckAllowedFor(ctx, "10.0.0.1", false))
	assert.True(t, q.CheckAllowedFor(ctx, "10.0.0.2", false))
	assert.Equal(t, 1, q.IncrementFor(ctx, "10.0.0.2", false))
	assert.Equal(t, 2, q.StatusFor(ctx, "10.0.0.2", false).Remaining)

	// chaves globais intocadas
	assert.True(t, q.CheckAllowed(ctx, false))
	assert.NotContains(t, kv, domain.QuotaCountKey)
	assert.Equal(t, "3", kv["guest:10.0.0.1:"+domain.QuotaCountKey])
}

type ttlKV struct {
	mapKV
	ttls map[string]time.Duration
}

func (k ttlKV) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	k.ttls[key] = ttl
	return k.Set(ctx, key, value)
}

func TestGuestQuota_SubjectKeysExpire(t *testing.T) {
	ctx := context.Background()
	kv := ttlKV{mapKV: mapKV{}, ttls: map[string]time.Duration{}}
	q := newQuota(kv, &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)})

	q.IncrementFor(ctx, "a", false)
	q.Increment(ctx, false)

	assert.Equal(t, 48*time.Hour, kv.ttls["guest:a:"+domain.QuotaCountKey])
	assert.Equal(t, 48*time.Hour, kv.ttls["guest:a:"+domain.QuotaDateKey])
	assert.NotContains(t, kv.ttls, domain.QuotaCountKey)
	assert.Equal(t, "1", kv.mapKV[domain.QuotaCountKey])
}
