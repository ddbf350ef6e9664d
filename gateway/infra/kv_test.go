package infra

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal-gateway/gateway/domain"
)

func testKVContract(t *testing.T, kv domain.KVStore) {
	t.Helper()
	ctx := context.Background()

	v, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, kv.Set(ctx, domain.QuotaCountKey, "1"))
	require.NoError(t, kv.Set(ctx, domain.QuotaCountKey, "2"))
	v, err = kv.Get(ctx, domain.QuotaCountKey)
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestMemoryKV(t *testing.T) {
	testKVContract(t, NewMemoryKV())
}

func TestMemoryKV_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	kv := NewMemoryKV()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.SetWithTTL(ctx, "guest:a:"+domain.QuotaCountKey, "2", time.Hour))
	require.NoError(t, kv.Set(ctx, domain.QuotaCountKey, "1"))

	now = now.Add(59 * time.Minute)
	v, _ := kv.Get(ctx, "guest:a:"+domain.QuotaCountKey)
	assert.Equal(t, "2", v)

	now = now.Add(time.Minute)
	v, _ = kv.Get(ctx, "guest:a:"+domain.QuotaCountKey)
	assert.Equal(t, "", v)
	v, _ = kv.Get(ctx, domain.QuotaCountKey)
	assert.Equal(t, "1", v)

	for i := 0; i < 256; i++ {
		require.NoError(t, kv.Set(ctx, domain.QuotaCountKey, "1"))
	}
	assert.Equal(t, 1, kv.Len())
}

func TestSQLiteKV(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "quota.db"))
	require.NoError(t, err)
	defer kv.Close()

	testKVContract(t, kv)
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.db")

	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, domain.QuotaDateKey, "2026-10-19"))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()
	v, err := kv.Get(ctx, domain.QuotaDateKey)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", v)
}

func TestRedisKV_NoClientFails(t *testing.T) {
	kv := NewRedisKV(nil, "guest")
	_, err := kv.Get(context.Background(), domain.QuotaDateKey)
	assert.Error(t, err)
	assert.Error(t, kv.Set(context.Background(), domain.QuotaDateKey, "x"))
	assert.Error(t, kv.SetWithTTL(context.Background(), domain.QuotaDateKey, "x", time.Hour))
	assert.Equal(t, "quota:guest:x", kv.key("x"))
}
