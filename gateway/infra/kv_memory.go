package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryKV é um KVStore em memória. Não sobrevive a reinícios; útil para testes e dev.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
	sets int
}

type memEntry struct {
	value   string
	expires time.Time // zero = nunca
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok || (!e.expires.IsZero() && !m.now().Before(e.expires)) {
		return "", nil
	}
	return e.value, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL grava com expiração; ttl <= 0 não expira.
func (m *MemoryKV) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.data[key] = e

	// varredura amortizada das expiradas
	m.sets++
	if m.sets%256 == 0 {
		for k, v := range m.data {
			if !v.expires.IsZero() && !now.Before(v.expires) {
				delete(m.data, k)
			}
		}
	}
	return nil
}

func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
