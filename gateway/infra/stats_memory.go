package infra

import (
	"context"
	"sync"

	"deal-gateway/gateway/domain"
)

// Counters agrega eventos por resultado.
type Counters map[domain.Outcome]int64

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o endpoint de diagnóstico do binário.
//
// Não faz expiração. Contagem por nome só com WithTrackNames (cardinalidade!).
type MemoryStatsStore struct {
	mu     sync.Mutex
	byKind map[domain.Kind]Counters
	byName map[string]Counters

	trackNames bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackNames(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackNames = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byKind: make(map[domain.Kind]Counters),
		byName: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byKind[ev.Kind]
	if c == nil {
		c = make(Counters)
		s.byKind[ev.Kind] = c
	}
	c[ev.Outcome]++

	if s.trackNames && ev.Name != "" {
		name := string(ev.Kind) + ":" + ev.Name
		n := s.byName[name]
		if n == nil {
			n = make(Counters)
			s.byName[name] = n
		}
		n[ev.Outcome]++
	}
	return nil
}

// Count retorna o contador de (kind, outcome).
func (s *MemoryStatsStore) Count(kind domain.Kind, out domain.Outcome) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKind[kind][out]
}

func (s *MemoryStatsStore) ByKind() map[domain.Kind]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Kind]Counters, len(s.byKind))
	for k, v := range s.byKind {
		out[k] = copyCounters(v)
	}
	return out
}

func (s *MemoryStatsStore) ByName() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byName))
	for k, v := range s.byName {
		out[k] = copyCounters(v)
	}
	return out
}

func copyCounters(c Counters) Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MultiStats repassa o evento para vários stores; o primeiro erro é devolvido,
// mas todos recebem o evento.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
