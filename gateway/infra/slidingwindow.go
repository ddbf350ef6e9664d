package infra

import (
	"sync"
	"time"

	"deal-gateway/gateway/domain"
)

// SlidingWindow é um rate limit por ação baseado em log de timestamps.
//
// Uma ação é permitida enquanto houver menos de `ceiling` execuções na janela
// móvel anterior. Não é token bucket: sem suavização e sem recarga parcial.
// Estado só em memória, com limpeza periódica de ações ociosas.
type SlidingWindow struct {
	mu           sync.Mutex
	window       time.Duration
	clock        domain.Clock
	entries      map[domain.Action][]time.Time
	cleanupEvery time.Duration
}

type SlidingWindowOption func(*SlidingWindow)

func WithClock(c domain.Clock) SlidingWindowOption {
	return func(s *SlidingWindow) { s.clock = c }
}

func WithCleanupEvery(d time.Duration) SlidingWindowOption {
	return func(s *SlidingWindow) { s.cleanupEvery = d }
}

func NewSlidingWindow(window time.Duration, opts ...SlidingWindowOption) *SlidingWindow {
	s := &SlidingWindow{
		window:       window,
		entries:      make(map[domain.Action][]time.Time),
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlidingWindow) Window() time.Duration { return s.window }

// Check implementa domain.ActionLimiter.
// Tentativa negada não é registrada.
func (s *SlidingWindow) Check(action domain.Action, ceiling int) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.pruneLocked(action, now)
	if len(stamps) >= ceiling {
		return false
	}
	s.entries[action] = append(stamps, now)
	return true
}

// RetryAfter implementa domain.RetryAdvisor: quanto falta para a próxima vaga abrir.
func (s *SlidingWindow) RetryAfter(action domain.Action, ceiling int) time.Duration {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.pruneLocked(action, now)
	if ceiling <= 0 || len(stamps) < ceiling {
		return 0
	}
	// a vaga abre quando o timestamp que excede o teto sair da janela
	oldest := stamps[len(stamps)-ceiling]
	return oldest.Add(s.window).Sub(now)
}

// Count retorna quantas execuções da ação estão na janela atual.
func (s *SlidingWindow) Count(action domain.Action) int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pruneLocked(action, now))
}

// pruneLocked descarta timestamps com idade >= janela e devolve o restante.
func (s *SlidingWindow) pruneLocked(action domain.Action, now time.Time) []time.Time {
	stamps := s.entries[action]
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= s.window {
		i++
	}
	if i > 0 {
		stamps = append(stamps[:0], stamps[i:]...)
		s.entries[action] = stamps
	}
	return stamps
}

// Cleanup remove ações sem nenhuma execução dentro da janela.
func (s *SlidingWindow) Cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for action := range s.entries {
		if len(s.pruneLocked(action, now)) == 0 {
			delete(s.entries, action)
		}
	}
}

// Actions retorna quantas ações têm estado alocado.
func (s *SlidingWindow) Actions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que limpa ações ociosas periodicamente.
// Pare cancelando o contexto.
func (s *SlidingWindow) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
