package application

import (
	"context"
	"time"

	"deal-gateway/gateway/domain"
)

// RateService concentra a regra de aplicação do rate limit por ação.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Ações sem teto configurado usam DefaultCeiling; teto <= 0 significa sem limite.
type RateService struct {
	Limiter        domain.ActionLimiter
	Ceilings       map[domain.Action]int
	DefaultCeiling int
	RetryAfter     time.Duration
	Stats          domain.StatsStore
	Clock          domain.Clock
}

func (s RateService) Ceiling(action domain.Action) int {
	if c, ok := s.Ceilings[action]; ok {
		return c
	}
	return s.DefaultCeiling
}

func (s RateService) Decide(ctx context.Context, action domain.Action) domain.Decision {
	return s.DecideFor(ctx, "", action)
}

// DecideFor aplica o teto da ação numa janela só do subject (ex: IP do cliente).
// Subject vazio compartilha a janela da ação entre todos os chamadores.
func (s RateService) DecideFor(ctx context.Context, subject string, action domain.Action) domain.Decision {
	ceiling := s.Ceiling(action)
	if s.Limiter == nil || ceiling <= 0 {
		return domain.Decision{Allowed: true, Limit: ceiling}
	}

	key := action
	if subject != "" {
		key = domain.Action(subject + ":" + string(action))
	}
	if s.Limiter.Check(key, ceiling) {
		s.record(ctx, action, domain.OutcomeAllowed)
		return domain.Decision{Allowed: true, Limit: ceiling}
	}
	s.record(ctx, action, domain.OutcomeDenied)

	retry := s.RetryAfter
	if ra, ok := s.Limiter.(domain.RetryAdvisor); ok {
		if d := ra.RetryAfter(key, ceiling); d > 0 {
			retry = d
		}
	}
	if retry <= 0 {
		retry = 1 * time.Second
	}
	return domain.Decision{Allowed: false, Limit: ceiling, RetryAfter: retry}
}

func (s RateService) record(ctx context.Context, action domain.Action, out domain.Outcome) {
	if s.Stats == nil {
		return
	}
	_ = s.Stats.Record(ctx, domain.StatsEvent{
		Kind:    domain.KindRate,
		Name:    string(action),
		Outcome: out,
		At:      s.Clock.Now(),
	})
}
