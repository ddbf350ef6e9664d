package domain

import (
	"context"
	"time"
)

// Kind agrupa eventos por componente do gateway.
type Kind string

const (
	KindCache Kind = "cache"
	KindFetch Kind = "fetch"
	KindRate  Kind = "rate"
	KindQuota Kind = "quota"
	// KindBusy conta requisições de entrada recusadas por falta de vaga.
	KindBusy Kind = "busy"
)

type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMiss    Outcome = "miss"
	OutcomeShared  Outcome = "shared"
	OutcomeEvicted Outcome = "evicted"
	OutcomeOK      Outcome = "ok"
	OutcomeFailure Outcome = "failure"
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	OutcomeStorage Outcome = "storage_unavailable"
)

// StatsEvent representa um evento observável do gateway.
//
// Name é a ação (rate/quota) ou a chave canônica (cache/fetch).
// Observação: cuidado com cardinalidade ao persistir Name (chaves de cache são ilimitadas).
type StatsEvent struct {
	Kind    Kind
	Name    string
	Outcome Outcome
	At      time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gateway.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O gateway trata erro como best-effort (nunca derruba a chamada).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
