package gateway

import (
	"time"

	"github.com/rs/zerolog"

	"deal-gateway/gateway/domain"
)

type config struct {
	limits         Limits
	ceilings       map[domain.Action]int
	defaultCeiling int
	clock          domain.Clock
	location       *time.Location
	quotaStore     domain.KVStore
	stats          domain.StatsStore
	slots          domain.SlotPool
	slotTimeout    time.Duration
	log            zerolog.Logger
}

type Option func(*config)

func WithLimits(l Limits) Option {
	return func(c *config) { c.limits = l }
}

// WithCeilings define tetos por ação (substitui os padrões para as ações informadas).
func WithCeilings(m map[domain.Action]int) Option {
	return func(c *config) {
		for k, v := range m {
			c.ceilings[k] = v
		}
	}
}

// WithDefaultCeiling define o teto de ações sem configuração própria (0 = sem limite).
func WithDefaultCeiling(n int) Option {
	return func(c *config) { c.defaultCeiling = n }
}

func WithClock(clock domain.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithLocation define o fuso usado para o "dia" da cota (padrão: time.Local).
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.location = loc }
}

func WithQuotaStore(kv domain.KVStore) Option {
	return func(c *config) { c.quotaStore = kv }
}

func WithStats(s domain.StatsStore) Option {
	return func(c *config) { c.stats = s }
}

// WithSlotPool limita chamadas distintas simultâneas ao upstream.
func WithSlotPool(p domain.SlotPool, acquireTimeout time.Duration) Option {
	return func(c *config) {
		c.slots = p
		c.slotTimeout = acquireTimeout
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}
