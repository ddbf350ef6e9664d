package gateway

import (
	"time"

	"deal-gateway/gateway/domain"
)

// Limits são os parâmetros do gateway. Os valores padrão reproduzem o comportamento
// observado no cliente: janela de 60s, TTL de 5min, 3 buscas/dia, 50 entradas, 10s.
type Limits struct {
	Window       time.Duration `yaml:"window"`
	TTL          time.Duration `yaml:"ttl"`
	DailyCeiling int           `yaml:"daily_ceiling"`
	MaxEntries   int           `yaml:"max_entries"`
	Timeout      time.Duration `yaml:"timeout"`
}

func DefaultLimits() Limits {
	return Limits{
		Window:       60 * time.Second,
		TTL:          5 * time.Minute,
		DailyCeiling: 3,
		MaxEntries:   50,
		Timeout:      10 * time.Second,
	}
}

// normalize troca valores não positivos pelos padrões.
func (l Limits) normalize() Limits {
	def := DefaultLimits()
	if l.Window <= 0 {
		l.Window = def.Window
	}
	if l.TTL <= 0 {
		l.TTL = def.TTL
	}
	if l.DailyCeiling <= 0 {
		l.DailyCeiling = def.DailyCeiling
	}
	if l.MaxEntries <= 0 {
		l.MaxEntries = def.MaxEntries
	}
	if l.Timeout <= 0 {
		l.Timeout = def.Timeout
	}
	return l
}

// DefaultCeilings são os tetos por minuto das ações conhecidas do storefront.
func DefaultCeilings() map[domain.Action]int {
	return map[domain.Action]int{
		domain.ActionSearch:       10,
		domain.ActionGenerateLink: 20,
		domain.ActionWishlist:     30,
		domain.ActionDeal:         30,
	}
}
