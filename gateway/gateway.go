package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"deal-gateway/gateway/application"
	"deal-gateway/gateway/domain"
	"deal-gateway/gateway/infra"
)

// Gateway junta cache, deduplicação, rate limit por ação e cota de visitante.
// Seguro para uso concorrente; crie uma instância e passe por referência.
type Gateway struct {
	limits Limits
	cache  *infra.FIFOCache
	window *infra.SlidingWindow
	fetch  *application.FetchService
	rate   application.RateService
	quota  *application.GuestQuota
	clock  domain.Clock
}

// New monta um gateway sobre o transporte informado.
// Sem WithQuotaStore a cota fica em memória (não sobrevive a reinícios).
func New(transport domain.Transport, opts ...Option) *Gateway {
	cfg := config{
		limits:   DefaultLimits(),
		ceilings: DefaultCeilings(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	limits := cfg.limits.normalize()
	if cfg.quotaStore == nil {
		cfg.quotaStore = infra.NewMemoryKV()
	}

	cache := infra.NewFIFOCache(limits.TTL, limits.MaxEntries)
	window := infra.NewSlidingWindow(limits.Window, infra.WithClock(cfg.clock))

	quota := application.NewGuestQuota(cfg.quotaStore, limits.DailyCeiling)
	quota.Clock = cfg.clock
	quota.Location = cfg.location
	quota.Stats = cfg.stats
	quota.Log = cfg.log.With().Str("component", "guest_quota").Logger()

	return &Gateway{
		limits: limits,
		cache:  cache,
		window: window,
		fetch: &application.FetchService{
			Cache:     cache,
			Transport: transport,
			Slots:     application.ConcurrencyService{Pool: cfg.slots, AcquireTimeout: cfg.slotTimeout},
			Stats:     cfg.stats,
			Clock:     cfg.clock,
			Timeout:   limits.Timeout,
			Log:       cfg.log.With().Str("component", "fetch").Logger(),
		},
		rate: application.RateService{
			Limiter:        window,
			Ceilings:       cfg.ceilings,
			DefaultCeiling: cfg.defaultCeiling,
			Stats:          cfg.stats,
			Clock:          cfg.clock,
		},
		quota: quota,
		clock: cfg.clock,
	}
}

func (g *Gateway) Limits() Limits { return g.limits }

// FetchJSON devolve o JSON decodificado de um GET em url.
// Falhas de rede chegam como *domain.NetworkFailure (errors.Is(err, domain.ErrNetwork)).
func (g *Gateway) FetchJSON(ctx context.Context, url string, opts domain.Options) (any, error) {
	return g.fetch.Fetch(ctx, url, opts)
}

// Check aplica a janela deslizante com um teto explícito.
func (g *Gateway) Check(action string, ceiling int) bool {
	return g.window.Check(domain.Action(action), ceiling)
}

// Allow aplica a janela deslizante com o teto configurado para a ação.
func (g *Gateway) Allow(ctx context.Context, action string) domain.Decision {
	return g.rate.Decide(ctx, domain.Action(action))
}

// AllowFor é Allow com janela própria por cliente.
func (g *Gateway) AllowFor(ctx context.Context, client, action string) domain.Decision {
	return g.rate.DecideFor(ctx, client, domain.Action(action))
}

// Ceiling retorna o teto configurado para a ação (0 = sem limite).
func (g *Gateway) Ceiling(action string) int {
	return g.rate.Ceiling(domain.Action(action))
}

func (g *Gateway) CheckAllowed(ctx context.Context, authenticated bool) bool {
	return g.quota.CheckAllowed(ctx, authenticated)
}

func (g *Gateway) Increment(ctx context.Context, authenticated bool) int {
	return g.quota.Increment(ctx, authenticated)
}

func (g *Gateway) QuotaStatus(ctx context.Context, authenticated bool) domain.QuotaStatus {
	return g.quota.Status(ctx, authenticated)
}

// CheckAllowedFor, IncrementFor e QuotaStatusFor contam a cota separada por cliente,
// para quando um processo atende vários visitantes (servidor HTTP).
func (g *Gateway) CheckAllowedFor(ctx context.Context, client string, authenticated bool) bool {
	return g.quota.CheckAllowedFor(ctx, client, authenticated)
}

func (g *Gateway) IncrementFor(ctx context.Context, client string, authenticated bool) int {
	return g.quota.IncrementFor(ctx, client, authenticated)
}

func (g *Gateway) QuotaStatusFor(ctx context.Context, client string, authenticated bool) domain.QuotaStatus {
	return g.quota.StatusFor(ctx, client, authenticated)
}

func (g *Gateway) Remaining(count int) int     { return g.quota.Remaining(count) }
func (g *Gateway) LowRemaining(count int) bool { return g.quota.LowRemaining(count) }

// CacheLen retorna quantas respostas estão no cache (incluindo expiradas ainda não lidas).
func (g *Gateway) CacheLen() int { return g.cache.Len() }

// Cached informa se (url, opts) tem resposta válida no cache, sem tocar a rede.
func (g *Gateway) Cached(url string, opts domain.Options) bool {
	key, err := application.CanonicalKey(url, opts)
	if err != nil {
		return false
	}
	_, ok := g.cache.Get(key, g.clock.Now())
	return ok
}

// PurgeCache descarta todas as respostas cacheadas.
func (g *Gateway) PurgeCache() { g.cache.Purge() }

// StartJanitor limpa periodicamente o estado de ações ociosas do rate limit.
func (g *Gateway) StartJanitor(ctx context.Context) { g.window.StartJanitor(ctx) }

// CanonicalKey expõe a serialização determinística usada como chave do cache.
func CanonicalKey(url string, opts domain.Options) (domain.Key, error) {
	return application.CanonicalKey(url, opts)
}

// Now é o relógio do gateway (útil para adapters que precisam do mesmo tempo).
func (g *Gateway) Now() time.Time { return g.clock.Now() }
