package ratelimit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"deal-gateway/gateway/application"
	"deal-gateway/gateway/domain"
	"deal-gateway/gateway/infra"
)

// ConcurrencyOptions limita requisições de entrada em andamento no /api.
//
// Pool permite compartilhar o limite entre routers; sem ele um ChanPool de Max
// vagas é criado. Não use o mesmo pool do gateway (WithSlotPool): a requisição
// segura a vaga de entrada enquanto espera a do upstream.
type ConcurrencyOptions struct {
	Max            int
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	RejectStatus   int
	// RetryAfter vai no header da recusa (padrão 1s).
	RetryAfter time.Duration
	ActionFn   KeyFunc
	Stats      domain.StatsStore
	Log        zerolog.Logger
}

// ConcurrencyMiddleware recusa com 503 + Retry-After quando não há vaga dentro de
// AcquireTimeout, registrando a ação recusada em Stats (KindBusy).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	if opts.ActionFn == nil {
		opts.ActionFn = PathAction("/api/")
	}
	slots := application.ConcurrencyService{Pool: opts.Pool, AcquireTimeout: opts.AcquireTimeout}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := slots.Acquire(r.Context())
			if err != nil {
				action := opts.ActionFn(r)
				busy := opts.Log.Warn().Str("action", action)
				if p, ok := opts.Pool.(*infra.ChanPool); ok {
					busy = busy.Int("in_use", p.InUse()).Int("cap", p.Cap())
				}
				busy.Msg("no free slot, request rejected")
				if opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Kind:    domain.KindBusy,
						Name:    action,
						Outcome: domain.OutcomeDenied,
						At:      time.Now(),
					})
				}
				w.Header().Set("Retry-After", formatSeconds(opts.RetryAfter))
				http.Error(w, "gateway busy", opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
