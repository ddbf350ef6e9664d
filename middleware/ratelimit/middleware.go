package ratelimit

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"deal-gateway/gateway/domain"
)

// Decider é a parte do gateway usada pelo middleware (gateway.Gateway satisfaz).
// A janela é por cliente e por ação.
type Decider interface {
	AllowFor(ctx context.Context, client, action string) domain.Decision
}

type Options struct {
	Decider             Decider
	ActionFn            KeyFunc
	ClientKeyFn         KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
	Log                 zerolog.Logger
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.ActionFn == nil {
		opts.ActionFn = PathAction("/api/")
	}
	if opts.ClientKeyFn == nil {
		opts.ClientKeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := opts.ActionFn(r)
			if action == "" || opts.Decider == nil {
				next.ServeHTTP(w, r)
				return
			}

			client := opts.ClientKeyFn(r)
			dec := opts.Decider.AllowFor(r.Context(), client, action)
			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Action", action)
				if dec.Limit > 0 {
					w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				}
			}
			if !dec.Allowed {
				opts.Log.Info().
					Str("action", action).
					Str("client", client).
					Dur("retry_after", dec.RetryAfter).
					Msg("rate limited")
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
