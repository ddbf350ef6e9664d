package ratelimit

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// QuotaGate é a parte do gateway usada pela cota de visitante (gateway.Gateway satisfaz).
// A contagem é separada por cliente.
type QuotaGate interface {
	CheckAllowedFor(ctx context.Context, client string, authenticated bool) bool
	IncrementFor(ctx context.Context, client string, authenticated bool) int
	Remaining(count int) int
	LowRemaining(count int) bool
}

type QuotaOptions struct {
	Gate          QuotaGate
	Authenticated func(r *http.Request) bool
	// Actions que consomem cota (padrão: só "search").
	Actions            []string
	ActionFn           KeyFunc
	ClientKeyFn        KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	Log                zerolog.Logger
}

// QuotaMiddleware bloqueia visitantes sem cota (402) e conta uma busca a cada
// resposta bem-sucedida. Respostas >= 400 não consomem cota.
func QuotaMiddleware(opts QuotaOptions) func(next http.Handler) http.Handler {
	if opts.Gate == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusPaymentRequired
	}
	if opts.ActionFn == nil {
		opts.ActionFn = PathAction("/api/")
	}
	if opts.ClientKeyFn == nil {
		opts.ClientKeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Authenticated == nil {
		opts.Authenticated = func(*http.Request) bool { return false }
	}
	if len(opts.Actions) == 0 {
		opts.Actions = []string{"search"}
	}
	metered := make(map[string]struct{}, len(opts.Actions))
	for _, a := range opts.Actions {
		metered[a] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := metered[opts.ActionFn(r)]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			authed := opts.Authenticated(r)
			client := opts.ClientKeyFn(r)
			if !opts.Gate.CheckAllowedFor(r.Context(), client, authed) {
				opts.Log.Info().Str("client", client).Msg("guest quota exhausted")
				w.Header().Set("X-Guest-Remaining", "0")
				http.Error(w, "daily guest search limit reached", opts.RejectStatus)
				return
			}

			rec := &quotaRecorder{ResponseWriter: w, r: r, gate: opts.Gate, client: client, authed: authed, log: opts.Log}
			next.ServeHTTP(rec, r)
		})
	}
}

// quotaRecorder incrementa a cota no primeiro WriteHeader de sucesso,
// antes dos headers irem para o cliente.
type quotaRecorder struct {
	http.ResponseWriter
	r      *http.Request
	gate   QuotaGate
	client string
	authed bool
	log    zerolog.Logger
	wrote  bool
}

func (q *quotaRecorder) WriteHeader(status int) {
	if !q.wrote {
		q.wrote = true
		if status < http.StatusBadRequest {
			q.count()
		}
	}
	q.ResponseWriter.WriteHeader(status)
}

func (q *quotaRecorder) Write(b []byte) (int, error) {
	if !q.wrote {
		q.WriteHeader(http.StatusOK)
	}
	return q.ResponseWriter.Write(b)
}

func (q *quotaRecorder) Unwrap() http.ResponseWriter { return q.ResponseWriter }

func (q *quotaRecorder) count() {
	n := q.gate.IncrementFor(q.r.Context(), q.client, q.authed)
	remaining := q.gate.Remaining(n)
	if remaining < 0 {
		return
	}
	h := q.Header()
	h.Set("X-Guest-Remaining", formatInt(remaining))
	if q.gate.LowRemaining(n) {
		h.Set("X-Guest-Low", "true")
	}
	q.log.Debug().Str("client", q.client).Int("count", n).Int("remaining", remaining).Msg("guest search counted")
}
