package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"deal-gateway/auth"
	"deal-gateway/config"
	"deal-gateway/gateway"
	"deal-gateway/gateway/domain"
	"deal-gateway/middleware/ratelimit"
)

type server struct {
	gw       *gateway.Gateway
	upstream string
	verifier *auth.Verifier
	metrics  http.Handler
	stats    domain.StatsStore
	cfg      config.Config
	log      zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.Rate.TrustXFF {
		r.Use(middleware.RealIP)
	}
	r.Use(s.accessLog, middleware.Recoverer)
	r.Use(s.verifier.Identify)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/quota", s.handleQuota)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            s.cfg.Concurrency.Max,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: s.cfg.Concurrency.Timeout,
			Stats:          s.stats,
			Log:            s.log,
		}))
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Decider:             s.gw,
			ClientKeyFn:         s.clientKey(),
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: s.cfg.Rate.AddHeaders,
			Log:                 s.log,
		}))
		r.Use(ratelimit.QuotaMiddleware(ratelimit.QuotaOptions{
			Gate:          s.gw,
			Authenticated: s.verifier.Authenticated,
			Actions:       []string{string(domain.ActionSearch)},
			ClientKeyFn:   s.clientKey(),
			Log:           s.log,
		}))
		r.Get("/*", s.handleAPI)
	})
	return r
}

// handleAPI repassa GET /api/<caminho> para <upstream>/<caminho> através do gateway.
func (s *server) handleAPI(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if rest == "" {
		errorJSON(w, http.StatusNotFound, "not found")
		return
	}

	var opts domain.Options
	if q := r.URL.Query(); len(q) > 0 {
		opts = domain.Options{"query": q}
	}
	v, err := s.gw.FetchJSON(r.Context(), s.upstream+"/"+rest, opts)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// clientKey identifica o visitante para rate limit e cota (header configurado, XFF ou IP).
func (s *server) clientKey() ratelimit.KeyFunc {
	return ratelimit.DefaultKeyFunc(s.cfg.Rate.KeyHeader, s.cfg.Rate.TrustXFF)
}

func (s *server) handleQuota(w http.ResponseWriter, r *http.Request) {
	st := s.gw.QuotaStatusFor(r.Context(), s.clientKey()(r), s.verifier.Authenticated(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  st,
		"ceiling": s.gw.Limits().DailyCeiling,
	})
}

// writeFetchError traduz falhas do upstream: timeout vira 504, 4xx do upstream
// passa adiante e o resto vira 502.
func (s *server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}

	var nf *domain.NetworkFailure
	switch {
	case errors.As(err, &nf) && nf.Timeout:
		errorJSON(w, http.StatusGatewayTimeout, "upstream timeout")
	case errors.As(err, &nf) && nf.Status >= 400 && nf.Status < 500:
		errorJSON(w, nf.Status, http.StatusText(nf.Status))
	case errors.As(err, &nf), errors.Is(err, domain.ErrDecode):
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream error")
		errorJSON(w, http.StatusBadGateway, "bad gateway")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
