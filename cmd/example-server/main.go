package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal-gateway/gateway"
	"deal-gateway/gateway/domain"
	"deal-gateway/gateway/infra"
	"deal-gateway/middleware/ratelimit"
	"deal-gateway/pkg/logger"
)

// Exemplo: usando os middlewares direto no seu webserver (sem proxy).
// O handler de busca chama o gateway em processo para falar com a API de ofertas.
func main() {
	log := logger.New()

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		upstream = "http://localhost:8081"
	}

	gw := gateway.New(
		infra.NewPacedTransport(infra.NewHTTPTransport(), 2, 2),
		gateway.WithCeilings(map[domain.Action]int{domain.ActionSearch: 5}),
		gateway.WithLogger(log),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	gw.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		v, err := gw.FetchJSON(r.Context(), upstream+"/search", domain.Options{"query": r.URL.Query()})
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, domain.ErrNetwork) {
				var nf *domain.NetworkFailure
				if errors.As(err, &nf) && nf.Timeout {
					status = http.StatusGatewayTimeout
				}
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	})

	h := http.Handler(mux)
	h = ratelimit.QuotaMiddleware(ratelimit.QuotaOptions{
		Gate: gw,
		Authenticated: func(r *http.Request) bool {
			return r.Header.Get("X-Api-Key") != "" // ou auth.Verifier.Authenticated
		},
	})(h)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Decider:             gw,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
		Log:                 log,
	})(h)

	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("upstream", upstream).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
