package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deal-gateway/auth"
	"deal-gateway/config"
	"deal-gateway/gateway"
	"deal-gateway/gateway/domain"
	"deal-gateway/gateway/infra"
	"deal-gateway/pkg/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	quotaStore, closeQuota, err := openQuotaStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Quota.Store).Msg("quota store error")
	}
	defer closeQuota()

	var stats infra.MultiStats
	var metrics http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		stats = append(stats, infra.NewPrometheusStatsStore(reg))
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if cfg.Stats.Enabled {
		rdb, err := dialRedis(ctx, cfg.Stats.RedisAddr, "", 0)
		if err != nil {
			log.Fatal().Err(err).Msg("redis stats ping error")
		}
		defer func() { _ = rdb.Close() }()

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackNames(cfg.Stats.TrackNames),
		))
	}

	loc, _ := cfg.QuotaLocation()
	transport := infra.NewPacedTransport(
		infra.NewHTTPTransport(
			infra.WithMaxRetries(cfg.Upstream.Retries),
			infra.WithHTTPLogger(log.With().Str("component", "upstream").Logger()),
		),
		cfg.Upstream.RPS,
		cfg.Upstream.Burst,
	)

	opts := []gateway.Option{
		gateway.WithLimits(cfg.Limits),
		gateway.WithCeilings(cfg.Ceilings()),
		gateway.WithDefaultCeiling(cfg.Rate.DefaultCeiling),
		gateway.WithLocation(loc),
		gateway.WithQuotaStore(quotaStore),
		gateway.WithLogger(log),
	}
	if len(stats) > 0 {
		opts = append(opts, gateway.WithStats(stats))
	}
	if cfg.Upstream.MaxInFlight > 0 {
		opts = append(opts, gateway.WithSlotPool(infra.NewChanPool(cfg.Upstream.MaxInFlight), cfg.Limits.Timeout))
	}
	gw := gateway.New(transport, opts...)
	gw.StartJanitor(ctx)

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	}

	s := &server{
		gw:       gw,
		upstream: strings.TrimRight(cfg.UpstreamURL, "/"),
		verifier: verifier,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
	if len(stats) > 0 {
		s.stats = stats
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logStartup(log, cfg, verifier != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("gateway stopped")
}

func logStartup(log zerolog.Logger, cfg config.Config, authEnabled bool) {
	log.Info().Str("addr", cfg.ListenAddr).Str("upstream", cfg.UpstreamURL).Msg("gateway listening")
	log.Info().
		Dur("ttl", cfg.Limits.TTL).
		Int("max_entries", cfg.Limits.MaxEntries).
		Dur("timeout", cfg.Limits.Timeout).
		Msg("cache")
	log.Info().
		Dur("window", cfg.Limits.Window).
		Interface("ceilings", cfg.Rate.Ceilings).
		Int("default", cfg.Rate.DefaultCeiling).
		Msg("rate")
	log.Info().
		Str("store", cfg.Quota.Store).
		Int("daily_ceiling", cfg.Limits.DailyCeiling).
		Bool("auth", authEnabled).
		Msg("guest quota")
	log.Info().
		Float64("rps", cfg.Upstream.RPS).
		Int("burst", cfg.Upstream.Burst).
		Int("max_inflight", cfg.Upstream.MaxInFlight).
		Int("concurrency_max", cfg.Concurrency.Max).
		Msg("upstream")
	log.Info().Bool("metrics", cfg.Metrics.Enabled).Bool("redis_stats", cfg.Stats.Enabled).Msg("stats")
}

func openQuotaStore(ctx context.Context, cfg config.Config) (domain.KVStore, func(), error) {
	switch cfg.Quota.Store {
	case "redis":
		rdb, err := dialRedis(ctx, cfg.Quota.RedisAddr, cfg.Quota.RedisPassword, cfg.Quota.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return infra.NewRedisKV(rdb, cfg.Quota.Namespace), func() { _ = rdb.Close() }, nil
	case "sqlite":
		kv, err := infra.OpenSQLiteKV(cfg.Quota.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	default:
		return infra.NewMemoryKV(), func() {}, nil
	}
}

func dialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}
