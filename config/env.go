package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv sobrescreve cfg com as variáveis de ambiente presentes.
// Valores inválidos são ignorados (mantém o valor atual).
func ApplyEnv(cfg *Config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.UpstreamURL = getenvDefault("UPSTREAM_URL", cfg.UpstreamURL)

	cfg.Limits.TTL = getenvDurationDefault("CACHE_TTL", cfg.Limits.TTL)
	cfg.Limits.MaxEntries = getenvIntDefault("CACHE_MAX_ENTRIES", cfg.Limits.MaxEntries)
	cfg.Limits.Timeout = getenvDurationDefault("FETCH_TIMEOUT", cfg.Limits.Timeout)
	cfg.Limits.Window = getenvDurationDefault("RATE_WINDOW", cfg.Limits.Window)
	cfg.Limits.DailyCeiling = getenvIntDefault("GUEST_DAILY_CEILING", cfg.Limits.DailyCeiling)

	if cfg.Rate.Ceilings == nil {
		cfg.Rate.Ceilings = make(map[string]int)
	}
	for env, action := range map[string]string{
		"RATE_SEARCH":        "search",
		"RATE_GENERATE_LINK": "generateLink",
		"RATE_WISHLIST":      "wishlist",
		"RATE_DEAL":          "deal",
	} {
		if n, ok := getenvInt(env); ok {
			cfg.Rate.Ceilings[action] = n
		}
	}
	cfg.Rate.DefaultCeiling = getenvIntDefault("RATE_DEFAULT", cfg.Rate.DefaultCeiling)
	cfg.Rate.KeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.Rate.KeyHeader)
	cfg.Rate.TrustXFF = getenvBoolDefault("TRUST_XFF", cfg.Rate.TrustXFF)
	cfg.Rate.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.Rate.AddHeaders)

	cfg.Upstream.RPS = getenvFloatDefault("UPSTREAM_RPS", cfg.Upstream.RPS)
	// IMPORTANTE: com RPS abaixo de 1 e burst padrão, as primeiras chamadas
	// passam juntas e o ritmo parece não funcionar.
	if burst, ok := getenvInt("UPSTREAM_BURST"); ok {
		cfg.Upstream.Burst = burst
	} else if getenvIsSet("UPSTREAM_RPS") && cfg.Upstream.RPS > 0 && cfg.Upstream.RPS < 1 {
		cfg.Upstream.Burst = 1
	}
	cfg.Upstream.Retries = getenvIntDefault("UPSTREAM_RETRIES", cfg.Upstream.Retries)
	cfg.Upstream.MaxInFlight = getenvIntDefault("UPSTREAM_MAX_INFLIGHT", cfg.Upstream.MaxInFlight)

	cfg.Concurrency.Max = getenvIntDefault("CONCURRENCY_MAX", cfg.Concurrency.Max)
	cfg.Concurrency.Timeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.Concurrency.Timeout)

	cfg.Quota.Store = getenvDefault("QUOTA_STORE", cfg.Quota.Store)
	cfg.Quota.RedisAddr = getenvDefault("QUOTA_REDIS_ADDR", cfg.Quota.RedisAddr)
	cfg.Quota.RedisPassword = getenvDefault("QUOTA_REDIS_PASSWORD", cfg.Quota.RedisPassword)
	cfg.Quota.RedisDB = getenvIntDefault("QUOTA_REDIS_DB", cfg.Quota.RedisDB)
	cfg.Quota.SQLitePath = getenvDefault("QUOTA_SQLITE_PATH", cfg.Quota.SQLitePath)
	cfg.Quota.Namespace = getenvDefault("QUOTA_NAMESPACE", cfg.Quota.Namespace)
	cfg.Quota.Location = getenvDefault("QUOTA_LOCATION", cfg.Quota.Location)

	cfg.Stats.Enabled = getenvBoolDefault("STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.RedisAddr = getenvDefault("STATS_REDIS_ADDR", cfg.Stats.RedisAddr)
	cfg.Stats.Prefix = getenvDefault("STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackNames = getenvBoolDefault("STATS_TRACK_NAMES", cfg.Stats.TrackNames)

	cfg.Metrics.Enabled = getenvBoolDefault("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	if i, ok := getenvInt(k); ok {
		return i
	}
	return def
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
