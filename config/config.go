// Package config carrega a configuração do gateway: padrões, arquivo YAML
// opcional (GATEWAY_CONFIG) e por fim variáveis de ambiente.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"deal-gateway/gateway"
	"deal-gateway/gateway/domain"
)

type Config struct {
	ListenAddr  string            `yaml:"listen_addr"`
	UpstreamURL string            `yaml:"upstream_url"`
	Limits      gateway.Limits    `yaml:"limits"`
	Rate        RateConfig        `yaml:"rate"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Quota       QuotaConfig       `yaml:"quota"`
	Stats       StatsConfig       `yaml:"stats"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Auth        AuthConfig        `yaml:"auth"`
}

// RateConfig define tetos por minuto por ação. Teto 0 desliga o limite da ação.
type RateConfig struct {
	Ceilings       map[string]int `yaml:"ceilings"`
	DefaultCeiling int            `yaml:"default_ceiling"`
	KeyHeader      string         `yaml:"key_header"`
	TrustXFF       bool           `yaml:"trust_xff"`
	AddHeaders     bool           `yaml:"add_headers"`
}

// UpstreamConfig protege a API de ofertas (RPS <= 0 desliga o ritmo).
type UpstreamConfig struct {
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
	Retries int     `yaml:"retries"`
	// MaxInFlight limita chamadas distintas simultâneas ao upstream (0 = sem limite).
	MaxInFlight int `yaml:"max_inflight"`
}

type ConcurrencyConfig struct {
	Max     int           `yaml:"max"`
	Timeout time.Duration `yaml:"timeout"`
}

type QuotaConfig struct {
	Store         string `yaml:"store"` // memory | redis | sqlite
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	SQLitePath    string `yaml:"sqlite_path"`
	Namespace     string `yaml:"namespace"`
	// Location do "dia" da cota (nome IANA); vazio = fuso local.
	Location string `yaml:"location"`
}

type StatsConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RedisAddr  string        `yaml:"redis_addr"`
	Prefix     string        `yaml:"prefix"`
	TTL        time.Duration `yaml:"ttl"`
	Bucket     string        `yaml:"bucket"`
	TrackNames bool          `yaml:"track_names"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

func Default() Config {
	ceilings := make(map[string]int)
	for a, n := range gateway.DefaultCeilings() {
		ceilings[string(a)] = n
	}
	return Config{
		ListenAddr: ":8080",
		Limits:     gateway.DefaultLimits(),
		Rate:       RateConfig{Ceilings: ceilings},
		Upstream:   UpstreamConfig{RPS: 0, Burst: 5},
		Concurrency: ConcurrencyConfig{
			Max: 100,
		},
		Quota: QuotaConfig{
			Store:      "memory",
			SQLitePath: "guest-quota.db",
		},
		Stats: StatsConfig{
			Prefix: "gateway:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadFile lê um YAML por cima dos padrões: campos ausentes mantêm o padrão.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load monta a configuração final: padrões, arquivo (se GATEWAY_CONFIG) e ambiente.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL %q", c.UpstreamURL)
	}
	if c.Limits.Window < 0 || c.Limits.TTL < 0 || c.Limits.Timeout < 0 {
		return errors.New("limits durations must be >= 0")
	}
	if c.Limits.MaxEntries < 0 || c.Limits.DailyCeiling < 0 {
		return errors.New("limits counts must be >= 0")
	}
	for a, n := range c.Rate.Ceilings {
		if n < 0 {
			return fmt.Errorf("rate ceiling for %q must be >= 0", a)
		}
	}
	if c.Upstream.RPS > 0 && c.Upstream.Burst <= 0 {
		return errors.New("UPSTREAM_BURST must be > 0 when UPSTREAM_RPS is set")
	}
	if c.Upstream.MaxInFlight < 0 {
		return errors.New("UPSTREAM_MAX_INFLIGHT must be >= 0")
	}
	if c.Upstream.Retries < 0 {
		return errors.New("UPSTREAM_RETRIES must be >= 0")
	}
	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	switch c.Quota.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Quota.RedisAddr) == "" {
			return errors.New("QUOTA_REDIS_ADDR is required when QUOTA_STORE=redis")
		}
	case "sqlite":
		if strings.TrimSpace(c.Quota.SQLitePath) == "" {
			return errors.New("QUOTA_SQLITE_PATH is required when QUOTA_STORE=sqlite")
		}
	default:
		return fmt.Errorf("unknown QUOTA_STORE %q (memory|redis|sqlite)", c.Quota.Store)
	}
	if _, err := c.QuotaLocation(); err != nil {
		return fmt.Errorf("invalid QUOTA_LOCATION: %w", err)
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		return errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	return nil
}

// Ceilings converte os tetos para o tipo do gateway.
func (c Config) Ceilings() map[domain.Action]int {
	out := make(map[domain.Action]int, len(c.Rate.Ceilings))
	for a, n := range c.Rate.Ceilings {
		out[domain.Action(a)] = n
	}
	return out
}

func (c Config) QuotaLocation() (*time.Location, error) {
	if c.Quota.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Quota.Location)
}
