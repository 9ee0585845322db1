package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

type Config struct {
	Env          string `mapstructure:"HYLO_ENV"`
	HTTPAddr     string `mapstructure:"HYLO_HTTP_ADDR"`
	PublicOrigin string `mapstructure:"HYLO_PUBLIC_ORIGIN"`

	Log      LogConfig      `mapstructure:",squash"`
	HTTP     HTTPConfig     `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Snapshot SnapshotConfig `mapstructure:",squash"`
	Engine   EngineConfig   `mapstructure:",squash"`
	Prices   PriceConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type LogConfig struct {
	File       string `mapstructure:"HYLO_LOG_FILE"`
	MaxSizeMB  int    `mapstructure:"HYLO_LOG_MAX_SIZE_MB"`
	MaxBackups int    `mapstructure:"HYLO_LOG_MAX_BACKUPS"`
}

type HTTPConfig struct {
	RequestTimeout  time.Duration `mapstructure:"HYLO_HTTP_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"HYLO_HTTP_SHUTDOWN_TIMEOUT"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"HYLO_KV_BACKEND"` // "memory", "redis"
	RedisURL string        `mapstructure:"HYLO_REDIS_URL"`
	Failover bool          `mapstructure:"HYLO_KV_FAILOVER"`
	StateTTL time.Duration `mapstructure:"HYLO_STATE_TTL"`
	QuoteTTL time.Duration `mapstructure:"HYLO_QUOTE_TTL"`
}

type SnapshotConfig struct {
	Source          string        `mapstructure:"HYLO_SNAPSHOT_SOURCE"` // "file", "kv"
	File            string        `mapstructure:"HYLO_SNAPSHOT_FILE"`
	RefreshInterval time.Duration `mapstructure:"HYLO_SNAPSHOT_REFRESH_INTERVAL"`
}

type EngineConfig struct {
	// StabilityFloor overrides the snapshot's depeg floor when set.
	StabilityFloor   string `mapstructure:"HYLO_STABILITY_FLOOR"`
	MaxLstPriceDelta string `mapstructure:"HYLO_MAX_LST_PRICE_DELTA"`
	LstPriceMaxAge   uint64 `mapstructure:"HYLO_LST_PRICE_MAX_AGE"`
	CurvesFile       string `mapstructure:"HYLO_FEE_CURVES_FILE"`
	// LiveClock advances chain time from the wall clock between refreshes
	// instead of freezing it at the snapshot's clock.
	LiveClock bool   `mapstructure:"HYLO_LIVE_CLOCK"`
	Strategy  string `mapstructure:"HYLO_QUOTE_STRATEGY"` // "local", "reference"
}

type PriceConfig struct {
	Provider       string        `mapstructure:"HYLO_PRICE_PROVIDER"` // "none", "mock", "binance"
	Symbol         string        `mapstructure:"HYLO_PRICE_SYMBOL"`
	RetryInterval  time.Duration `mapstructure:"HYLO_PRICE_RETRY_INTERVAL"`
	ConfBps        int64         `mapstructure:"HYLO_PRICE_CONF_BPS"`
	MockVolatility float64       `mapstructure:"HYLO_PRICE_MOCK_VOLATILITY"`
	MockBasePrice  float64       `mapstructure:"HYLO_PRICE_MOCK_BASE_PRICE"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"HYLO_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"HYLO_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set take precedence
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HYLO_ENV", "dev")
	v.SetDefault("HYLO_HTTP_ADDR", ":8080")
	v.SetDefault("HYLO_PUBLIC_ORIGIN", "http://localhost:3000")
	v.SetDefault("HYLO_LOG_FILE", "")
	v.SetDefault("HYLO_LOG_MAX_SIZE_MB", 100)
	v.SetDefault("HYLO_LOG_MAX_BACKUPS", 5)
	v.SetDefault("HYLO_HTTP_REQUEST_TIMEOUT", "15s")
	v.SetDefault("HYLO_HTTP_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("HYLO_KV_BACKEND", "memory")
	v.SetDefault("HYLO_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("HYLO_KV_FAILOVER", true)
	v.SetDefault("HYLO_STATE_TTL", "5s")
	v.SetDefault("HYLO_QUOTE_TTL", "30s")
	v.SetDefault("HYLO_SNAPSHOT_SOURCE", "file")
	v.SetDefault("HYLO_SNAPSHOT_FILE", "snapshot.yaml")
	v.SetDefault("HYLO_SNAPSHOT_REFRESH_INTERVAL", "10s")
	v.SetDefault("HYLO_STABILITY_FLOOR", "")
	v.SetDefault("HYLO_MAX_LST_PRICE_DELTA", "0.01")
	v.SetDefault("HYLO_LST_PRICE_MAX_AGE", 1)
	v.SetDefault("HYLO_FEE_CURVES_FILE", "")
	v.SetDefault("HYLO_LIVE_CLOCK", false)
	v.SetDefault("HYLO_QUOTE_STRATEGY", "local")
	v.SetDefault("HYLO_PRICE_PROVIDER", "none")
	v.SetDefault("HYLO_PRICE_SYMBOL", "SOLUSDT")
	v.SetDefault("HYLO_PRICE_RETRY_INTERVAL", "5s")
	v.SetDefault("HYLO_PRICE_CONF_BPS", 5)
	v.SetDefault("HYLO_PRICE_MOCK_VOLATILITY", 0.002)
	v.SetDefault("HYLO_PRICE_MOCK_BASE_PRICE", 150.0)
	v.SetDefault("HYLO_RATE_LIMIT_RPM", 120)
	v.SetDefault("HYLO_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
}

func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Unmarshal only sees keys viper already knows about, and comma lists
	// need splitting.
	if origins := v.GetString("HYLO_CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v.Set("HYLO_CORS_ALLOWED_ORIGINS", parts)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid HYLO_ENV %q (must be dev, test, or prod)", c.Env)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("HYLO_REDIS_URL is required when HYLO_KV_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid HYLO_KV_BACKEND %q (must be memory or redis)", c.Cache.Backend)
	}
	switch c.Snapshot.Source {
	case "file":
		if c.Snapshot.File == "" {
			return fmt.Errorf("HYLO_SNAPSHOT_FILE is required when HYLO_SNAPSHOT_SOURCE=file")
		}
	case "kv":
	default:
		return fmt.Errorf("invalid HYLO_SNAPSHOT_SOURCE %q (must be file or kv)", c.Snapshot.Source)
	}
	if c.Snapshot.RefreshInterval <= 0 {
		return fmt.Errorf("HYLO_SNAPSHOT_REFRESH_INTERVAL must be positive")
	}
	if _, err := c.Engine.Floor(); err != nil {
		return fmt.Errorf("HYLO_STABILITY_FLOOR: %w", err)
	}
	if _, err := c.Engine.MaxDelta(); err != nil {
		return fmt.Errorf("HYLO_MAX_LST_PRICE_DELTA: %w", err)
	}
	switch c.Engine.Strategy {
	case "local", "reference":
	default:
		return fmt.Errorf("invalid HYLO_QUOTE_STRATEGY %q (must be local or reference)", c.Engine.Strategy)
	}
	switch c.Prices.Provider {
	case "none", "mock", "binance":
	default:
		return fmt.Errorf("invalid HYLO_PRICE_PROVIDER %q (must be none, mock, or binance)", c.Prices.Provider)
	}
	if c.Prices.ConfBps < 0 || c.Prices.ConfBps >= 10_000 {
		return fmt.Errorf("HYLO_PRICE_CONF_BPS must be in [0, 10000)")
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("HYLO_RATE_LIMIT_RPM must be positive")
	}
	return nil
}

// Floor parses the configured depeg floor. Zero means keep the snapshot's.
func (e EngineConfig) Floor() (fix.UFix64[fix.N2], error) {
	if e.StabilityFloor == "" {
		return fix.Zero[fix.N2](), nil
	}
	return fix.Parse[fix.N2](e.StabilityFloor)
}

// MaxDelta parses the LST price delta bound.
func (e EngineConfig) MaxDelta() (fix.UFix64[fix.N9], error) {
	if e.MaxLstPriceDelta == "" {
		return fix.Zero[fix.N9](), nil
	}
	return fix.Parse[fix.N9](e.MaxLstPriceDelta)
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
