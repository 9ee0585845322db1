package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.QuoteTTL)
	assert.Equal(t, 10*time.Second, cfg.Snapshot.RefreshInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
	assert.EqualValues(t, 1, cfg.Engine.LstPriceMaxAge)

	delta, err := cfg.Engine.MaxDelta()
	require.NoError(t, err)
	assert.EqualValues(t, 10_000_000, delta.Bits())

	floor, err := cfg.Engine.Floor()
	require.NoError(t, err)
	assert.True(t, floor.IsZero())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HYLO_ENV", "prod")
	t.Setenv("HYLO_KV_BACKEND", "redis")
	t.Setenv("HYLO_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("HYLO_STABILITY_FLOOR", "1.02")
	t.Setenv("HYLO_SNAPSHOT_REFRESH_INTERVAL", "2s")
	t.Setenv("HYLO_CORS_ALLOWED_ORIGINS", "https://app.hylo.so, https://hylo.so")
	t.Setenv("HYLO_LIVE_CLOCK", "true")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
	assert.Equal(t, 2*time.Second, cfg.Snapshot.RefreshInterval)
	assert.Equal(t, []string{"https://app.hylo.so", "https://hylo.so"}, cfg.Security.CORSAllowedOrigins)
	assert.True(t, cfg.Engine.LiveClock)

	floor, err := cfg.Engine.Floor()
	require.NoError(t, err)
	assert.EqualValues(t, 102, floor.Bits())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		msg  string
	}{
		{"unknown env", "HYLO_ENV", "staging", "HYLO_ENV"},
		{"unknown backend", "HYLO_KV_BACKEND", "etcd", "HYLO_KV_BACKEND"},
		{"unknown source", "HYLO_SNAPSHOT_SOURCE", "rpc", "HYLO_SNAPSHOT_SOURCE"},
		{"floor precision", "HYLO_STABILITY_FLOOR", "1.005", "HYLO_STABILITY_FLOOR"},
		{"delta garbage", "HYLO_MAX_LST_PRICE_DELTA", "one percent", "HYLO_MAX_LST_PRICE_DELTA"},
		{"strategy", "HYLO_QUOTE_STRATEGY", "remote", "HYLO_QUOTE_STRATEGY"},
		{"provider", "HYLO_PRICE_PROVIDER", "coinbase", "HYLO_PRICE_PROVIDER"},
		{"confidence", "HYLO_PRICE_CONF_BPS", "10000", "HYLO_PRICE_CONF_BPS"},
		{"rate limit", "HYLO_RATE_LIMIT_RPM", "0", "HYLO_RATE_LIMIT_RPM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
