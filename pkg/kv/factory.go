package kv

import (
	"context"
	"fmt"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	Backend Backend

	// RedisURL accepts redis://[:password@]host:port/db or a bare host:port.
	RedisURL string

	// JanitorInterval controls how often the in-memory store evicts expired
	// keys. Zero means 30 seconds.
	JanitorInterval time.Duration

	// FailoverEnabled keeps an in-memory store behind redis and switches to
	// it while redis is unreachable.
	FailoverEnabled bool

	// HealthCheckInterval is how often a failed-over store pings redis.
	HealthCheckInterval time.Duration
	StartupPingTimeout  time.Duration

	// Logger receives failover events. Nil disables logging.
	Logger LogFunc
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

func (c *Config) applyDefaults() {
	if c.JanitorInterval == 0 {
		c.JanitorInterval = 30 * time.Second
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = 5 * time.Second
	}
	if c.StartupPingTimeout == 0 {
		c.StartupPingTimeout = time.Second
	}
	if c.Logger == nil {
		c.Logger = func(string, ...any) {}
	}
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration
func NewStoreFromConfig(cfg Config) (Store, error) {
	cfg.applyDefaults()

	switch cfg.Backend {
	case BackendMemory, "":
		return build(BackendMemory, cfg)
	case BackendRedis:
		return newRedisWithFallback(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

func build(backend Backend, cfg Config) (Store, error) {
	factory, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", backend)
	}
	return factory(cfg)
}

func newRedisWithFallback(cfg Config) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	memoryStore, err := build(BackendMemory, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store for failover: %w", err)
	}

	redisStore, err := build(BackendRedis, cfg)
	if err != nil {
		cfg.Logger("Redis unavailable at startup; using in-memory store", "error", err.Error())
		return memoryStore, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupPingTimeout)
	defer cancel()
	pingErr := redisStore.Ping(ctx)

	if !cfg.FailoverEnabled {
		if pingErr != nil {
			_ = redisStore.Close()
			cfg.Logger("Redis health check failed at startup, using in-memory store", "error", pingErr.Error())
			return memoryStore, nil
		}
		_ = memoryStore.Close()
		return redisStore, nil
	}

	if pingErr != nil {
		cfg.Logger("Redis unhealthy at startup; using in-memory store (will retry in background)",
			"error", pingErr.Error())
		return NewFailoverStoreWithFallbackActive(redisStore, memoryStore, cfg.HealthCheckInterval, cfg.Logger), nil
	}

	cfg.Logger("Redis healthy at startup; using Redis with in-memory failover")
	return NewFailoverStore(redisStore, memoryStore, cfg.HealthCheckInterval, cfg.Logger), nil
}
