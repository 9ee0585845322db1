package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/pkg/kv"
	kvredis "github.com/hylo-so/hylo-engine/pkg/kv/redis"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache keys and pub/sub channels
const (
	KeySnapshotLatest = "hylo:snapshot:latest"
	KeyProtocolState  = "hylo:protocol:state"
	KeyQuote          = "hylo:quotes"
	KeyQuoteCount     = "hylo:quotes:count"
	KeyPriceLatest    = "hylo:prices:latest"

	ChannelProtocolState = "hylo:events:state"
	ChannelPrice         = "hylo:events:price"
)

// Cache stores JSON values in a kv.Store and publishes events on a Bus.
type Cache struct {
	kv  kv.Store
	bus Bus

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewCache(store kv.Store, bus Bus, logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	if bus == nil {
		bus = NewPubSubHub()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cache{kv: store, bus: bus, logger: logger, metrics: m}
}

// BusFor picks redis pub/sub when store is redis-backed, directly or behind
// a failover wrapper, and an in-process hub otherwise.
func BusFor(store kv.Store) Bus {
	switch s := store.(type) {
	case *kvredis.Store:
		return NewRedisBus(s.Client())
	case *kv.FailoverStore:
		if r, ok := s.Primary().(*kvredis.Store); ok {
			return NewRedisBus(r.Client())
		}
	}
	return NewPubSubHub()
}

// KV exposes the underlying store.
func (c *Cache) KV() kv.Store {
	return c.kv
}

// metricKey strips ids so cache metrics keep a bounded label set.
func metricKey(key string) string {
	switch {
	case strings.HasPrefix(key, KeyQuoteCount+":"):
		return KeyQuoteCount
	case strings.HasPrefix(key, KeyQuote+":"):
		return KeyQuote
	}
	return key
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			c.metrics.RecordCacheMiss(ctx, metricKey(key))
			return ErrCacheMiss
		}
		c.logger.Errorw("Cache get error", "key", key, "error", err)
		return fmt.Errorf("cache get error: %w", err)
	}
	c.metrics.RecordCacheHit(ctx, metricKey(key))
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.kv.Set(ctx, key, data, ttl); err != nil {
		c.logger.Errorw("Cache set error", "key", key, "error", err)
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.kv.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	return count > 0, nil
}

func (c *Cache) GetProtocolState(ctx context.Context, dest any) error {
	return c.Get(ctx, KeyProtocolState, dest)
}

func (c *Cache) SetProtocolState(ctx context.Context, value any, ttl time.Duration) error {
	return c.Set(ctx, KeyProtocolState, value, ttl)
}

func quoteKey(id string) string {
	return fmt.Sprintf("%s:%s", KeyQuote, id)
}

func (c *Cache) GetQuote(ctx context.Context, id string, dest any) error {
	return c.Get(ctx, quoteKey(id), dest)
}

func (c *Cache) SetQuote(ctx context.Context, id string, value any, ttl time.Duration) error {
	return c.Set(ctx, quoteKey(id), value, ttl)
}

// CountQuote bumps the per-pair quote counter and returns the new total.
func (c *Cache) CountQuote(ctx context.Context, pair string) (int64, error) {
	n, err := c.kv.IncrBy(ctx, fmt.Sprintf("%s:%s", KeyQuoteCount, pair), 1)
	if err != nil {
		return 0, fmt.Errorf("cache incr error: %w", err)
	}
	return n, nil
}

func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}
	if err := c.bus.Publish(ctx, channel, data); err != nil {
		c.logger.Errorw("Publish error", "channel", channel, "error", err)
		return fmt.Errorf("pubsub publish error: %w", err)
	}
	return nil
}

func (c *Cache) Subscribe(ctx context.Context, channels ...string) Subscription {
	return c.bus.Subscribe(ctx, channels...)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.kv.Ping(ctx)
}

func (c *Cache) Close() error {
	return c.kv.Close()
}
