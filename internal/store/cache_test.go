package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/pkg/kv"
	"github.com/hylo-so/hylo-engine/pkg/kv/memory"
	kvredis "github.com/hylo-so/hylo-engine/pkg/kv/redis"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := NewCache(memory.New(0), nil, nil, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type summary struct {
		Epoch uint64 `json:"epoch"`
		Mode  string `json:"mode"`
	}

	var got summary
	assert.ErrorIs(t, c.GetProtocolState(ctx, &got), ErrCacheMiss)

	require.NoError(t, c.SetProtocolState(ctx, summary{Epoch: 500, Mode: "Normal"}, time.Minute))
	require.NoError(t, c.GetProtocolState(ctx, &got))
	assert.Equal(t, summary{Epoch: 500, Mode: "Normal"}, got)

	ok, err := c.Exists(ctx, KeyProtocolState)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, KeyProtocolState))
	assert.ErrorIs(t, c.GetProtocolState(ctx, &got), ErrCacheMiss)
}

func TestCacheQuotes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetQuote(ctx, "abc", map[string]string{"out": "1.0"}, time.Minute))

	var got map[string]string
	require.NoError(t, c.GetQuote(ctx, "abc", &got))
	assert.Equal(t, "1.0", got["out"])

	raw, err := c.KV().Get(ctx, "hylo:quotes:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"out":"1.0"}`, string(raw))

	for i := int64(1); i <= 3; i++ {
		n, err := c.CountQuote(ctx, "JitoSOL->hyUSD")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
}

func TestCacheUnmarshalError(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.KV().Set(ctx, KeyProtocolState, []byte("not json")))

	var got map[string]any
	err := c.GetProtocolState(ctx, &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestInMemoryPubSub(t *testing.T) {
	c := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := c.Subscribe(ctx, ChannelProtocolState)
	defer sub.Close()

	require.NoError(t, c.Publish(ctx, ChannelProtocolState, map[string]any{"epoch": 501}))
	require.NoError(t, c.Publish(ctx, ChannelPrice, map[string]any{"ignored": true}))

	select {
	case msg := <-sub.Channel():
		require.NotNil(t, msg)
		assert.Equal(t, ChannelProtocolState, msg.Channel)

		var payload map[string]int
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, 501, payload["epoch"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for pubsub message")
	}

	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected message on %s", msg.Channel)
	default:
	}
}

func TestPubSubHubUnsubscribesOnCancel(t *testing.T) {
	hub := NewPubSubHub()
	ctx, cancel := context.WithCancel(context.Background())

	sub := hub.Subscribe(ctx, ChannelPrice, ChannelProtocolState)
	assert.Equal(t, 1, hub.Subscribers(ChannelPrice))

	cancel()
	assert.Eventually(t, func() bool {
		return hub.Subscribers(ChannelPrice) == 0 && hub.Subscribers(ChannelProtocolState) == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-sub.Channel()
	assert.False(t, open)
}

func TestBusFor(t *testing.T) {
	r, err := kvredis.New("redis://127.0.0.1:6379/0")
	require.NoError(t, err)
	failover := kv.NewFailoverStore(r, memory.New(0), time.Second, nil)
	defer failover.Close()

	tests := []struct {
		name  string
		store kv.Store
		redis bool
	}{
		{"memory", memory.New(0), false},
		{"redis", r, true},
		{"failover over redis", failover, true},
		{"failover over memory", kv.NewFailoverStore(memory.New(0), memory.New(0), time.Second, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isRedis := BusFor(tt.store).(*RedisBus)
			assert.Equal(t, tt.redis, isRedis)
		})
	}
}
