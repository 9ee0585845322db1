// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/pkg/kv"
)

// StoreFactory creates a fresh, empty Store for one subtest
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, store kv.Store)
	}{
		{"SetGet", testSetGet},
		{"GetMissing", testGetMissing},
		{"Overwrite", testOverwrite},
		{"Del", testDel},
		{"Exists", testExists},
		{"TTL", testTTL},
		{"Expiry", testExpiry},
		{"IncrBy", testIncrBy},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	value := []byte(`{"epoch":500}`)

	require.NoError(t, store.Set(ctx, "test:snapshot", value))

	got, err := store.Get(ctx, "test:snapshot")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func testGetMissing(t *testing.T, store kv.Store) {
	_, err := store.Get(context.Background(), "test:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:k", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "test:k", []byte("two")))

	got, err := store.Get(ctx, "test:k")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	ttl, err := store.TTL(ctx, "test:k")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:a", []byte("1")))
	require.NoError(t, store.Set(ctx, "test:b", []byte("2")))

	n, err := store.Del(ctx, "test:a", "test:b", "test:c")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = store.Get(ctx, "test:a")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:a", []byte("1")))

	n, err := store.Exists(ctx, "test:a", "test:missing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.TTL(ctx, "test:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "test:ttl", []byte("v"), time.Minute))
	ttl, err := store.TTL(ctx, "test:ttl")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func testExpiry(t *testing.T, store kv.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "test:short", []byte("v"), 100*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "test:short")
		return err == kv.ErrNotFound
	}, 2*time.Second, 20*time.Millisecond)

	n, err := store.Exists(ctx, "test:short")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "test:counter", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)

	v, err = store.IncrBy(ctx, "test:counter", -2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	got, err := store.Get(ctx, "test:counter")
	require.NoError(t, err)
	assert.Equal(t, "3", string(got))

	require.NoError(t, store.Set(ctx, "test:text", []byte("abc")))
	_, err = store.IncrBy(ctx, "test:text", 1)
	assert.Error(t, err)
}

func testPing(t *testing.T, store kv.Store) {
	assert.NoError(t, store.Ping(context.Background()))
}
