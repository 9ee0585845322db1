package mock

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/prices"
)

func TestGeneratorStaysInBand(t *testing.T) {
	g := NewGenerator(nil, 150, 0.05).WithSeed(7)

	low, high := decimal.NewFromInt(75), decimal.NewFromInt(225)
	for i := 0; i < 2_000; i++ {
		tick, err := g.LatestPrice(context.Background(), "SOLUSDT")
		require.NoError(t, err)
		assert.True(t, tick.Price.GreaterThanOrEqual(low), "price %s below band", tick.Price)
		assert.True(t, tick.Price.LessThanOrEqual(high), "price %s above band", tick.Price)
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	a := NewGenerator(nil, 150, 0.002).WithSeed(42)
	b := NewGenerator(nil, 150, 0.002).WithSeed(42)

	for i := 0; i < 10; i++ {
		ta, _ := a.LatestPrice(context.Background(), "SOLUSDT")
		tb, _ := b.LatestPrice(context.Background(), "SOLUSDT")
		assert.True(t, ta.Price.Equal(tb.Price))
	}
}

func TestGeneratorSubscribeLive(t *testing.T) {
	g := NewGenerator(nil, 150, 0.002).WithInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan prices.Tick, 8)
	done := make(chan error, 1)
	go func() { done <- g.SubscribeLive(ctx, "SOLUSDT", out) }()

	var ticks []prices.Tick
	for len(ticks) < 3 {
		select {
		case tick := <-out:
			ticks = append(ticks, tick)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, "SOLUSDT", ticks[0].Symbol)
	assert.True(t, g.Health().Healthy)
}

func TestSetBasePrice(t *testing.T) {
	g := NewGenerator(nil, 0, 0)
	assert.Equal(t, 150.0, g.BasePrice())

	g.SetBasePrice(-1)
	assert.Equal(t, 150.0, g.BasePrice())

	g.SetBasePrice(20)
	tick, err := g.LatestPrice(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.True(t, tick.Price.LessThanOrEqual(decimal.NewFromInt(30)))
}
