package mock

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/prices"
)

// Generator random-walks a price for dev mode and as a fallback when the
// live provider is unreachable.
type Generator struct {
	logger     *zap.SugaredLogger
	mu         sync.RWMutex
	basePrice  float64
	current    float64
	volatility float64
	interval   time.Duration
	health     prices.ProviderHealth
	rng        *rand.Rand
}

// NewGenerator creates a generator around basePrice with per-tick
// volatility expressed as a fraction of the price.
func NewGenerator(logger *zap.SugaredLogger, basePrice, volatility float64) *Generator {
	if basePrice <= 0 {
		basePrice = 150.00
	}
	if volatility <= 0 {
		volatility = 0.002
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Generator{
		logger:     logger,
		basePrice:  basePrice,
		current:    basePrice,
		volatility: volatility,
		interval:   1500 * time.Millisecond,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		health: prices.ProviderHealth{
			Healthy:     true,
			LastSuccess: time.Now(),
		},
	}
}

// WithSeed makes the walk reproducible.
func (g *Generator) WithSeed(seed int64) *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rand.New(rand.NewSource(seed))
	return g
}

// WithInterval sets the delay between live ticks.
func (g *Generator) WithInterval(d time.Duration) *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d > 0 {
		g.interval = d
	}
	return g
}

func (g *Generator) Name() string {
	return "mock"
}

func (g *Generator) Health() prices.ProviderHealth {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.health
}

// LatestPrice advances the walk one step.
func (g *Generator) LatestPrice(_ context.Context, symbol string) (prices.Tick, error) {
	return g.step(symbol), nil
}

// SubscribeLive emits a tick every interval until ctx ends.
func (g *Generator) SubscribeLive(ctx context.Context, symbol string, out chan<- prices.Tick) error {
	g.mu.RLock()
	interval := g.interval
	g.mu.RUnlock()

	g.logger.Infow("Starting mock live price feed", "symbol", symbol, "basePrice", g.BasePrice())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick := g.step(symbol)

			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// Channel full, skip this tick
			}
		}
	}
}

func (g *Generator) step(symbol string) prices.Tick {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current *= 1 + g.priceChange()

	// Stay within +/-50% of base
	g.current = math.Min(math.Max(g.current, g.basePrice*0.5), g.basePrice*1.5)

	g.health.LastSuccess = time.Now()

	return prices.Tick{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(g.current).Round(6),
		TsMs:   time.Now().UnixMilli(),
	}
}

// priceChange draws a normal move with an occasional trend, clamped to five
// times the volatility (must hold lock).
func (g *Generator) priceChange() float64 {
	change := g.rng.NormFloat64() * g.volatility

	if g.rng.Float64() < 0.1 {
		change += (g.rng.Float64() - 0.5) * g.volatility * 2
	}

	maxChange := g.volatility * 5
	return math.Min(math.Max(change, -maxChange), maxChange)
}

// SetBasePrice recentres the walk, for example on the snapshot's oracle
// price.
func (g *Generator) SetBasePrice(price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if price > 0 {
		g.basePrice = price
		g.current = price
	}
}

func (g *Generator) BasePrice() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.basePrice
}
