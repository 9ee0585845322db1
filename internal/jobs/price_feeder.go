package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/internal/prices"
	"github.com/hylo-so/hylo-engine/internal/prices/mock"
	"github.com/hylo-so/hylo-engine/internal/store"
)

// Invalidator drops derived state after an input changes.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// PriceFeeder streams live SOL/USD ticks into the price overlay. It falls
// back to a secondary provider while the primary is down and switches back
// once the primary answers again.
type PriceFeeder struct {
	provider prices.Provider
	fallback prices.Provider
	overlay  *prices.Overlay
	state    Invalidator
	cache    *store.Cache
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	config   PriceFeederConfig

	mu            sync.Mutex
	usingFallback bool
	cancelSub     context.CancelFunc
}

type PriceFeederConfig struct {
	Symbol        string        // provider symbol, e.g. SOLUSDT
	RetryInterval time.Duration // wait between failed subscriptions and primary rechecks
	TTL           time.Duration // cache TTL for the latest tick
}

func DefaultPriceFeederConfig() PriceFeederConfig {
	return PriceFeederConfig{
		RetryInterval: 5 * time.Second,
		TTL:           time.Minute,
	}
}

func NewPriceFeeder(
	provider, fallback prices.Provider,
	overlay *prices.Overlay,
	state Invalidator,
	cache *store.Cache,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
	config PriceFeederConfig,
) (*PriceFeeder, error) {
	if config.Symbol == "" {
		symbol, err := prices.NewRegistry().ProviderSymbol(prices.FeedSolUsd)
		if err != nil {
			return nil, err
		}
		config.Symbol = symbol
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultPriceFeederConfig().RetryInterval
	}
	if config.TTL <= 0 {
		config.TTL = DefaultPriceFeederConfig().TTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PriceFeeder{
		provider: provider,
		fallback: fallback,
		overlay:  overlay,
		state:    state,
		cache:    cache,
		logger:   logger,
		metrics:  m,
		config:   config,
	}, nil
}

// Start runs until ctx ends.
func (p *PriceFeeder) Start(ctx context.Context) error {
	p.logger.Infow("Starting price feeder",
		"provider", p.provider.Name(),
		"symbol", p.config.Symbol,
	)

	ticks := make(chan prices.Tick, 100)
	go p.consume(ctx, ticks)
	go p.subscribe(ctx, ticks)

	recheck := time.NewTicker(p.config.RetryInterval)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Price feeder stopping")
			return ctx.Err()
		case <-recheck.C:
			p.recheckPrimary(ctx)
		}
	}
}

func (p *PriceFeeder) consume(ctx context.Context, ticks <-chan prices.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticks:
			p.Process(ctx, tick)
		}
	}
}

func (p *PriceFeeder) subscribe(ctx context.Context, ticks chan<- prices.Tick) {
	for ctx.Err() == nil {
		provider, subCtx := p.current(ctx)
		err := provider.SubscribeLive(subCtx, p.config.Symbol, ticks)
		if ctx.Err() != nil {
			return
		}
		if subCtx.Err() == nil {
			p.logger.Warnw("Live subscription ended",
				"provider", provider.Name(),
				"symbol", p.config.Symbol,
				"error", err,
			)
			if provider == p.provider {
				p.useFallback("live subscription failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.RetryInterval):
			}
		}
	}
}

// current returns the active provider with a context that ends when the
// provider is switched.
func (p *PriceFeeder) current(ctx context.Context) (prices.Provider, context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelSub != nil {
		p.cancelSub()
	}
	subCtx, cancel := context.WithCancel(ctx)
	p.cancelSub = cancel
	if p.usingFallback {
		return p.fallback, subCtx
	}
	return p.provider, subCtx
}

// Process applies one tick. Ticks older than the current one are dropped.
func (p *PriceFeeder) Process(ctx context.Context, tick prices.Tick) {
	if !p.overlay.Update(tick) {
		return
	}
	p.metrics.RecordPriceTick(ctx, p.activeName())

	if err := p.cache.Set(ctx, fmt.Sprintf("%s:%s", store.KeyPriceLatest, tick.Symbol), tick, p.config.TTL); err != nil {
		p.logger.Warnw("Failed to cache tick", "symbol", tick.Symbol, "error", err)
	}
	if p.state != nil {
		p.state.Invalidate(ctx)
	}
	if err := p.cache.Publish(ctx, store.ChannelPrice, tick); err != nil {
		p.logger.Warnw("Failed to publish tick", "symbol", tick.Symbol, "error", err)
		return
	}
	p.logger.Debugw("Published tick", "symbol", tick.Symbol, "price", tick.Price)
}

func (p *PriceFeeder) activeName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.usingFallback {
		return p.fallback.Name()
	}
	return p.provider.Name()
}

func (p *PriceFeeder) UsingFallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usingFallback
}

func (p *PriceFeeder) useFallback(reason string) {
	if p.fallback == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.usingFallback {
		return
	}
	p.usingFallback = true
	p.logger.Warnw("Switching to fallback price provider",
		"reason", reason,
		"provider", p.provider.Name(),
		"fallback", p.fallback.Name(),
	)

	// Continue the walk from the last real price.
	if gen, ok := p.fallback.(*mock.Generator); ok {
		if last, ok := p.overlay.Latest(); ok {
			gen.SetBasePrice(last.Price.InexactFloat64())
		}
	}
}

// recheckPrimary switches back to the primary provider once it serves a price.
func (p *PriceFeeder) recheckPrimary(ctx context.Context) {
	if !p.UsingFallback() {
		return
	}
	if _, err := p.provider.LatestPrice(ctx, p.config.Symbol); err != nil {
		p.logger.Debugw("Primary provider still unavailable", "provider", p.provider.Name(), "error", err)
		return
	}

	p.mu.Lock()
	p.usingFallback = false
	cancel := p.cancelSub
	p.mu.Unlock()

	p.logger.Infow("Primary provider recovered, switching back", "provider", p.provider.Name())
	if cancel != nil {
		cancel()
	}
}
