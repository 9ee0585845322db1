package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/stability"
	"github.com/hylo-so/hylo-engine/internal/store"
)

const (
	StrategyLocal     = "local"
	StrategyReference = "reference"
)

// NewStrategy resolves a strategy name against a state provider.
func NewStrategy(name string, states quote.StateProvider) (quote.Strategy, error) {
	switch name {
	case "", StrategyLocal:
		return quote.NewLocalStrategy(states), nil
	case StrategyReference:
		return quote.NewReferenceStrategy(states), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Quote is a priced operation as served to clients and kept in the cache
// until it expires.
type Quote struct {
	ID        string          `json:"quote_id"`
	Pair      quote.Pair      `json:"pair"`
	Operation quote.Operation `json:"operation"`
	Strategy  string          `json:"strategy"`
	Mode      stability.Mode  `json:"stability_mode"`
	Slot      uint64          `json:"slot"`
	quote.OperationOutput

	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`

	TTLSec    int       `json:"ttl_sec"`
	AsOf      time.Time `json:"as_of"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QuoteService prices pairs against the current protocol state and caches
// each quote under a fresh id for its TTL.
type QuoteService struct {
	protocol *ProtocolService
	cache    *store.Cache
	strategy string
	ttl      time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewQuoteService(
	protocol *ProtocolService,
	cache *store.Cache,
	strategy string,
	ttl time.Duration,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) (*QuoteService, error) {
	if _, err := NewStrategy(strategy, protocol); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = StrategyLocal
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &QuoteService{
		protocol: protocol,
		cache:    cache,
		strategy: strategy,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Quote prices amountIn raw units of pair.In.
func (s *QuoteService) Quote(ctx context.Context, pair quote.Pair, amountIn uint64) (q *Quote, err error) {
	start := s.now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.RecordQuote(ctx, pair.String(), outcome, time.Since(start))
	}()

	op, err := pair.Operation()
	if err != nil {
		return nil, err
	}
	st, err := s.protocol.State(ctx)
	if err != nil {
		return nil, err
	}
	// Price against the state fetched above so the reported mode and slot
	// match the numbers.
	strategy, err := NewStrategy(s.strategy, quote.Static(st))
	if err != nil {
		return nil, err
	}
	out, err := strategy.Quote(ctx, pair, amountIn)
	if err != nil {
		return nil, err
	}

	mode := st.Lst().Mode()
	if op.Exo() {
		if exo, err := st.Exo(); err == nil {
			mode = exo.Mode()
		}
	}
	now := s.now().UTC()
	q = &Quote{
		ID:              uuid.NewString(),
		Pair:            pair,
		Operation:       op,
		Strategy:        s.strategy,
		Mode:            mode,
		Slot:            st.Clock().Slot(),
		OperationOutput: out,
		AmountIn:        FormatAmount(pair.In, out.InAmount),
		AmountOut:       FormatAmount(pair.Out, out.OutAmount),
		Fee:             FormatAmount(out.FeeMint, out.FeeAmount),
		TTLSec:          int(s.ttl / time.Second),
		AsOf:            now,
		ExpiresAt:       now.Add(s.ttl),
	}

	if err := s.cache.SetQuote(ctx, q.ID, q, s.ttl); err != nil {
		s.logger.Warnw("Failed to cache quote", "quote_id", q.ID, "error", err)
	}
	if _, err := s.cache.CountQuote(ctx, pair.String()); err != nil {
		s.logger.Warnw("Failed to count quote", "pair", pair.String(), "error", err)
	}
	return q, nil
}

// GetQuote returns a previously issued quote that has not expired.
func (s *QuoteService) GetQuote(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	if err := s.cache.GetQuote(ctx, id, &q); err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
		}
		return nil, err
	}
	if err := calc.ValidateQuote(q.AsOf, time.Duration(q.TTLSec)*time.Second, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteNotFound, err)
	}
	return &q, nil
}

// CheckSlippage fails with calc.ErrSlippageExceeded when q pays out less
// than expectedOut reduced by toleranceBps. Both amounts are raw units of
// the output token, so the scale only carries the integers.
func CheckSlippage(q *Quote, expectedOut, toleranceBps uint64) error {
	if toleranceBps > 10_000 {
		return fmt.Errorf("%w: slippage tolerance %d bps exceeds 10000", ErrInvalidAmount, toleranceBps)
	}
	cfg := calc.NewSlippageConfig(fix.New[fix.N6](expectedOut), toleranceBps)
	return cfg.Validate(fix.New[fix.N6](q.OutAmount))
}

// QuoteCount returns how many quotes were issued for pair.
func (s *QuoteService) QuoteCount(ctx context.Context, pair quote.Pair) (int64, error) {
	var n int64
	err := s.cache.Get(ctx, store.KeyQuoteCount+":"+pair.String(), &n)
	if errors.Is(err, store.ErrCacheMiss) {
		return 0, nil
	}
	return n, err
}

// ParseAmount converts a decimal token amount such as "1.5" into raw units
// of tok.
func ParseAmount(tok quote.Token, s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, s)
	}
	if d.Exponent() < -int32(tok.Decimals) && !d.Equal(d.Truncate(int32(tok.Decimals))) {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, s, tok.Decimals)
	}
	raw := d.Shift(int32(tok.Decimals)).BigInt()
	if !raw.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, s)
	}
	return raw.Uint64(), nil
}

// FormatAmount renders raw units of tok as a decimal string.
func FormatAmount(tok quote.Token, raw uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(tok.Decimals)).StringFixed(int32(tok.Decimals))
}
