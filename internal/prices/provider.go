package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// FeedExponent is the exponent of feeds built from ticks, matching Pyth's
// SOL/USD account.
const FeedExponent = -8

var ErrBadTick = errors.New("invalid price tick")

// Tick represents a single price update
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	// Spread is ask minus bid for book quotes, zero for trade prints.
	Spread decimal.Decimal `json:"spread"`
	TsMs   int64           `json:"ts"` // milliseconds since epoch
}

// Time returns the tick timestamp.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.TsMs)
}

// Feed converts the tick into a fully verified pull-oracle update posted at
// slot. The confidence is confBps of the price or half the book spread,
// whichever is wider.
func (t Tick) Feed(confBps int64, slot uint64) (oracle.PriceFeed, error) {
	if !t.Price.IsPositive() {
		return oracle.PriceFeed{}, fmt.Errorf("%w: price %s", ErrBadTick, t.Price)
	}
	raw := t.Price.Shift(-FeedExponent).Round(0)
	if !raw.BigInt().IsInt64() {
		return oracle.PriceFeed{}, fmt.Errorf("%w: price %s out of range", ErrBadTick, t.Price)
	}
	price := raw.IntPart()
	conf := raw.Mul(decimal.NewFromInt(confBps)).Div(decimal.NewFromInt(10_000)).Floor().IntPart()
	if half := t.Spread.Shift(-FeedExponent).Div(decimal.NewFromInt(2)).Ceil(); half.IsPositive() {
		if !half.BigInt().IsInt64() {
			return oracle.PriceFeed{}, fmt.Errorf("%w: spread %s out of range", ErrBadTick, t.Spread)
		}
		conf = max(conf, half.IntPart())
	}

	return oracle.PriceFeed{
		Price:        price,
		Conf:         uint64(conf),
		Exponent:     FeedExponent,
		PublishTime:  t.TsMs / 1000,
		PostedSlot:   slot,
		Verification: oracle.VerificationFull,
	}, nil
}

// Provider streams live prices for a provider-specific symbol.
type Provider interface {
	// SubscribeLive sends ticks to out until ctx ends or the stream fails.
	SubscribeLive(ctx context.Context, symbol string, out chan<- Tick) error

	// LatestPrice fetches a single current price.
	LatestPrice(ctx context.Context, symbol string) (Tick, error)

	Name() string

	Health() ProviderHealth
}

// ProviderHealth represents the current status of a provider
type ProviderHealth struct {
	Healthy     bool      `json:"healthy"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Reconnects  int       `json:"reconnects"`
}
