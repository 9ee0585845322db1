package oracle

import (
	"github.com/shopspring/decimal"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fix"
)

// SwitchboardSlotMillis is the slot time assumed by switchboard staleness.
const SwitchboardSlotMillis = 200

// SwitchboardQuote is a push-oracle quote carrying decimal feed values.
type SwitchboardQuote struct {
	Slot   uint64            `json:"slot" yaml:"slot"`
	Values []decimal.Decimal `json:"values" yaml:"values"`
}

// QuerySwitchboard validates the quote's slot and converts its first value
// to scale S. Switchboard carries no confidence, so the range is a single
// price.
func QuerySwitchboard[S fix.Scale](c clock.Clock, q SwitchboardQuote, cfg Config) (PriceRange[S], error) {
	maxSlots := cfg.IntervalSecs * 1000 / SwitchboardSlotMillis
	var age uint64
	if cur := c.Slot(); cur > q.Slot {
		age = cur - q.Slot
	}
	if age > maxSlots {
		return PriceRange[S]{}, ErrSwitchboardStale
	}
	if len(q.Values) == 0 {
		return PriceRange[S]{}, ErrSwitchboardInvalid
	}
	spot, err := DecimalToFixed[S](q.Values[0])
	if err != nil {
		return PriceRange[S]{}, err
	}
	return RangeFromConf(spot, fix.Zero[S]())
}

// DecimalToFixed truncates a decimal value to scale S.
func DecimalToFixed[S fix.Scale](d decimal.Decimal) (fix.UFix64[S], error) {
	if d.IsNegative() {
		return fix.UFix64[S]{}, ErrSwitchboardInvalid
	}
	v, err := fix.FromDecimal[S](d)
	if err != nil {
		return fix.UFix64[S]{}, ErrSwitchboardRange
	}
	return v, nil
}
