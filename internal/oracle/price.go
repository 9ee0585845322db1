package oracle

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// Config bounds the age and spread of accepted prices.
type Config struct {
	IntervalSecs  uint64             `json:"interval_secs" yaml:"interval_secs"`
	ConfTolerance fix.UFix64[fix.N9] `json:"conf_tolerance" yaml:"conf_tolerance"`
}

// OraclePrice is a validated spot price and its confidence interval.
type OraclePrice struct {
	Spot fix.UFix64[fix.N9] `json:"spot"`
	Conf fix.UFix64[fix.N9] `json:"conf"`
}

// Range builds the spot +/- conf range.
func (p OraclePrice) Range() (PriceRange[fix.N9], error) {
	return RangeFromConf(p.Spot, p.Conf)
}

// PriceRange is a pair of prices with Lower <= Upper. Lower is used when
// valuing what the protocol receives, Upper when valuing what it pays out.
type PriceRange[S fix.Scale] struct {
	Lower fix.UFix64[S] `json:"lower"`
	Upper fix.UFix64[S] `json:"upper"`
}

func NewRange[S fix.Scale](lower, upper fix.UFix64[S]) PriceRange[S] {
	return PriceRange[S]{Lower: lower, Upper: upper}
}

// SinglePrice is a degenerate range where both bounds are equal.
func SinglePrice[S fix.Scale](price fix.UFix64[S]) PriceRange[S] {
	return PriceRange[S]{Lower: price, Upper: price}
}

func RangeFromConf[S fix.Scale](spot, conf fix.UFix64[S]) (PriceRange[S], error) {
	lower, err := spot.CheckedSub(conf)
	if err != nil {
		return PriceRange[S]{}, fmt.Errorf("%w: %v", ErrPriceRange, err)
	}
	upper, err := spot.CheckedAdd(conf)
	if err != nil {
		return PriceRange[S]{}, fmt.Errorf("%w: %v", ErrPriceRange, err)
	}
	return PriceRange[S]{Lower: lower, Upper: upper}, nil
}

// ConvertRange rescales both bounds.
func ConvertRange[To, From fix.Scale](r PriceRange[From]) (PriceRange[To], error) {
	lower, err := fix.Convert[To](r.Lower)
	if err != nil {
		return PriceRange[To]{}, fmt.Errorf("%w: %v", ErrPriceRange, err)
	}
	upper, err := fix.Convert[To](r.Upper)
	if err != nil {
		return PriceRange[To]{}, fmt.Errorf("%w: %v", ErrPriceRange, err)
	}
	return PriceRange[To]{Lower: lower, Upper: upper}, nil
}
