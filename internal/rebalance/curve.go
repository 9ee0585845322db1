// Package rebalance prices collateral trades against USDC from the oracle
// range and the protocol's collateral ratio.
package rebalance

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/interp"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// CR domain boundaries.
var (
	sellFloorCR = fix.NewSigned[fix.N9](1_200_000_000)
	sellCeilCR  = fix.NewSigned[fix.N9](1_350_000_000)
	buyFloorCR  = fix.NewSigned[fix.N9](1_650_000_000)
	buyCeilCR   = fix.NewSigned[fix.N9](1_750_000_000)
)

// CurveConfig scales the oracle confidence interval to place the curve
// endpoints below and above spot.
type CurveConfig struct {
	FloorMult fix.UFix64[fix.N2] `json:"floor_mult" yaml:"floor_mult"`
	CeilMult  fix.UFix64[fix.N2] `json:"ceil_mult" yaml:"ceil_mult"`
}

func NewCurveConfig(floorMult, ceilMult fix.UFix64[fix.N2]) CurveConfig {
	return CurveConfig{FloorMult: floorMult, CeilMult: ceilMult}
}

func (c CurveConfig) Validate() error {
	if c.FloorMult.IsZero() || c.CeilMult.IsZero() {
		return ErrCurveConfig
	}
	return nil
}

// PriceController quotes the collateral price for a collateral ratio.
type PriceController interface {
	Price(cr fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], error)
}

// SellCurve is active while CR is low. Below 1.20 the price is held at the
// floor; above 1.35 the route is closed.
type SellCurve struct {
	curve *interp.Curve[fix.N9]
}

// BuyCurve is active while CR is high. Below 1.65 the route is closed; above
// 1.75 the price is held at the ceiling.
type BuyCurve struct {
	curve *interp.Curve[fix.N9]
}

func NewSellCurve(price oracle.OraclePrice, cfg CurveConfig) (*SellCurve, error) {
	curve, err := build(price, cfg, sellFloorCR, sellCeilCR)
	if err != nil {
		return nil, err
	}
	return &SellCurve{curve: curve}, nil
}

func NewBuyCurve(price oracle.OraclePrice, cfg CurveConfig) (*BuyCurve, error) {
	curve, err := build(price, cfg, buyFloorCR, buyCeilCR)
	if err != nil {
		return nil, err
	}
	return &BuyCurve{curve: curve}, nil
}

func (s *SellCurve) Curve() *interp.Curve[fix.N9] { return s.curve }
func (b *BuyCurve) Curve() *interp.Curve[fix.N9]  { return b.curve }

func (s *SellCurve) Price(ucr fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], error) {
	cr, err := ucr.Signed()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrPriceConversion, err)
	}
	switch {
	case cr.Lt(s.curve.XMin()):
		return unsigned(s.curve.YMin())
	case cr.Gt(s.curve.XMax()):
		return fix.UFix64[fix.N9]{}, ErrSellInactive
	}
	price, err := s.curve.Interpolate(cr)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	return unsigned(price)
}

func (b *BuyCurve) Price(ucr fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], error) {
	cr, err := ucr.Signed()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrPriceConversion, err)
	}
	switch {
	case cr.Lt(b.curve.XMin()):
		return fix.UFix64[fix.N9]{}, ErrBuyInactive
	case cr.Gt(b.curve.XMax()):
		return unsigned(b.curve.YMax())
	}
	price, err := b.curve.Interpolate(cr)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	return unsigned(price)
}

func build(price oracle.OraclePrice, cfg CurveConfig, x0, x1 fix.IFix64[fix.N9]) (*interp.Curve[fix.N9], error) {
	below, err := fix.MulDivCeil(price.Conf, cfg.FloorMult, fix.One[fix.N2]())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConstruction, err)
	}
	above, err := fix.MulDivCeil(price.Conf, cfg.CeilMult, fix.One[fix.N2]())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConstruction, err)
	}
	floor, err := price.Spot.CheckedSub(below)
	if err != nil {
		return nil, fmt.Errorf("%w: floor below zero", ErrPriceConstruction)
	}
	ceil, err := price.Spot.CheckedAdd(above)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConstruction, err)
	}
	y0, err := floor.Signed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConversion, err)
	}
	y1, err := ceil.Signed()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConversion, err)
	}
	curve, err := interp.New([]interp.Point[fix.N9]{{X: x0, Y: y0}, {X: x1, Y: y1}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceConstruction, err)
	}
	if !curve.YMin().Gt(fix.NewSigned[fix.N9](0)) || !curve.YMin().Lt(curve.YMax()) {
		return nil, fmt.Errorf("%w: floor %s ceil %s", ErrPriceConstruction, curve.YMin(), curve.YMax())
	}
	return curve, nil
}

func unsigned(v fix.IFix64[fix.N9]) (fix.UFix64[fix.N9], error) {
	u, err := v.Unsigned()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrPriceConversion, err)
	}
	return u, nil
}
