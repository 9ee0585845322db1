package fees

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/interp"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

//go:embed curves.toml
var defaultCurvesTOML []byte

// CurveTable is the on-disk form of the fee curves.
type CurveTable struct {
	Version int       `toml:"version"`
	Mint    CurveSpec `toml:"mint"`
	Redeem  CurveSpec `toml:"redeem"`
}

type CurveSpec struct {
	Shape  string    `toml:"shape"`
	Points [][]int64 `toml:"points"`
}

func (s CurveSpec) build() (*interp.Curve[fix.N5], error) {
	for i, p := range s.Points {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: point %d has %d coordinates", ErrCurveTable, i, len(p))
		}
	}
	points := lo.Map(s.Points, func(p []int64, _ int) interp.Point[fix.N5] {
		return interp.P[fix.N5](p[0], p[1])
	})
	curve, err := interp.New(points)
	if err != nil {
		return nil, fmt.Errorf("%w: %s curve: %v", ErrCurveTable, s.Shape, err)
	}
	return curve, nil
}

// Curves holds the mint and redeem fee controllers built from one table.
type Curves struct {
	Version int
	Mint    *CurveController
	Redeem  *CurveController
}

// ParseCurves decodes and validates a TOML curve table.
func ParseCurves(data []byte) (*Curves, error) {
	var table CurveTable
	if _, err := toml.Decode(string(data), &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCurveTable, err)
	}
	if table.Version < 1 {
		return nil, fmt.Errorf("%w: missing version", ErrCurveTable)
	}
	mint, err := table.Mint.build()
	if err != nil {
		return nil, err
	}
	redeem, err := table.Redeem.build()
	if err != nil {
		return nil, err
	}
	return &Curves{
		Version: table.Version,
		Mint:    NewMintCurve(mint),
		Redeem:  NewRedeemCurve(redeem),
	}, nil
}

var (
	defaultOnce   sync.Once
	defaultCurves *Curves
	defaultErr    error
)

// DefaultCurves returns the embedded curve table, parsed once.
func DefaultCurves() (*Curves, error) {
	defaultOnce.Do(func() {
		defaultCurves, defaultErr = ParseCurves(defaultCurvesTOML)
	})
	return defaultCurves, defaultErr
}

// CurveController prices fees by interpolating over the collateral ratio.
// Above the curve domain the last fee applies. Below it, a mint curve has no
// valid fee and a redeem curve charges its first fee.
type CurveController struct {
	curve       *interp.Curve[fix.N5]
	belowDomain error
}

func NewMintCurve(c *interp.Curve[fix.N5]) *CurveController {
	return &CurveController{curve: c, belowDomain: ErrNoStablecoinMintFee}
}

func NewRedeemCurve(c *interp.Curve[fix.N5]) *CurveController {
	return &CurveController{curve: c}
}

func (c *CurveController) Curve() *interp.Curve[fix.N5] { return c.curve }

// NarrowCR truncates a CR to the curve's N5 precision.
func NarrowCR(cr fix.UFix64[fix.N9]) (fix.IFix64[fix.N5], error) {
	n5, err := fix.Convert[fix.N5](cr)
	if err != nil {
		return fix.IFix64[fix.N5]{}, fmt.Errorf("%w: %v", ErrCRConversion, err)
	}
	s, err := n5.Signed()
	if err != nil {
		return fix.IFix64[fix.N5]{}, fmt.Errorf("%w: %v", ErrCRConversion, err)
	}
	return s, nil
}

// Fee returns the rate at the given collateral ratio.
func (c *CurveController) Fee(cr fix.UFix64[fix.N9]) (fix.UFix64[fix.N5], error) {
	x, err := NarrowCR(cr)
	if err != nil {
		return fix.UFix64[fix.N5]{}, err
	}
	var y fix.IFix64[fix.N5]
	switch {
	case x.Lt(c.curve.XMin()):
		if c.belowDomain != nil {
			return fix.UFix64[fix.N5]{}, c.belowDomain
		}
		y = c.curve.YMin()
	case x.Gt(c.curve.XMax()):
		y = c.curve.YMax()
	default:
		if y, err = c.curve.Interpolate(x); err != nil {
			return fix.UFix64[fix.N5]{}, err
		}
	}
	fee, err := y.Unsigned()
	if err != nil {
		return fix.UFix64[fix.N5]{}, ErrFeeConversion
	}
	return fee, nil
}

// CRFloor is the lowest CR the curve is defined for, as an N2 threshold.
func (c *CurveController) CRFloor() (fix.UFix64[fix.N2], error) {
	x, err := c.curve.XMin().Unsigned()
	if err != nil {
		return fix.UFix64[fix.N2]{}, ErrFeeConversion
	}
	floor, err := fix.Convert[fix.N2](x)
	if err != nil {
		return fix.UFix64[fix.N2]{}, ErrFeeConversion
	}
	return floor, nil
}

// ApplyCurve extracts the curve fee at cr from amount.
func ApplyCurve[S fix.Scale](c *CurveController, cr fix.UFix64[fix.N9], amount fix.UFix64[S]) (Extract[S], error) {
	fee, err := c.Fee(cr)
	if err != nil {
		return Extract[S]{}, err
	}
	return NewExtract(fee, amount)
}

// Rate is a fee rate resolved either from a mode table or a curve. Curve
// rates carry one more decimal than table rates, so both are lifted to N5.
type Rate = fix.UFix64[fix.N5]

// Inputs carries what either fee family needs to price an operation.
type Inputs struct {
	Mode stability.Mode
	CR   fix.UFix64[fix.N9]
}

// CollateralFees prices stablecoin mints and redemptions against
// collateral.
type CollateralFees interface {
	MintRate(in Inputs) (Rate, error)
	RedeemRate(in Inputs) (Rate, error)
}

// CurveFees prices by the projected collateral ratio.
type CurveFees struct {
	Mint   *CurveController
	Redeem *CurveController
}

func (c CurveFees) MintRate(in Inputs) (Rate, error)   { return c.Mint.Fee(in.CR) }
func (c CurveFees) RedeemRate(in Inputs) (Rate, error) { return c.Redeem.Fee(in.CR) }

// TableFees prices by the projected stability mode.
type TableFees struct {
	Controller Controller
}

func (t TableFees) MintRate(in Inputs) (Rate, error) {
	fee, err := t.Controller.MintFee(in.Mode)
	if err != nil {
		return Rate{}, err
	}
	return fix.Convert[fix.N5](fee)
}

func (t TableFees) RedeemRate(in Inputs) (Rate, error) {
	fee, err := t.Controller.RedeemFee(in.Mode)
	if err != nil {
		return Rate{}, err
	}
	return fix.Convert[fix.N5](fee)
}

var (
	_ CollateralFees = CurveFees{}
	_ CollateralFees = TableFees{}
)
