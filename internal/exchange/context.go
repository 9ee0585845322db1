// Package exchange binds validated protocol state into the contexts every
// mint, redeem and swap is priced against.
package exchange

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

// Context is the shared view of one collateral pair.
type Context interface {
	TotalCollateral() fix.UFix64[fix.N9]
	CollateralUsdPrice() oracle.PriceRange[fix.N8]
	StablecoinSupply() fix.UFix64[fix.N6]
	LevercoinSupply() (fix.UFix64[fix.N6], error)
	Controller() stability.Controller
	Mode() stability.Mode
	CollateralRatio() fix.UFix64[fix.N9]
	LevercoinFees() fees.LevercoinFees

	TVL() (fix.UFix64[fix.N9], error)
	StablecoinNav() (fix.UFix64[fix.N9], error)
	LevercoinMintNav() (fix.UFix64[fix.N9], error)
	LevercoinRedeemNav() (fix.UFix64[fix.N9], error)
	ProjectedMode(newTotal fix.UFix64[fix.N9], newStable fix.UFix64[fix.N6]) (stability.Mode, error)
	ModeForFees(projected stability.Mode) stability.Mode
	SwapConversion() (calc.SwapConversion, error)
	StabilityPoolCap(stableInPool, leverInPool fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error)
	MaxMintableStablecoin() (fix.UFix64[fix.N6], error)
	MaxSwappableStablecoin() (fix.UFix64[fix.N6], error)
	MaxSwappableToNextThreshold() (fix.UFix64[fix.N6], error)
	ValidateStablecoinAmount(requested fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error)
	ValidateStablecoinSwapAmount(requested fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error)
	LevercoinToStablecoinFee(amount fix.UFix64[fix.N6]) (fees.Extract[fix.N6], error)
	StablecoinToLevercoinFee(amount fix.UFix64[fix.N6]) (fees.Extract[fix.N6], error)
}

var (
	_ Context = (*LstContext)(nil)
	_ Context = (*ExoContext)(nil)
)

// base carries the state both collateral families share and implements the
// pricing that only depends on it. CR and mode are fixed at construction.
type base struct {
	total      fix.UFix64[fix.N9]
	price      oracle.PriceRange[fix.N8]
	stable     fix.UFix64[fix.N6]
	lever      *fix.UFix64[fix.N6]
	controller stability.Controller
	mode       stability.Mode
	cr         fix.UFix64[fix.N9]
	leverFees  fees.LevercoinFees
	stableFees fees.CollateralFees
}

func newBase(total fix.UFix64[fix.N9], price oracle.PriceRange[fix.N8], stable fix.UFix64[fix.N6], lever *fix.UFix64[fix.N6], controller stability.Controller, leverFees fees.LevercoinFees, stableFees fees.CollateralFees) (base, error) {
	cr, err := calc.CollateralRatio(total, price.Lower, stable)
	if err != nil {
		return base{}, err
	}
	return base{
		total:      total,
		price:      price,
		stable:     stable,
		lever:      lever,
		controller: controller,
		mode:       controller.Mode(cr),
		cr:         cr,
		leverFees:  leverFees,
		stableFees: stableFees,
	}, nil
}

func (b *base) TotalCollateral() fix.UFix64[fix.N9]           { return b.total }
func (b *base) CollateralUsdPrice() oracle.PriceRange[fix.N8] { return b.price }
func (b *base) StablecoinSupply() fix.UFix64[fix.N6]          { return b.stable }
func (b *base) Controller() stability.Controller              { return b.controller }
func (b *base) Mode() stability.Mode                          { return b.mode }
func (b *base) CollateralRatio() fix.UFix64[fix.N9]           { return b.cr }
func (b *base) LevercoinFees() fees.LevercoinFees             { return b.leverFees }
func (b *base) StablecoinFees() fees.CollateralFees           { return b.stableFees }

func (b *base) LevercoinSupply() (fix.UFix64[fix.N6], error) {
	if b.lever == nil {
		return fix.UFix64[fix.N6]{}, ErrLevercoinNav
	}
	return *b.lever, nil
}

func (b *base) TVL() (fix.UFix64[fix.N9], error) {
	return calc.TotalValueLocked(b.total, b.price.Lower)
}

// StablecoinNav is $1 in every mode except Depeg.
func (b *base) StablecoinNav() (fix.UFix64[fix.N9], error) {
	if b.mode == stability.Depeg {
		return calc.DepegStablecoinNav(b.total, b.price.Lower, b.stable)
	}
	return fix.One[fix.N9](), nil
}

func (b *base) levercoinNav(price fix.UFix64[fix.N8]) (fix.UFix64[fix.N9], error) {
	supply, err := b.LevercoinSupply()
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	nav, err := b.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	return calc.LevercoinNav(b.total, price, b.stable, nav, supply)
}

// LevercoinMintNav prices levercoin at the upper collateral bound.
func (b *base) LevercoinMintNav() (fix.UFix64[fix.N9], error) {
	return b.levercoinNav(b.price.Upper)
}

// LevercoinRedeemNav prices levercoin at the lower collateral bound.
func (b *base) LevercoinRedeemNav() (fix.UFix64[fix.N9], error) {
	return b.levercoinNav(b.price.Lower)
}

func (b *base) projectedCR(newTotal fix.UFix64[fix.N9], newStable fix.UFix64[fix.N6]) (fix.UFix64[fix.N9], error) {
	return calc.CollateralRatio(newTotal, b.price.Lower, newStable)
}

func (b *base) ProjectedMode(newTotal fix.UFix64[fix.N9], newStable fix.UFix64[fix.N6]) (stability.Mode, error) {
	cr, err := b.projectedCR(newTotal, newStable)
	if err != nil {
		return stability.Normal, err
	}
	return b.controller.Mode(cr), nil
}

// ModeForFees charges at the worse of the current and projected mode, so an
// operation that improves stability pays the current rate.
func (b *base) ModeForFees(projected stability.Mode) stability.Mode {
	return stability.Worse(b.mode, projected)
}

func (b *base) SwapConversion() (calc.SwapConversion, error) {
	redeem, err := b.LevercoinRedeemNav()
	if err != nil {
		return calc.SwapConversion{}, err
	}
	mint, err := b.LevercoinMintNav()
	if err != nil {
		return calc.SwapConversion{}, err
	}
	nav, err := b.StablecoinNav()
	if err != nil {
		return calc.SwapConversion{}, err
	}
	return calc.NewSwapConversion(nav, oracle.NewRange(redeem, mint)), nil
}

func (b *base) StabilityPoolCap(stableInPool, leverInPool fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	snav, err := b.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	lnav, err := b.LevercoinMintNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return calc.StabilityPoolCap(snav, stableInPool, lnav, leverInPool)
}

func (b *base) MaxMintableStablecoin() (fix.UFix64[fix.N6], error) {
	return calc.MaxMintableStablecoin(b.controller.MinThreshold(), b.total, b.price.Upper, b.stable)
}

func (b *base) MaxSwappableStablecoin() (fix.UFix64[fix.N6], error) {
	tvl, err := b.TVL()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return calc.MaxSwappableStablecoin(b.controller.MinThreshold(), tvl, b.stable)
}

// MaxSwappableToNextThreshold limits swaps by the next lower threshold
// instead of the minimum one.
func (b *base) MaxSwappableToNextThreshold() (fix.UFix64[fix.N6], error) {
	next, ok := b.controller.NextThreshold(b.mode)
	if !ok {
		return fix.UFix64[fix.N6]{}, ErrNoNextThreshold
	}
	tvl, err := b.TVL()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return calc.MaxSwappableStablecoin(next, tvl, b.stable)
}

func (b *base) ValidateStablecoinAmount(requested fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	limit, err := b.MaxMintableStablecoin()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	if requested.Gt(limit) {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %s > %s", ErrStablecoinOverMax, requested, limit)
	}
	return requested, nil
}

func (b *base) ValidateStablecoinSwapAmount(requested fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	limit, err := b.MaxSwappableStablecoin()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	if requested.Gt(limit) {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %s > %s", ErrStablecoinOverMax, requested, limit)
	}
	return requested, nil
}

func (b *base) LevercoinToStablecoinFee(amount fix.UFix64[fix.N6]) (fees.Extract[fix.N6], error) {
	newStable, err := b.stable.CheckedAdd(amount)
	if err != nil {
		return fees.Extract[fix.N6]{}, ErrDestinationFeeStablecoin
	}
	projected, err := b.ProjectedMode(b.total, newStable)
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	fee, err := b.leverFees.SwapToStablecoinFee(b.ModeForFees(projected))
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	return fees.NewExtract(fee, amount)
}

func (b *base) StablecoinToLevercoinFee(amount fix.UFix64[fix.N6]) (fees.Extract[fix.N6], error) {
	newStable, err := b.stable.CheckedSub(amount)
	if err != nil {
		return fees.Extract[fix.N6]{}, ErrDestinationFeeStablecoin
	}
	projected, err := b.ProjectedMode(b.total, newStable)
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	fee, err := b.leverFees.SwapFromStablecoinFee(b.ModeForFees(projected))
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	return fees.NewExtract(fee, amount)
}

// stablecoinFee prices a stablecoin mint or redeem at the projected state.
func (b *base) stablecoinFee(redeem bool, newTotal fix.UFix64[fix.N9], newStable fix.UFix64[fix.N6], amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	cr, err := b.projectedCR(newTotal, newStable)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	in := fees.Inputs{Mode: b.ModeForFees(b.controller.Mode(cr)), CR: cr}
	var rate fees.Rate
	if redeem {
		rate, err = b.stableFees.RedeemRate(in)
	} else {
		rate, err = b.stableFees.MintRate(in)
	}
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return fees.NewExtract(rate, amount)
}

// levercoinFee prices a levercoin mint or redeem at the projected mode.
// Levercoin operations leave stablecoin supply unchanged.
func (b *base) levercoinFee(redeem bool, newTotal fix.UFix64[fix.N9], amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	projected, err := b.ProjectedMode(newTotal, b.stable)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	mode := b.ModeForFees(projected)
	var fee fix.UFix64[fix.N4]
	if redeem {
		fee, err = b.leverFees.RedeemFee(mode)
	} else {
		fee, err = b.leverFees.MintFee(mode)
	}
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return fees.NewExtract(fee, amount)
}

// newController builds the stability controller from the configured first
// threshold and the curve-derived second. A zero floor selects the default.
func newController(t1, t2, floor fix.UFix64[fix.N2]) (stability.Controller, error) {
	if floor.IsZero() {
		return stability.New(t1, t2)
	}
	if floor.Gte(t2) {
		return stability.Controller{}, fmt.Errorf("%w: floor %s not below %s", ErrThresholdCurveDivergence, floor, t2)
	}
	return stability.NewWithFloor(t1, t2, floor)
}

// loadFees resolves the stablecoin fee family and the curve-derived second
// threshold. Curves default to the embedded table.
func loadFees(curves *fees.Curves, override fees.CollateralFees) (*fees.Curves, fees.CollateralFees, error) {
	if curves == nil {
		var err error
		if curves, err = fees.DefaultCurves(); err != nil {
			return nil, nil, err
		}
	}
	if override != nil {
		return curves, override, nil
	}
	return curves, fees.CurveFees{Mint: curves.Mint, Redeem: curves.Redeem}, nil
}
