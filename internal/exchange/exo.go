package exchange

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// ExoInputs is the account state an exogenous-collateral context is loaded
// from. Exactly one of UsdFeed and Switchboard prices the collateral.
type ExoInputs struct {
	TotalCollateral   fix.UFix64[fix.N9]
	Threshold1        fix.UFix64[fix.N2]
	Floor             fix.UFix64[fix.N2]
	Oracle            oracle.Config
	UsdFeed           *oracle.PriceFeed
	Switchboard       *oracle.SwitchboardQuote
	LevercoinFees     fees.LevercoinFees
	VirtualStablecoin ledger.VirtualStablecoin
	LevercoinSupply   *fix.UFix64[fix.N6]
	Curves            *fees.Curves
	StablecoinFees    fees.CollateralFees
}

// ExoContext prices operations against a USD-quoted collateral asset held
// directly by the protocol.
type ExoContext struct {
	base
}

func LoadExo(clk clock.Clock, in ExoInputs) (*ExoContext, error) {
	price, err := exoPrice(clk, in)
	if err != nil {
		return nil, err
	}
	curves, stableFees, err := loadFees(in.Curves, in.StablecoinFees)
	if err != nil {
		return nil, err
	}
	t2, err := curves.Redeem.CRFloor()
	if err != nil {
		return nil, err
	}
	mintFloor, err := curves.Mint.CRFloor()
	if err != nil {
		return nil, err
	}
	if mintFloor.Lt(t2) {
		return nil, fmt.Errorf("%w: mint %s redeem %s", ErrThresholdCurveDivergence, mintFloor, t2)
	}
	controller, err := newController(in.Threshold1, t2, in.Floor)
	if err != nil {
		return nil, err
	}
	b, err := newBase(in.TotalCollateral, price, in.VirtualStablecoin.Supply, in.LevercoinSupply, controller, in.LevercoinFees, stableFees)
	if err != nil {
		return nil, err
	}
	return &ExoContext{base: b}, nil
}

func exoPrice(clk clock.Clock, in ExoInputs) (oracle.PriceRange[fix.N8], error) {
	switch {
	case in.UsdFeed != nil:
		spot, err := oracle.QueryRange(clk, *in.UsdFeed, in.Oracle)
		if err != nil {
			return oracle.PriceRange[fix.N8]{}, err
		}
		return oracle.ConvertRange[fix.N8](spot)
	case in.Switchboard != nil:
		return oracle.QuerySwitchboard[fix.N8](clk, *in.Switchboard, in.Oracle)
	default:
		return oracle.PriceRange[fix.N8]{}, ErrMissingOracle
	}
}

func (c *ExoContext) ExoConversion() calc.ExoConversion {
	return calc.NewExoConversion(c.price)
}

func (c *ExoContext) shift(amount fix.UFix64[fix.N9], add bool) (fix.UFix64[fix.N9], error) {
	var (
		total fix.UFix64[fix.N9]
		err   error
	)
	if add {
		total, err = c.total.CheckedAdd(amount)
	} else {
		total, err = c.total.CheckedSub(amount)
	}
	if err != nil {
		return fix.UFix64[fix.N9]{}, ErrDestinationFeeCollateral
	}
	return total, nil
}

func (c *ExoContext) stablecoinFor(amount fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	nav, err := c.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return c.ExoConversion().ExoToToken(amount, nav)
}

func (c *ExoContext) StablecoinMintFee(amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(amount, true)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	minted, err := c.stablecoinFor(amount)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	newStable, err := c.stable.CheckedAdd(minted)
	if err != nil {
		return fees.Extract[fix.N9]{}, ErrDestinationFeeStablecoin
	}
	return c.stablecoinFee(false, newTotal, newStable, amount)
}

func (c *ExoContext) StablecoinRedeemFee(amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(amount, false)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	redeemed, err := c.stablecoinFor(amount)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	newStable, err := c.stable.CheckedSub(redeemed)
	if err != nil {
		return fees.Extract[fix.N9]{}, ErrDestinationFeeStablecoin
	}
	return c.stablecoinFee(true, newTotal, newStable, amount)
}

func (c *ExoContext) LevercoinMintFee(amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(amount, true)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return c.levercoinFee(false, newTotal, amount)
}

func (c *ExoContext) LevercoinRedeemFee(amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(amount, false)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return c.levercoinFee(true, newTotal, amount)
}
