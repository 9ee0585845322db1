package exchange

import (
	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// LstInputs is the account state an LST context is loaded from.
type LstInputs struct {
	TotalSol          ledger.TotalSolCache
	Threshold1        fix.UFix64[fix.N2]
	Floor             fix.UFix64[fix.N2]
	Oracle            oracle.Config
	SolUsdFeed        oracle.PriceFeed
	LevercoinFees     fees.LevercoinFees
	VirtualStablecoin ledger.VirtualStablecoin
	// LevercoinSupply is nil when the levercoin mint was not loaded.
	LevercoinSupply *fix.UFix64[fix.N6]
	// Curves defaults to the embedded table.
	Curves *fees.Curves
	// StablecoinFees overrides curve pricing for stablecoin mint and redeem.
	StablecoinFees fees.CollateralFees
}

// LstContext prices operations against SOL liquid staking tokens.
type LstContext struct {
	base
	clock clock.Clock
}

// LoadLst validates the collateral cache and oracle and fixes CR and mode.
func LoadLst(clk clock.Clock, in LstInputs) (*LstContext, error) {
	total, err := in.TotalSol.Validated(clk.Epoch())
	if err != nil {
		return nil, err
	}
	spot, err := oracle.QueryRange(clk, in.SolUsdFeed, in.Oracle)
	if err != nil {
		return nil, err
	}
	price, err := oracle.ConvertRange[fix.N8](spot)
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
	controller, err := newController(in.Threshold1, t2, in.Floor)
	if err != nil {
		return nil, err
	}
	b, err := newBase(total, price, in.VirtualStablecoin.Supply, in.LevercoinSupply, controller, in.LevercoinFees, stableFees)
	if err != nil {
		return nil, err
	}
	return &LstContext{base: b, clock: clk}, nil
}

func (c *LstContext) Epoch() uint64 { return c.clock.Epoch() }

// TokenConversion binds the LST's current-epoch SOL price.
func (c *LstContext) TokenConversion(lst ledger.LstSolPrice) (calc.Conversion, error) {
	lstSol, err := lst.EpochPrice(c.clock.Epoch())
	if err != nil {
		return calc.Conversion{}, err
	}
	return calc.NewConversion(c.price, lstSol), nil
}

func (c *LstContext) SolToStablecoin(amount fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	nav, err := c.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return calc.NewConversion(c.price, fix.One[fix.N9]()).LstToToken(amount, nav)
}

func (c *LstContext) SolToLevercoin(amount fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	nav, err := c.LevercoinMintNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return calc.NewConversion(c.price, fix.One[fix.N9]()).LstToToken(amount, nav)
}

func (c *LstContext) shift(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9], add bool) (fix.UFix64[fix.N9], error) {
	sol, err := lst.ConvertSol(amount, c.clock.Epoch())
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	var total fix.UFix64[fix.N9]
	if add {
		total, err = c.total.CheckedAdd(sol)
	} else {
		total, err = c.total.CheckedSub(sol)
	}
	if err != nil {
		return fix.UFix64[fix.N9]{}, ErrDestinationFeeCollateral
	}
	return total, nil
}

func (c *LstContext) stablecoinFor(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	conv, err := c.TokenConversion(lst)
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	nav, err := c.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return conv.LstToToken(amount, nav)
}

// StablecoinMintFee prices the LST deposited at the CR projected after the
// mint.
func (c *LstContext) StablecoinMintFee(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(lst, amount, true)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	minted, err := c.stablecoinFor(lst, amount)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	newStable, err := c.stable.CheckedAdd(minted)
	if err != nil {
		return fees.Extract[fix.N9]{}, ErrDestinationFeeStablecoin
	}
	return c.stablecoinFee(false, newTotal, newStable, amount)
}

// StablecoinRedeemFee prices the LST withdrawn at the CR projected after
// the redemption.
func (c *LstContext) StablecoinRedeemFee(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(lst, amount, false)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	redeemed, err := c.stablecoinFor(lst, amount)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	newStable, err := c.stable.CheckedSub(redeemed)
	if err != nil {
		return fees.Extract[fix.N9]{}, ErrDestinationFeeStablecoin
	}
	return c.stablecoinFee(true, newTotal, newStable, amount)
}

func (c *LstContext) LevercoinMintFee(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(lst, amount, true)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return c.levercoinFee(false, newTotal, amount)
}

func (c *LstContext) LevercoinRedeemFee(lst ledger.LstSolPrice, amount fix.UFix64[fix.N9]) (fees.Extract[fix.N9], error) {
	newTotal, err := c.shift(lst, amount, false)
	if err != nil {
		return fees.Extract[fix.N9]{}, err
	}
	return c.levercoinFee(true, newTotal, amount)
}
