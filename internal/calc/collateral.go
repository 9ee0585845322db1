package calc

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// CollateralRatio calculates CR = total_sol * usd_sol_price / stablecoin_supply.
// A zero supply yields the maximum representable ratio.
func CollateralRatio(totalSol fix.UFix64[fix.N9], usdSolPrice fix.UFix64[fix.N8], stablecoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N9], error) {
	if stablecoin.IsZero() {
		return fix.MaxUFix64[fix.N9](), nil
	}
	supply, err := fix.Convert[fix.N8](stablecoin)
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrCollateralRatio, err)
	}
	cr, err := fix.MulDivFloor(totalSol, usdSolPrice, supply)
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrCollateralRatio, err)
	}
	return cr, nil
}

// TotalValueLocked calculates the USD value of total collateral.
func TotalValueLocked(totalSol fix.UFix64[fix.N9], usdSolPrice fix.UFix64[fix.N8]) (fix.UFix64[fix.N9], error) {
	tvl, err := fix.MulDivFloor(totalSol, usdSolPrice, fix.One[fix.N8]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrTotalValueLocked, err)
	}
	return tvl, nil
}

// MaxMintableStablecoin calculates how much stablecoin can be minted before
// CR falls to target: (tvl - target*supply) / (target - 1).
func MaxMintableStablecoin(target fix.UFix64[fix.N2], totalSol fix.UFix64[fix.N9], usdSolPrice fix.UFix64[fix.N8], stablecoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	one := fix.One[fix.N2]()
	if !target.Gt(one) {
		return fix.UFix64[fix.N6]{}, ErrTargetCRTooLow
	}
	out, err := func() (fix.UFix64[fix.N6], error) {
		targetSupply, err := fix.MulDivCeil(stablecoin, target, one)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		tvl, err := fix.MulDivFloor(totalSol, usdSolPrice, fix.One[fix.N8]())
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		wide, err := fix.Convert[fix.N9](targetSupply)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		num, err := tvl.CheckedSub(wide)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		den, err := target.CheckedSub(one)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		return fix.Div[fix.N6](num, den)
	}()
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrMaxMintable, err)
	}
	return out, nil
}

// MaxSwappableStablecoin calculates tvl / target - supply, the stablecoin
// that can be created by swapping levercoin before CR reaches target.
func MaxSwappableStablecoin(target fix.UFix64[fix.N2], tvl fix.UFix64[fix.N9], stablecoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	out, err := func() (fix.UFix64[fix.N6], error) {
		limit, err := fix.Div[fix.N7](tvl, target)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		supply, err := fix.Convert[fix.N7](stablecoin)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		room, err := limit.CheckedSub(supply)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		return fix.Convert[fix.N6](room)
	}()
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrMaxSwappable, err)
	}
	return out, nil
}

// LevercoinNav calculates (collateral_usd - stablecoin_usd) / levercoin_supply.
// Collateral value rounds down and stablecoin liability rounds up so the
// levercoin is never overvalued. A zero supply prices at 1.
func LevercoinNav(totalSol fix.UFix64[fix.N9], usdSolPrice fix.UFix64[fix.N8], stablecoin fix.UFix64[fix.N6], stablecoinNav fix.UFix64[fix.N9], levercoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N9], error) {
	if levercoin.IsZero() {
		return fix.One[fix.N9](), nil
	}
	nav, err := func() (fix.UFix64[fix.N9], error) {
		collateral, err := fix.MulDivFloor(totalSol, usdSolPrice, fix.One[fix.N8]())
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		liability, err := fix.MulDivCeil(stablecoin, stablecoinNav, fix.One[fix.N9]())
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		wide, err := fix.Convert[fix.N9](liability)
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		free, err := collateral.CheckedSub(wide)
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		return fix.MulDivCeil(free, fix.One[fix.N6](), levercoin)
	}()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrLevercoinNav, err)
	}
	return nav, nil
}

// DepegStablecoinNav calculates total_sol * usd_sol_price / stablecoin_supply,
// the stablecoin's value once the $1 peg no longer holds.
func DepegStablecoinNav(totalSol fix.UFix64[fix.N9], usdSolPrice fix.UFix64[fix.N8], stablecoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N9], error) {
	nav, err := func() (fix.UFix64[fix.N9], error) {
		price, err := fix.Convert[fix.N9](usdSolPrice)
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		supply, err := fix.Convert[fix.N9](stablecoin)
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		return fix.MulDivFloor(totalSol, price, supply)
	}()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrStablecoinNav, err)
	}
	return nav, nil
}
