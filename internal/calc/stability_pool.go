package calc

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// StabilityPoolCap calculates the USD value held by the pool:
// stable_in_pool * stable_nav + lever_in_pool * lever_nav, each rounded up.
func StabilityPoolCap(stableNav fix.UFix64[fix.N9], stableInPool fix.UFix64[fix.N6], leverNav fix.UFix64[fix.N9], leverInPool fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	stable, err := fix.MulDivCeil(stableInPool, stableNav, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStabilityPoolCap, err)
	}
	lever, err := fix.MulDivCeil(leverInPool, leverNav, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStabilityPoolCap, err)
	}
	total, err := stable.CheckedAdd(lever)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStabilityPoolCap, err)
	}
	return total, nil
}

// LpTokenNav calculates pool_cap / lp_supply, rounded up. An empty pool
// prices LP tokens at 1.
func LpTokenNav(stableNav fix.UFix64[fix.N9], stableInPool fix.UFix64[fix.N6], leverNav fix.UFix64[fix.N9], leverInPool fix.UFix64[fix.N6], lpSupply fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	if lpSupply.IsZero() {
		return fix.One[fix.N6](), nil
	}
	capUsd, err := StabilityPoolCap(stableNav, stableInPool, leverNav, leverInPool)
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	nav, err := fix.MulDivCeil(capUsd, fix.One[fix.N6](), lpSupply)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLpTokenNav, err)
	}
	return nav, nil
}

// LpTokenOut calculates stablecoin_in / lp_nav, rounded down.
func LpTokenOut(amount, lpNav fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	out, err := fix.MulDivFloor(amount, fix.One[fix.N6](), lpNav)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLpTokenOut, err)
	}
	return out, nil
}

// AmountTokenToWithdraw calculates the user's pro-rata share of a pool balance.
func AmountTokenToWithdraw(userLp, lpSupply, inPool fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	out, err := fix.MulDivFloor(userLp, inPool, lpSupply)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrTokenWithdraw, err)
	}
	return out, nil
}

// AmountStableToSwap calculates how much pool stablecoin converts to
// levercoin to lift CR back to threshold: min(pool, supply - tvl/threshold).
func AmountStableToSwap(stableInPool fix.UFix64[fix.N6], threshold fix.UFix64[fix.N2], stableSupply fix.UFix64[fix.N6], tvl fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	out, err := func() (fix.UFix64[fix.N6], error) {
		wide, err := fix.Convert[fix.N3](threshold)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		target, err := fix.Div[fix.N6](tvl, wide)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		excess, err := stableSupply.CheckedSub(target)
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		return excess.Min(stableInPool), nil
	}()
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStablecoinToSwap, err)
	}
	return out, nil
}

// AmountLeverToSwap caps the pool levercoin sold back into stablecoin so the
// stablecoin created stays within maxSwappable.
func AmountLeverToSwap(leverInPool fix.UFix64[fix.N6], leverNav oracle.PriceRange[fix.N9], maxSwappable fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	conv := NewSwapConversion(fix.One[fix.N9](), leverNav)
	stable, err := conv.LeverToStable(leverInPool)
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	if stable.Lte(maxSwappable) {
		return leverInPool, nil
	}
	return conv.StableToLever(maxSwappable)
}

// StablecoinWithdrawalFee charges the withdrawal fee on the USD value of the
// withdrawn allocation and takes it from the stablecoin leg. The fee never
// exceeds the stablecoin left in the pool.
func StablecoinWithdrawalFee(stableInPool, stableOut fix.UFix64[fix.N6], stableNav fix.UFix64[fix.N9], leverOut fix.UFix64[fix.N6], leverNav fix.UFix64[fix.N9], fee fix.UFix64[fix.N4]) (fees.Extract[fix.N6], error) {
	capUsd, err := StabilityPoolCap(stableNav, stableOut, leverNav, leverOut)
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	ex, err := fees.NewExtract(fee, capUsd)
	if err != nil {
		return fees.Extract[fix.N6]{}, err
	}
	taken := ex.Fees.Min(stableInPool)
	return fees.Extract[fix.N6]{Fees: taken, Remaining: stableOut.SaturatingSub(taken)}, nil
}
