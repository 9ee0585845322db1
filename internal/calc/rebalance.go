package calc

import (
	"github.com/hylo-so/hylo-engine/internal/fix"
)

// MaxSellableCollateral calculates the collateral the protocol may sell to
// pull CR down to target:
//
//	(target * virtual_stable - price * total) / (price * (target - 1))
//
// The second result is false when CR is already at or below target or the
// arithmetic fails.
func MaxSellableCollateral(target fix.UFix64[fix.N2], virtualStable fix.UFix64[fix.N6], price, total fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], bool) {
	t, vs, ok := widen(target, virtualStable)
	if !ok {
		return fix.UFix64[fix.N9]{}, false
	}
	liability, err := fix.MulDivFloor(t, vs, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	collateral, err := fix.MulDivCeil(price, total, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	num, err := liability.CheckedSub(collateral)
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	return sizeAtPrice(num, price, t)
}

// MaxBuyableCollateral is the buy-side counterpart:
//
//	(price * total - target * virtual_stable) / (price * (target - 1))
func MaxBuyableCollateral(target fix.UFix64[fix.N2], virtualStable fix.UFix64[fix.N6], price, total fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], bool) {
	t, vs, ok := widen(target, virtualStable)
	if !ok {
		return fix.UFix64[fix.N9]{}, false
	}
	collateral, err := fix.MulDivFloor(price, total, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	liability, err := fix.MulDivCeil(t, vs, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	num, err := collateral.CheckedSub(liability)
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	return sizeAtPrice(num, price, t)
}

func widen(target fix.UFix64[fix.N2], virtualStable fix.UFix64[fix.N6]) (fix.UFix64[fix.N9], fix.UFix64[fix.N9], bool) {
	t, err := fix.Convert[fix.N9](target)
	if err != nil {
		return fix.UFix64[fix.N9]{}, fix.UFix64[fix.N9]{}, false
	}
	vs, err := fix.Convert[fix.N9](virtualStable)
	if err != nil {
		return fix.UFix64[fix.N9]{}, fix.UFix64[fix.N9]{}, false
	}
	return t, vs, true
}

func sizeAtPrice(num, price, target fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], bool) {
	excess, err := target.CheckedSub(fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	den, err := fix.MulDivCeil(price, excess, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	out, err := fix.MulDivFloor(num, fix.One[fix.N9](), den)
	if err != nil {
		return fix.UFix64[fix.N9]{}, false
	}
	return out, true
}
