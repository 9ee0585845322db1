package calc

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

// Conversion prices protocol tokens against an LST. Collateral going in is
// valued at the lower oracle bound and collateral going out at the upper.
type Conversion struct {
	UsdSol oracle.PriceRange[fix.N8]
	LstSol fix.UFix64[fix.N9]
}

func NewConversion(usdSol oracle.PriceRange[fix.N8], lstSol fix.UFix64[fix.N9]) Conversion {
	return Conversion{UsdSol: usdSol, LstSol: lstSol}
}

// LstToToken converts LST into a protocol token priced at nav:
// amount_lst * lst_sol * usd_sol / nav.
func (c Conversion) LstToToken(amount fix.UFix64[fix.N9], nav fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	out, err := func() (fix.UFix64[fix.N6], error) {
		sol, err := fix.MulDivFloor(amount, c.LstSol, fix.One[fix.N9]())
		if err != nil {
			return fix.UFix64[fix.N6]{}, err
		}
		return collateralToToken(sol, c.UsdSol.Lower, nav)
	}()
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLstToToken, err)
	}
	return out, nil
}

// TokenToLst converts a protocol token priced at nav back into LST:
// amount * nav / usd_sol / lst_sol.
func (c Conversion) TokenToLst(amount fix.UFix64[fix.N6], nav fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], error) {
	out, err := func() (fix.UFix64[fix.N9], error) {
		sol, err := tokenToCollateral(amount, nav, c.UsdSol.Upper)
		if err != nil {
			return fix.UFix64[fix.N9]{}, err
		}
		return fix.MulDivFloor(sol, fix.One[fix.N9](), c.LstSol)
	}()
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrTokenToLst, err)
	}
	return out, nil
}

// ExoConversion prices protocol tokens directly against a USD-quoted
// collateral asset.
type ExoConversion struct {
	UsdPrice oracle.PriceRange[fix.N8]
}

func NewExoConversion(usdPrice oracle.PriceRange[fix.N8]) ExoConversion {
	return ExoConversion{UsdPrice: usdPrice}
}

func (c ExoConversion) ExoToToken(amount fix.UFix64[fix.N9], nav fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	out, err := collateralToToken(amount, c.UsdPrice.Lower, nav)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLstToToken, err)
	}
	return out, nil
}

func (c ExoConversion) TokenToExo(amount fix.UFix64[fix.N6], nav fix.UFix64[fix.N9]) (fix.UFix64[fix.N9], error) {
	out, err := tokenToCollateral(amount, nav, c.UsdPrice.Upper)
	if err != nil {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %v", ErrTokenToLst, err)
	}
	return out, nil
}

func collateralToToken(collateral fix.UFix64[fix.N9], price fix.UFix64[fix.N8], nav fix.UFix64[fix.N9]) (fix.UFix64[fix.N6], error) {
	navN8, err := fix.Convert[fix.N8](nav)
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	token, err := fix.MulDivFloor(collateral, price, navN8)
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	return fix.Convert[fix.N6](token)
}

func tokenToCollateral(amount fix.UFix64[fix.N6], nav fix.UFix64[fix.N9], price fix.UFix64[fix.N8]) (fix.UFix64[fix.N9], error) {
	wide, err := fix.Convert[fix.N9](amount)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	navN8, err := fix.Convert[fix.N8](nav)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	return fix.MulDivFloor(wide, navN8, price)
}

// SwapConversion exchanges stablecoin and levercoin at their NAVs. The
// levercoin upper bound applies when buying and the lower when selling.
type SwapConversion struct {
	StableNav fix.UFix64[fix.N9]
	LeverNav  oracle.PriceRange[fix.N9]
}

func NewSwapConversion(stableNav fix.UFix64[fix.N9], leverNav oracle.PriceRange[fix.N9]) SwapConversion {
	return SwapConversion{StableNav: stableNav, LeverNav: leverNav}
}

// StableToLever: amount * stable_nav / lever_nav_upper
func (c SwapConversion) StableToLever(amount fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	usd, err := fix.MulDivFloor(amount, c.StableNav, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStableToLever, err)
	}
	out, err := fix.MulDivFloor(usd, fix.One[fix.N9](), c.LeverNav.Upper)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrStableToLever, err)
	}
	return out, nil
}

// LeverToStable: amount * lever_nav_lower / stable_nav
func (c SwapConversion) LeverToStable(amount fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	usd, err := fix.MulDivFloor(amount, c.LeverNav.Lower, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLeverToStable, err)
	}
	out, err := fix.MulDivFloor(usd, fix.One[fix.N9](), c.StableNav)
	if err != nil {
		return fix.UFix64[fix.N6]{}, fmt.Errorf("%w: %v", ErrLeverToStable, err)
	}
	return out, nil
}
