package fees

import "github.com/hylo-so/hylo-engine/internal/fix"

func validateSwapFee(fee fix.UFix64[fix.N4]) error {
	if !fee.IsZero() && fee.Lt(fix.One[fix.N4]()) {
		return nil
	}
	return ErrInvalidFees
}

// LstSwapConfig is the fee charged when swapping one LST for another.
type LstSwapConfig struct {
	Fee fix.UFix64[fix.N4] `json:"fee" yaml:"fee"`
}

func NewLstSwapConfig(fee fix.UFix64[fix.N4]) (LstSwapConfig, error) {
	if err := validateSwapFee(fee); err != nil {
		return LstSwapConfig{}, err
	}
	return LstSwapConfig{Fee: fee}, nil
}

func (c LstSwapConfig) Validate() error { return validateSwapFee(c.Fee) }

// Update replaces the fee after validating it.
func (c *LstSwapConfig) Update(fee fix.UFix64[fix.N4]) error {
	if err := validateSwapFee(fee); err != nil {
		return err
	}
	c.Fee = fee
	return nil
}

func ApplyLstSwapFee[S fix.Scale](c LstSwapConfig, amount fix.UFix64[S]) (Extract[S], error) {
	return NewExtract(c.Fee, amount)
}

// AssetSwapConfig is the fee charged on exogenous collateral swaps.
type AssetSwapConfig struct {
	Fee fix.UFix64[fix.N4] `json:"fee" yaml:"fee"`
}

func NewAssetSwapConfig(fee fix.UFix64[fix.N4]) (AssetSwapConfig, error) {
	if err := validateSwapFee(fee); err != nil {
		return AssetSwapConfig{}, err
	}
	return AssetSwapConfig{Fee: fee}, nil
}

func ApplyAssetSwapFee[S fix.Scale](c AssetSwapConfig, amount fix.UFix64[S]) (Extract[S], error) {
	return NewExtract(c.Fee, amount)
}
