package ledger

import "github.com/hylo-so/hylo-engine/internal/fix"

// VirtualStablecoin counts supply minted against collateral that has no
// token mint of its own.
type VirtualStablecoin struct {
	Supply fix.UFix64[fix.N6] `json:"supply" yaml:"supply"`
}

func (v *VirtualStablecoin) Mint(amount fix.UFix64[fix.N6]) error {
	if amount.IsZero() {
		return ErrMintZero
	}
	s, err := v.Supply.CheckedAdd(amount)
	if err != nil {
		return ErrMintOverflow
	}
	v.Supply = s
	return nil
}

func (v *VirtualStablecoin) Burn(amount fix.UFix64[fix.N6]) error {
	if amount.IsZero() {
		return ErrBurnZero
	}
	s, err := v.Supply.CheckedSub(amount)
	if err != nil {
		return ErrBurnUnderflow
	}
	v.Supply = s
	return nil
}
