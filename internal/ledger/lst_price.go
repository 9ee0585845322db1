package ledger

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// LstSolPrice is one LST's exchange rate into SOL for an epoch.
type LstSolPrice struct {
	Price fix.UFix64[fix.N9] `json:"price" yaml:"price"`
	Epoch uint64             `json:"epoch" yaml:"epoch"`
}

// CheckedDelta returns how much the price grew since prev. Staking rates
// only move up, so a decrease is rejected.
func (p LstSolPrice) CheckedDelta(prev LstSolPrice) (fix.UFix64[fix.N9], error) {
	if p.Epoch <= prev.Epoch {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: %d after %d", ErrEpochOrder, p.Epoch, prev.Epoch)
	}
	delta, err := p.Price.CheckedSub(prev.Price)
	if err != nil {
		return fix.UFix64[fix.N9]{}, ErrPriceDelta
	}
	return delta, nil
}

// ValidateDelta bounds the relative price change against prev.
func (p LstSolPrice) ValidateDelta(prev LstSolPrice, maxRelative fix.UFix64[fix.N9]) error {
	delta, err := p.CheckedDelta(prev)
	if err != nil {
		return err
	}
	rel, err := fix.MulDivCeil(delta, fix.One[fix.N9](), prev.Price)
	if err != nil || rel.Gt(maxRelative) {
		return fmt.Errorf("%w: %s to %s", ErrPriceDeltaExceeded, prev.Price, p.Price)
	}
	return nil
}

// EpochPrice returns the price only if it belongs to the current epoch.
func (p LstSolPrice) EpochPrice(epoch uint64) (fix.UFix64[fix.N9], error) {
	if epoch != p.Epoch {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: current %d, price %d", ErrPriceStale, epoch, p.Epoch)
	}
	return p.Price, nil
}

// PriceWithin accepts a price up to maxAge epochs old.
func (p LstSolPrice) PriceWithin(epoch, maxAge uint64) (fix.UFix64[fix.N9], error) {
	if p.Epoch > epoch || epoch-p.Epoch > maxAge {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: current %d, price %d", ErrPriceStale, epoch, p.Epoch)
	}
	return p.Price, nil
}

// ConvertSol values an LST amount in SOL.
func (p LstSolPrice) ConvertSol(amount fix.UFix64[fix.N9], epoch uint64) (fix.UFix64[fix.N9], error) {
	price, err := p.EpochPrice(epoch)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	sol, err := fix.MulDivFloor(price, amount, fix.One[fix.N9]())
	if err != nil {
		return fix.UFix64[fix.N9]{}, ErrPriceConversion
	}
	return sol, nil
}

// ConvertLst converts an amount of this LST into other at the current epoch.
func (p LstSolPrice) ConvertLst(epoch uint64, amount fix.UFix64[fix.N9], other LstSolPrice) (fix.UFix64[fix.N9], error) {
	in, err := p.EpochPrice(epoch)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	out, err := other.EpochPrice(epoch)
	if err != nil {
		return fix.UFix64[fix.N9]{}, err
	}
	res, err := fix.MulDivFloor(amount, in, out)
	if err != nil {
		return fix.UFix64[fix.N9]{}, ErrPriceConversion
	}
	return res, nil
}
