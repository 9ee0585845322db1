// Package fees resolves protocol fee rates and splits amounts into fee and
// remainder.
package fees

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// Extract is an amount split into the fee taken and what is left.
// Fees + Remaining always equals the original amount.
type Extract[S fix.Scale] struct {
	Fees      fix.UFix64[S] `json:"fees"`
	Remaining fix.UFix64[S] `json:"remaining"`
}

// NewExtract takes ceil(amount * fee) as the fee. The fee may be expressed at
// any scale.
func NewExtract[S, F fix.Scale](fee fix.UFix64[F], amount fix.UFix64[S]) (Extract[S], error) {
	taken, err := fix.MulDivCeil(amount, fee, fix.One[F]())
	if err != nil {
		return Extract[S]{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	remaining, err := amount.CheckedSub(taken)
	if err != nil {
		return Extract[S]{}, fmt.Errorf("%w: fee %s exceeds amount", ErrExtraction, fee)
	}
	return Extract[S]{Fees: taken, Remaining: remaining}, nil
}
