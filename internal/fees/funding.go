package fees

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// MaxFundingRate is the per-epoch ceiling, 0.06%.
var MaxFundingRate = fix.New[fix.N8](60_000)

// FundingRate is charged per epoch on the USD value of collateral.
type FundingRate struct {
	Rate fix.UFix64[fix.N8] `json:"rate" yaml:"rate"`
}

func (f FundingRate) Validate() error {
	if f.Rate.IsZero() || f.Rate.Gt(MaxFundingRate) {
		return fmt.Errorf("%w: %s", ErrFundingRateValidation, f.Rate)
	}
	return nil
}

// ApplyFunding returns floor(value * rate).
func ApplyFunding[S fix.Scale](f FundingRate, value fix.UFix64[S]) (fix.UFix64[S], error) {
	out, err := fix.MulDivFloor(value, f.Rate, fix.One[fix.N8]())
	if err != nil {
		return fix.UFix64[S]{}, ErrFundingRateApply
	}
	return out, nil
}
