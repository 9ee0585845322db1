package calc

import (
	"fmt"
	"time"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// SlippageConfig carries a client's expected output and how far below it the
// actual output may land, as a fraction in N4.
type SlippageConfig[S fix.Scale] struct {
	Expected  fix.UFix64[S]      `json:"expected"`
	Tolerance fix.UFix64[fix.N4] `json:"tolerance"`
}

func NewSlippageConfig[S fix.Scale](expected fix.UFix64[S], toleranceBps uint64) SlippageConfig[S] {
	return SlippageConfig[S]{Expected: expected, Tolerance: fix.New[fix.N4](toleranceBps)}
}

// Validate checks if the output meets the minimum implied by the tolerance
// (slippage protection): out >= floor(expected * (1 - tolerance)).
func (c SlippageConfig[S]) Validate(out fix.UFix64[S]) error {
	keep, err := fix.One[fix.N4]().CheckedSub(c.Tolerance)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSlippageArith, err)
	}
	minimum, err := fix.MulDivFloor(c.Expected, keep, fix.One[fix.N4]())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSlippageArith, err)
	}
	if out.Lt(minimum) {
		return fmt.Errorf("%w: output %s less than minimum required %s", ErrSlippageExceeded, out, minimum)
	}
	return nil
}

// ValidateAmount checks if an amount is positive
func ValidateAmount[S fix.Scale](amount fix.UFix64[S], operation string) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, operation)
	}
	return nil
}

// ValidateQuote checks if a quote is still valid (not expired)
func ValidateQuote(issuedAt time.Time, ttl time.Duration, now time.Time) error {
	expiresAt := issuedAt.Add(ttl)
	if now.After(expiresAt) {
		return fmt.Errorf("quote expired at %v", expiresAt)
	}
	return nil
}
