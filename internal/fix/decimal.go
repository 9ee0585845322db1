package fix

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal renders the value as an arbitrary-precision decimal.
func (u UFix64[S]) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u.bits), -int32(DecimalsOf[S]()))
}

func (u UFix64[S]) String() string {
	return u.Decimal().StringFixed(int32(DecimalsOf[S]()))
}

func (u UFix64[S]) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UFix64[S]) UnmarshalText(b []byte) error {
	v, err := Parse[S](string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

func (i IFix64[S]) Decimal() decimal.Decimal {
	return decimal.New(i.bits, -int32(DecimalsOf[S]()))
}

func (i IFix64[S]) String() string {
	return i.Decimal().StringFixed(int32(DecimalsOf[S]()))
}

// Parse reads a decimal literal such as "1.25". Digits beyond the scale are
// rejected rather than rounded.
func Parse[S Scale](s string) (UFix64[S], error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return UFix64[S]{}, ErrParse
	}
	shifted := d.Shift(int32(DecimalsOf[S]()))
	if !shifted.Equal(shifted.Truncate(0)) {
		return UFix64[S]{}, ErrPrecision
	}
	return fromInteger[S](shifted)
}

// FromDecimal converts a decimal, truncating digits beyond the scale.
func FromDecimal[S Scale](d decimal.Decimal) (UFix64[S], error) {
	return fromInteger[S](d.Shift(int32(DecimalsOf[S]())).Truncate(0))
}

func fromInteger[S Scale](d decimal.Decimal) (UFix64[S], error) {
	if d.IsNegative() {
		return UFix64[S]{}, ErrUnderflow
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return UFix64[S]{}, ErrOverflow
	}
	return UFix64[S]{bits: n.Uint64()}, nil
}
