package fix

import (
	"math"

	"github.com/holiman/uint256"
)

// mulDivRem computes a*y/z and the remainder over a 256-bit intermediate.
func mulDivRem(a, y, z uint64) (q uint256.Int, rem bool, err error) {
	if z == 0 {
		return q, false, ErrDivideByZero
	}
	var p, r uint256.Int
	p.Mul(uint256.NewInt(a), uint256.NewInt(y))
	q.DivMod(&p, uint256.NewInt(z), &r)
	return q, !r.IsZero(), nil
}

func mulDiv(a, y, z uint64, ceil bool) (uint64, error) {
	q, rem, err := mulDivRem(a, y, z)
	if err != nil {
		return 0, err
	}
	if ceil && rem {
		q.AddUint64(&q, 1)
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// MulDivFloor computes a*y/z rounding toward zero. The result keeps a's
// scale; y and z share a scale so their ratio is dimensionless.
func MulDivFloor[S, T Scale](a UFix64[S], y, z UFix64[T]) (UFix64[S], error) {
	bits, err := mulDiv(a.bits, y.bits, z.bits, false)
	if err != nil {
		return UFix64[S]{}, err
	}
	return UFix64[S]{bits: bits}, nil
}

// MulDivCeil computes a*y/z rounding up.
func MulDivCeil[S, T Scale](a UFix64[S], y, z UFix64[T]) (UFix64[S], error) {
	bits, err := mulDiv(a.bits, y.bits, z.bits, true)
	if err != nil {
		return UFix64[S]{}, err
	}
	return UFix64[S]{bits: bits}, nil
}

func signedMulDiv(a, y, z int64, ceil bool) (int64, error) {
	q, rem, err := mulDivRem(magnitude(a), magnitude(y), magnitude(z))
	if err != nil {
		return 0, err
	}
	neg := a != 0 && y != 0 && ((a < 0) != (y < 0)) != (z < 0)
	// ceil rounds toward +inf, floor toward -inf
	if rem && ((ceil && !neg) || (!ceil && neg)) {
		q.AddUint64(&q, 1)
	}
	if !q.IsUint64() {
		if neg {
			return 0, ErrUnderflow
		}
		return 0, ErrOverflow
	}
	m := q.Uint64()
	if neg {
		if m > uint64(math.MaxInt64)+1 {
			return 0, ErrUnderflow
		}
		return int64(^m + 1), nil
	}
	if m > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(m), nil
}

// MulDivFloorSigned computes a*y/z rounding toward negative infinity.
func MulDivFloorSigned[S, T Scale](a IFix64[S], y, z IFix64[T]) (IFix64[S], error) {
	bits, err := signedMulDiv(a.bits, y.bits, z.bits, false)
	if err != nil {
		return IFix64[S]{}, err
	}
	return IFix64[S]{bits: bits}, nil
}

// MulDivCeilSigned computes a*y/z rounding toward positive infinity.
func MulDivCeilSigned[S, T Scale](a IFix64[S], y, z IFix64[T]) (IFix64[S], error) {
	bits, err := signedMulDiv(a.bits, y.bits, z.bits, true)
	if err != nil {
		return IFix64[S]{}, err
	}
	return IFix64[S]{bits: bits}, nil
}
