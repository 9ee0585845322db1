package fix

import "math"

// UFix64 is an unsigned fixed-point number with scale S.
type UFix64[S Scale] struct {
	bits uint64
}

// New wraps raw bits at scale S.
func New[S Scale](bits uint64) UFix64[S] {
	return UFix64[S]{bits: bits}
}

// One returns 1.0 at scale S.
func One[S Scale]() UFix64[S] {
	return UFix64[S]{bits: pow10[DecimalsOf[S]()]}
}

// Zero returns 0 at scale S.
func Zero[S Scale]() UFix64[S] {
	return UFix64[S]{}
}

// MaxUFix64 returns the largest representable value at scale S.
func MaxUFix64[S Scale]() UFix64[S] {
	return UFix64[S]{bits: math.MaxUint64}
}

func (u UFix64[S]) Bits() uint64 { return u.bits }

func (u UFix64[S]) IsZero() bool { return u.bits == 0 }

// Cmp returns -1, 0 or 1.
func (u UFix64[S]) Cmp(v UFix64[S]) int {
	switch {
	case u.bits < v.bits:
		return -1
	case u.bits > v.bits:
		return 1
	default:
		return 0
	}
}

func (u UFix64[S]) Lt(v UFix64[S]) bool  { return u.bits < v.bits }
func (u UFix64[S]) Lte(v UFix64[S]) bool { return u.bits <= v.bits }
func (u UFix64[S]) Gt(v UFix64[S]) bool  { return u.bits > v.bits }
func (u UFix64[S]) Gte(v UFix64[S]) bool { return u.bits >= v.bits }

func (u UFix64[S]) CheckedAdd(v UFix64[S]) (UFix64[S], error) {
	sum := u.bits + v.bits
	if sum < u.bits {
		return UFix64[S]{}, ErrOverflow
	}
	return UFix64[S]{bits: sum}, nil
}

func (u UFix64[S]) CheckedSub(v UFix64[S]) (UFix64[S], error) {
	if v.bits > u.bits {
		return UFix64[S]{}, ErrUnderflow
	}
	return UFix64[S]{bits: u.bits - v.bits}, nil
}

// SaturatingSub clamps at zero.
func (u UFix64[S]) SaturatingSub(v UFix64[S]) UFix64[S] {
	if v.bits > u.bits {
		return UFix64[S]{}
	}
	return UFix64[S]{bits: u.bits - v.bits}
}

func (u UFix64[S]) Min(v UFix64[S]) UFix64[S] {
	if v.bits < u.bits {
		return v
	}
	return u
}

func (u UFix64[S]) Max(v UFix64[S]) UFix64[S] {
	if v.bits > u.bits {
		return v
	}
	return u
}

func (u UFix64[S]) AbsDiff(v UFix64[S]) UFix64[S] {
	if u.bits > v.bits {
		return UFix64[S]{bits: u.bits - v.bits}
	}
	return UFix64[S]{bits: v.bits - u.bits}
}

// Signed converts to IFix64 at the same scale.
func (u UFix64[S]) Signed() (IFix64[S], error) {
	if u.bits > math.MaxInt64 {
		return IFix64[S]{}, ErrOverflow
	}
	return IFix64[S]{bits: int64(u.bits)}, nil
}
