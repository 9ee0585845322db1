package fix

// IFix64 is a signed fixed-point number with scale S.
type IFix64[S Scale] struct {
	bits int64
}

func NewSigned[S Scale](bits int64) IFix64[S] {
	return IFix64[S]{bits: bits}
}

func (i IFix64[S]) Bits() int64 { return i.bits }

func (i IFix64[S]) IsNegative() bool { return i.bits < 0 }

func (i IFix64[S]) Lt(v IFix64[S]) bool  { return i.bits < v.bits }
func (i IFix64[S]) Lte(v IFix64[S]) bool { return i.bits <= v.bits }
func (i IFix64[S]) Gt(v IFix64[S]) bool  { return i.bits > v.bits }
func (i IFix64[S]) Gte(v IFix64[S]) bool { return i.bits >= v.bits }

func (i IFix64[S]) CheckedAdd(v IFix64[S]) (IFix64[S], error) {
	sum := i.bits + v.bits
	if (v.bits > 0 && sum < i.bits) || (v.bits < 0 && sum > i.bits) {
		if v.bits > 0 {
			return IFix64[S]{}, ErrOverflow
		}
		return IFix64[S]{}, ErrUnderflow
	}
	return IFix64[S]{bits: sum}, nil
}

func (i IFix64[S]) CheckedSub(v IFix64[S]) (IFix64[S], error) {
	diff := i.bits - v.bits
	if (v.bits > 0 && diff > i.bits) || (v.bits < 0 && diff < i.bits) {
		if v.bits > 0 {
			return IFix64[S]{}, ErrUnderflow
		}
		return IFix64[S]{}, ErrOverflow
	}
	return IFix64[S]{bits: diff}, nil
}

// Unsigned converts to UFix64 at the same scale. Negative values fail.
func (i IFix64[S]) Unsigned() (UFix64[S], error) {
	if i.bits < 0 {
		return UFix64[S]{}, ErrUnderflow
	}
	return UFix64[S]{bits: uint64(i.bits)}, nil
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return ^uint64(v) + 1
	}
	return uint64(v)
}
