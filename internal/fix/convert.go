package fix

import "math"

// rescale moves bits from one decimal exponent to another. Going finer
// multiplies with an overflow check, going coarser truncates.
func rescale(bits uint64, from, to int) (uint64, error) {
	switch {
	case to == from:
		return bits, nil
	case to > from:
		p, ok := Pow10(to - from)
		if !ok {
			if bits == 0 {
				return 0, nil
			}
			return 0, ErrOverflow
		}
		if bits > math.MaxUint64/p {
			return 0, ErrOverflow
		}
		return bits * p, nil
	default:
		p, ok := Pow10(from - to)
		if !ok {
			return 0, nil
		}
		return bits / p, nil
	}
}

// Convert changes the scale of a value.
func Convert[To, From Scale](u UFix64[From]) (UFix64[To], error) {
	bits, err := rescale(u.bits, DecimalsOf[From](), DecimalsOf[To]())
	if err != nil {
		return UFix64[To]{}, err
	}
	return UFix64[To]{bits: bits}, nil
}

// ConvertSigned changes the scale of a signed value, truncating toward zero
// when the target is coarser.
func ConvertSigned[To, From Scale](i IFix64[From]) (IFix64[To], error) {
	bits, err := rescale(magnitude(i.bits), DecimalsOf[From](), DecimalsOf[To]())
	if err != nil {
		return IFix64[To]{}, err
	}
	if i.bits < 0 {
		if bits > uint64(math.MaxInt64)+1 {
			return IFix64[To]{}, ErrUnderflow
		}
		return IFix64[To]{bits: int64(^bits + 1)}, nil
	}
	if bits > math.MaxInt64 {
		return IFix64[To]{}, ErrOverflow
	}
	return IFix64[To]{bits: int64(bits)}, nil
}

// Div divides raw bits, which places the quotient at the difference of the
// operand exponents, then rescales the quotient to R.
//
// Dividing an N9 amount by an N3 ratio yields N6 directly.
func Div[R, S, T Scale](a UFix64[S], b UFix64[T]) (UFix64[R], error) {
	if b.bits == 0 {
		return UFix64[R]{}, ErrDivideByZero
	}
	q := a.bits / b.bits
	exp := DecimalsOf[S]() - DecimalsOf[T]()
	if exp < 0 {
		p, ok := Pow10(-exp)
		if !ok || (q != 0 && q > math.MaxUint64/p) {
			return UFix64[R]{}, ErrOverflow
		}
		q *= p
		exp = 0
	}
	bits, err := rescale(q, exp, DecimalsOf[R]())
	if err != nil {
		return UFix64[R]{}, err
	}
	return UFix64[R]{bits: bits}, nil
}
