// Package fix implements base-10 fixed-point numbers whose scale is part of
// the type. A UFix64[N6] holds an unsigned integer interpreted as bits*10^-6.
// Mixing scales is only possible through explicit, checked conversion.
package fix

// Scale is the number of decimal places carried by a fixed-point type.
type Scale interface {
	Decimals() int
}

type (
	Z0 struct{}
	N2 struct{}
	N3 struct{}
	N4 struct{}
	N5 struct{}
	N6 struct{}
	N7 struct{}
	N8 struct{}
	N9 struct{}
)

func (Z0) Decimals() int { return 0 }
func (N2) Decimals() int { return 2 }
func (N3) Decimals() int { return 3 }
func (N4) Decimals() int { return 4 }
func (N5) Decimals() int { return 5 }
func (N6) Decimals() int { return 6 }
func (N7) Decimals() int { return 7 }
func (N8) Decimals() int { return 8 }
func (N9) Decimals() int { return 9 }

// DecimalsOf returns the decimal places of scale S.
func DecimalsOf[S Scale]() int {
	var s S
	return s.Decimals()
}

var pow10 = [...]uint64{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
	100_000_000_000,
	1_000_000_000_000,
	10_000_000_000_000,
	100_000_000_000_000,
	1_000_000_000_000_000,
	10_000_000_000_000_000,
	100_000_000_000_000_000,
	1_000_000_000_000_000_000,
	10_000_000_000_000_000_000,
}

// Pow10 returns 10^n for n in [0, 19].
func Pow10(n int) (uint64, bool) {
	if n < 0 || n >= len(pow10) {
		return 0, false
	}
	return pow10[n], true
}
