package fix

import "errors"

var (
	ErrOverflow     = errors.New("fixed-point overflow")
	ErrUnderflow    = errors.New("fixed-point underflow")
	ErrDivideByZero = errors.New("fixed-point division by zero")
	ErrPrecision    = errors.New("value has more decimals than its scale")
	ErrParse        = errors.New("invalid fixed-point literal")
)
