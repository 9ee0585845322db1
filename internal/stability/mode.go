// Package stability classifies the protocol's collateral ratio into
// ordered stability modes.
package stability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

var ErrValidation = errors.New("invalid stability thresholds")

// Mode is ordered by severity: Normal < Mode1 < Mode2 < Depeg.
type Mode uint8

const (
	Normal Mode = iota
	Mode1
	Mode2
	Depeg
)

var modeNames = [...]string{"Normal", "Mode1", "Mode2", "Depeg"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	for i, name := range modeNames {
		if strings.EqualFold(name, string(b)) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stability mode %q", string(b))
}

// Worse returns the more severe of two modes.
func Worse(a, b Mode) Mode {
	if b > a {
		return b
	}
	return a
}

// Controller maps collateral ratios to modes.
type Controller struct {
	Threshold1 fix.UFix64[fix.N2] `json:"threshold_1"`
	Threshold2 fix.UFix64[fix.N2] `json:"threshold_2"`
	Floor      fix.UFix64[fix.N2] `json:"floor"`
}

// New builds a controller with the depeg floor at 1.00.
func New(t1, t2 fix.UFix64[fix.N2]) (Controller, error) {
	return NewWithFloor(t1, t2, fix.One[fix.N2]())
}

func NewWithFloor(t1, t2, floor fix.UFix64[fix.N2]) (Controller, error) {
	c := Controller{Threshold1: t1, Threshold2: t2, Floor: floor}
	if err := c.Validate(); err != nil {
		return Controller{}, err
	}
	return c, nil
}

// Validate requires t1 > t2 > floor >= 1.00.
func (c Controller) Validate() error {
	if c.Threshold1.Gt(c.Threshold2) && c.Threshold2.Gt(c.Floor) && c.Floor.Gte(fix.One[fix.N2]()) {
		return nil
	}
	return fmt.Errorf("%w: t1=%s t2=%s floor=%s", ErrValidation, c.Threshold1, c.Threshold2, c.Floor)
}

func widen(t fix.UFix64[fix.N2]) fix.UFix64[fix.N9] {
	// N2 to N9 multiplies by 10^7 and cannot overflow for thresholds
	// below 1.8e12
	v, _ := fix.Convert[fix.N9](t)
	return v
}

func (c Controller) Mode(cr fix.UFix64[fix.N9]) Mode {
	switch {
	case cr.Gte(widen(c.Threshold1)):
		return Normal
	case cr.Gte(widen(c.Threshold2)):
		return Mode1
	case cr.Gte(widen(c.Floor)):
		return Mode2
	default:
		return Depeg
	}
}

// PrevThreshold is the threshold the CR must regain to leave mode m.
func (c Controller) PrevThreshold(m Mode) (fix.UFix64[fix.N2], bool) {
	switch m {
	case Mode1:
		return c.Threshold1, true
	case Mode2:
		return c.Threshold2, true
	case Depeg:
		return c.Floor, true
	default:
		return fix.UFix64[fix.N2]{}, false
	}
}

// NextThreshold is the threshold below which the CR falls into the next
// mode.
func (c Controller) NextThreshold(m Mode) (fix.UFix64[fix.N2], bool) {
	switch m {
	case Normal:
		return c.Threshold1, true
	case Mode1:
		return c.Threshold2, true
	case Mode2:
		return c.Floor, true
	default:
		return fix.UFix64[fix.N2]{}, false
	}
}

func (c Controller) MinThreshold() fix.UFix64[fix.N2] {
	return c.Threshold2
}
