// Package interp evaluates piecewise-linear curves over fixed-point values.
package interp

import (
	"errors"
	"sort"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

var (
	ErrInsufficientPoints = errors.New("curve needs at least two points")
	ErrNotMonotonic       = errors.New("curve x values must be strictly increasing")
	ErrOutOfDomain        = errors.New("x outside curve domain")
	ErrArithmetic         = errors.New("curve interpolation overflow")
)

type Point[S fix.Scale] struct {
	X fix.IFix64[S]
	Y fix.IFix64[S]
}

// P builds a point from raw bits.
func P[S fix.Scale](x, y int64) Point[S] {
	return Point[S]{X: fix.NewSigned[S](x), Y: fix.NewSigned[S](y)}
}

// Curve is an immutable piecewise-linear function.
type Curve[S fix.Scale] struct {
	points []Point[S]
}

func New[S fix.Scale](points []Point[S]) (*Curve[S], error) {
	if len(points) < 2 {
		return nil, ErrInsufficientPoints
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].X.Lt(points[i].X) {
			return nil, ErrNotMonotonic
		}
	}
	cp := make([]Point[S], len(points))
	copy(cp, points)
	return &Curve[S]{points: cp}, nil
}

func (c *Curve[S]) XMin() fix.IFix64[S] { return c.points[0].X }
func (c *Curve[S]) XMax() fix.IFix64[S] { return c.points[len(c.points)-1].X }
func (c *Curve[S]) YMin() fix.IFix64[S] { return c.points[0].Y }
func (c *Curve[S]) YMax() fix.IFix64[S] { return c.points[len(c.points)-1].Y }
func (c *Curve[S]) Len() int            { return len(c.points) }

// Points returns a copy of the curve's points.
func (c *Curve[S]) Points() []Point[S] {
	cp := make([]Point[S], len(c.points))
	copy(cp, c.points)
	return cp
}

// Interpolate evaluates the curve at x. The segment is chosen as the first
// point whose x is not below the input, so exact hits on an interior point
// resolve to the segment ending there.
func (c *Curve[S]) Interpolate(x fix.IFix64[S]) (fix.IFix64[S], error) {
	if x.Lt(c.XMin()) || x.Gt(c.XMax()) {
		return fix.IFix64[S]{}, ErrOutOfDomain
	}
	part := sort.Search(len(c.points), func(i int) bool { return !c.points[i].X.Lt(x) })
	if part < 1 {
		part = 1
	}
	y, err := lerp(c.points[part-1], c.points[part], x)
	if err != nil {
		return fix.IFix64[S]{}, ErrArithmetic
	}
	return y, nil
}

// lerp rounds the y offset up.
func lerp[S fix.Scale](p0, p1 Point[S], x fix.IFix64[S]) (fix.IFix64[S], error) {
	dx, err := p1.X.CheckedSub(p0.X)
	if err != nil {
		return fix.IFix64[S]{}, err
	}
	dy, err := p1.Y.CheckedSub(p0.Y)
	if err != nil {
		return fix.IFix64[S]{}, err
	}
	off, err := x.CheckedSub(p0.X)
	if err != nil {
		return fix.IFix64[S]{}, err
	}
	step, err := fix.MulDivCeilSigned(dy, off, dx)
	if err != nil {
		return fix.IFix64[S]{}, err
	}
	return p0.Y.CheckedAdd(step)
}
