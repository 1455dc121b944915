package generator

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// CurvePoint is one sample of a piecewise-linear characteristic.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve interpolates linearly between samples and holds the end values
// outside the sampled range.
type Curve struct {
	points []CurvePoint
	pl     interp.PiecewiseLinear
}

// NewCurve validates the samples. X must be strictly increasing and Y
// non-decreasing.
func NewCurve(points []CurvePoint) (*Curve, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty curve", ErrInvalidConfig)
	}
	pts := append([]CurvePoint(nil), points...)
	for i := 1; i < len(pts); i++ {
		if pts[i].X <= pts[i-1].X {
			return nil, fmt.Errorf("%w: curve x values must be strictly increasing (%.3f after %.3f)", ErrInvalidConfig, pts[i].X, pts[i-1].X)
		}
		if pts[i].Y < pts[i-1].Y {
			return nil, fmt.Errorf("%w: curve is not monotonic at x=%.3f", ErrInvalidConfig, pts[i].X)
		}
	}
	c := &Curve{points: pts}
	if len(pts) == 1 {
		return c, nil
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	if err := c.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

// At evaluates the curve.
func (c *Curve) At(x float64) float64 {
	n := len(c.points)
	switch {
	case n == 1 || x <= c.points[0].X:
		return c.points[0].Y
	case x >= c.points[n-1].X:
		return c.points[n-1].Y
	}
	return c.pl.Predict(x)
}

// Max returns the largest sampled value.
func (c *Curve) Max() float64 {
	return c.points[len(c.points)-1].Y
}

// Min returns the smallest sampled value.
func (c *Curve) Min() float64 {
	return c.points[0].Y
}
