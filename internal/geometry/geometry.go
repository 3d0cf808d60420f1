// Package geometry computes the effective capture rectangle for a page
// region: shadow extension, 2D affine transforms, iframe nesting offsets,
// and fixed/sticky positioning. It is pure — raw measurements are gathered
// elsewhere and handed in as a Probe, so everything here is testable
// without a browser.
package geometry

import (
	"errors"
	"math"
)

// ErrNotFound is returned by Analyze when the probe reports a stale or
// missing element.
var ErrNotFound = errors.New("geometry: element not found")

// Point is a page-coordinate position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box. Whether it is page-absolute or
// viewport-relative depends on where it came from; Region.Box is always
// page-absolute.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Translate returns the rect shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Expand grows the rect outward by the given insets.
func (r Rect) Expand(in Insets) Rect {
	return Rect{
		X: r.X - in.Left,
		Y: r.Y - in.Top,
		W: r.W + in.Left + in.Right,
		H: r.H + in.Top + in.Bottom,
	}
}

// Corners returns the four corners in clockwise order from top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.X + r.W, r.Y},
		{r.X + r.W, r.Y + r.H},
		{r.X, r.Y + r.H},
	}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// BoundsOf returns the axis-aligned bounding box of the given points.
func BoundsOf(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Insets is a per-edge expansion.
type Insets struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Uniform returns insets with the same value on all four edges.
func Uniform(v float64) Insets {
	return Insets{Top: v, Right: v, Bottom: v, Left: v}
}

// Zero reports whether all edges are zero.
func (in Insets) Zero() bool {
	return in.Top == 0 && in.Right == 0 && in.Bottom == 0 && in.Left == 0
}
