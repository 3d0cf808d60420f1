package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// Matrix is a 2×3 affine transform in CSS matrix(a, b, c, d, e, f) layout:
//
//	| a c e |
//	| b d f |
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the no-op transform.
var Identity = Matrix{A: 1, D: 1}

// IsIdentity reports whether the matrix is the identity transform.
func (m Matrix) IsIdentity() bool { return m == Identity }

// Apply transforms a point.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// TransformRect maps all four corners of the rect and returns the
// axis-aligned bounding box of the result.
func (m Matrix) TransformRect(r Rect) Rect {
	c := r.Corners()
	return BoundsOf([]Point{m.Apply(c[0]), m.Apply(c[1]), m.Apply(c[2]), m.Apply(c[3])})
}

// ParseTransform parses a computed CSS transform value. "none" and the
// empty string yield nil. matrix3d is reduced to its 2D components —
// capture is a flat raster, so the projective terms are irrelevant.
// Unrecognised values yield nil rather than an error: a transform we
// cannot parse degrades to "no transform", never a failed capture.
func ParseTransform(s string) *Matrix {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return nil
	}

	switch {
	case strings.HasPrefix(s, "matrix3d(") && strings.HasSuffix(s, ")"):
		vals, err := parseFloats(s[len("matrix3d(") : len(s)-1])
		if err != nil || len(vals) != 16 {
			return nil
		}
		// Column-major 4x4: a=m11 b=m12 c=m21 d=m22 e=m41 f=m42.
		m := Matrix{A: vals[0], B: vals[1], C: vals[4], D: vals[5], E: vals[12], F: vals[13]}
		if m.IsIdentity() {
			return nil
		}
		return &m

	case strings.HasPrefix(s, "matrix(") && strings.HasSuffix(s, ")"):
		vals, err := parseFloats(s[len("matrix(") : len(s)-1])
		if err != nil || len(vals) != 6 {
			return nil
		}
		m := Matrix{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}
		if m.IsIdentity() {
			return nil
		}
		return &m
	}

	return nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("geometry: parse transform component %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
