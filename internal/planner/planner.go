// Package planner produces the ordered scroll offsets that together cover
// a region's full scrollable extent with controlled overlap.
package planner

import "github.com/hazyhaar/scrollshot/internal/geometry"

// OverlapFactor is the fraction of the visible height advanced per step.
// 0.85 leaves a 15% overlap band between consecutive segments, enough to
// absorb sub-pixel scroll drift and sticky-header reflow without gaps.
const OverlapFactor = 0.85

// MaxSegments caps the number of planned offsets. Beyond the cap the plan
// stops early and the last emitted offset is marked final anyway: a
// deliberately lossy degradation instead of unbounded memory growth.
const MaxSegments = 50

// Offset is a planned scroll position. Offsets are monotonically
// non-decreasing in Y; Final marks the offset whose capture reaches
// totalHeight − visibleHeight.
type Offset struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Final bool    `json:"isFinal"`
}

// Plan returns the scroll offsets for a region. Non-scrollable regions, or
// regions whose content fits the visible extent, get a single final offset
// at origin.
func Plan(g *geometry.Region) []Offset {
	if g == nil || !g.Scrollable || g.TotalHeight <= g.VisibleHeight {
		return []Offset{{Final: true}}
	}

	maxScroll := g.TotalHeight - g.VisibleHeight
	step := g.VisibleHeight * OverlapFactor

	var offsets []Offset
	for y := 0.0; ; y += step {
		if len(offsets) == MaxSegments {
			offsets[len(offsets)-1].Final = true
			break
		}
		if y >= maxScroll {
			offsets = append(offsets, Offset{Y: maxScroll, Final: true})
			break
		}
		offsets = append(offsets, Offset{Y: y})
	}
	return offsets
}
