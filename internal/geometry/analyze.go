package geometry

import "math"

// longContentFactor marks content as effectively scrollable when it is
// taller than this multiple of the viewport, even without native overflow.
const longContentFactor = 1.5

// Probe is the raw measurement of a region, taken in the page by the
// browser layer. Rect is viewport-relative (getBoundingClientRect);
// ScrollX/ScrollY are the page scroll at probe time; the style fields are
// computed-style strings. FrameRect, when non-nil, is the page-absolute
// rect of the embedding frame's border box in the top document — for
// cross-origin frames the embedder can only expose its own side of the
// boundary, and that best-effort value is all we get.
type Probe struct {
	Found          bool    `json:"found"`
	Rect           Rect    `json:"rect"`
	ScrollX        float64 `json:"scrollX"`
	ScrollY        float64 `json:"scrollY"`
	BoxShadow      string  `json:"boxShadow"`
	TextShadow     string  `json:"textShadow"`
	Transform      string  `json:"transform"`
	OverflowY      string  `json:"overflowY"`
	Position       string  `json:"position"`
	ZIndex         int     `json:"zIndex"`
	ScrollHeight   float64 `json:"scrollHeight"`
	ClientHeight   float64 `json:"clientHeight"`
	ViewportHeight float64 `json:"viewportHeight"`
	FrameRect      *Rect   `json:"frameRect,omitempty"`
}

// Region is the analysed capture target. Box is page-coordinate-absolute
// and immutable once built.
type Region struct {
	Box             Rect
	TotalHeight     float64
	VisibleHeight   float64
	Scrollable      bool
	Transform       *Matrix
	ShadowExpansion Insets
	FrameOffset     *Point
	FixedOrSticky   bool
	StackOrder      int
}

// Analyze derives the effective capture geometry from a probe.
//
// Order of operations: page-absolute base box, then shadow expansion,
// then frame offset, then transform. Shadows are expanded before the
// transform is applied — shadow lengths are specified in the element's
// source coordinate space — and that order is kept consistent everywhere.
func Analyze(p Probe) (*Region, error) {
	if !p.Found {
		return nil, ErrNotFound
	}

	// Base box in page coordinates: viewport box + page scroll.
	box := p.Rect.Translate(p.ScrollX, p.ScrollY)

	// Shadows can render outside the layout box; failing to expand here
	// crops visible shadow. Box and text shadows are measured
	// independently and the larger extent wins.
	extent := math.Max(ShadowExtent(p.BoxShadow), ShadowExtent(p.TextShadow))
	expansion := Uniform(extent)
	box = box.Expand(expansion)

	// Nested in a sub-document: shift into the top document's space.
	var frameOffset *Point
	if p.FrameRect != nil {
		frameOffset = &Point{X: p.FrameRect.X, Y: p.FrameRect.Y}
		box = box.Translate(frameOffset.X, frameOffset.Y)
	}

	// Transform last: map the shadow-expanded box's corners and take the
	// axis-aligned bounds.
	tm := ParseTransform(p.Transform)
	if tm != nil {
		box = tm.TransformRect(box)
	}

	scrollable := (overflowScrolls(p.OverflowY) && p.ScrollHeight > p.ClientHeight) ||
		(p.ViewportHeight > 0 && p.ScrollHeight > longContentFactor*p.ViewportHeight)

	total := box.H
	visible := box.H
	if scrollable {
		total = p.ScrollHeight
		visible = p.ClientHeight
		if visible <= 0 {
			visible = box.H
		}
	}

	return &Region{
		Box:             box,
		TotalHeight:     total,
		VisibleHeight:   visible,
		Scrollable:      scrollable,
		Transform:       tm,
		ShadowExpansion: expansion,
		FrameOffset:     frameOffset,
		FixedOrSticky:   p.Position == "fixed" || p.Position == "sticky",
		StackOrder:      p.ZIndex,
	}, nil
}

func overflowScrolls(v string) bool {
	switch v {
	case "auto", "scroll", "overlay":
		return true
	}
	return false
}
