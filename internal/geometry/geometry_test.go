package geometry

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestShadowExtent_Single(t *testing.T) {
	// max(|4|, |8|) + 12 blur + 2 spread = 22
	got := ShadowExtent("rgba(0, 0, 0, 0.5) 4px 8px 12px 2px")
	if !almostEqual(got, 22) {
		t.Errorf("extent: got %v, want 22", got)
	}
}

func TestShadowExtent_MultipleTakesMax(t *testing.T) {
	got := ShadowExtent("rgb(0, 0, 0) 0px 2px 4px, rgba(10, 20, 30, 0.4) -10px 0px 20px 5px")
	// second shadow: max(10,0)+20+5 = 35
	if !almostEqual(got, 35) {
		t.Errorf("extent: got %v, want 35", got)
	}
}

func TestShadowExtent_InsetIgnored(t *testing.T) {
	if got := ShadowExtent("inset 0px 4px 8px rgba(0,0,0,0.3)"); got != 0 {
		t.Errorf("inset shadow: got %v, want 0", got)
	}
}

func TestShadowExtent_NoneIsZero(t *testing.T) {
	if got := ShadowExtent("none"); got != 0 {
		t.Errorf("none: got %v, want 0", got)
	}
	if got := ShadowExtent(""); got != 0 {
		t.Errorf("empty: got %v, want 0", got)
	}
}

func TestShadowExtent_LeadingColor(t *testing.T) {
	// Computed style puts the colour first; lengths must still come out
	// in offset-x, offset-y, blur, spread order.
	got := ShadowExtent("rgba(255, 255, 255, 1) -3px 6px 9px")
	if !almostEqual(got, 15) { // max(3,6)+9
		t.Errorf("extent: got %v, want 15", got)
	}
}

func TestParseTransform(t *testing.T) {
	m := ParseTransform("matrix(2, 0, 0, 2, 10, 20)")
	if m == nil {
		t.Fatal("ParseTransform: got nil")
	}
	p := m.Apply(Point{X: 1, Y: 1})
	if !almostEqual(p.X, 12) || !almostEqual(p.Y, 22) {
		t.Errorf("Apply: got (%v, %v), want (12, 22)", p.X, p.Y)
	}
}

func TestParseTransform_NoneAndIdentity(t *testing.T) {
	if ParseTransform("none") != nil {
		t.Error("none: want nil")
	}
	if ParseTransform("matrix(1, 0, 0, 1, 0, 0)") != nil {
		t.Error("identity: want nil")
	}
	if ParseTransform("translateX(10px)") != nil {
		t.Error("unparsed function: want nil (degrade, not fail)")
	}
}

func TestParseTransform_Matrix3D(t *testing.T) {
	m := ParseTransform("matrix3d(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 7, 0, 1)")
	if m == nil {
		t.Fatal("matrix3d: got nil")
	}
	if !almostEqual(m.E, 5) || !almostEqual(m.F, 7) {
		t.Errorf("matrix3d translation: got (%v, %v), want (5, 7)", m.E, m.F)
	}
}

func TestTransformRect_Rotation(t *testing.T) {
	// 90° rotation: matrix(0, 1, -1, 0, 0, 0). A unit square at origin
	// maps to x ∈ [-1, 0], y ∈ [0, 1].
	m := Matrix{A: 0, B: 1, C: -1, D: 0}
	r := m.TransformRect(Rect{X: 0, Y: 0, W: 1, H: 1})
	if !almostEqual(r.X, -1) || !almostEqual(r.Y, 0) || !almostEqual(r.W, 1) || !almostEqual(r.H, 1) {
		t.Errorf("TransformRect: got %+v", r)
	}
}

func TestAnalyze_ShadowExpansion(t *testing.T) {
	// Spec scenario: box {100,100,200,100} with shadow extent 15 expands
	// to {85,85,230,130}.
	p := Probe{
		Found:     true,
		Rect:      Rect{X: 100, Y: 100, W: 200, H: 100},
		BoxShadow: "rgb(0, 0, 0) 0px 5px 10px", // max(0,5)+10 = 15
	}
	g, err := Analyze(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Rect{X: 85, Y: 85, W: 230, H: 130}
	if g.Box != want {
		t.Errorf("Box: got %+v, want %+v", g.Box, want)
	}
}

func TestAnalyze_ZeroShadowNoOp(t *testing.T) {
	p := Probe{Found: true, Rect: Rect{X: 10, Y: 20, W: 30, H: 40}}
	g, err := Analyze(p)
	if err != nil {
		t.Fatal(err)
	}
	if g.Box != (Rect{X: 10, Y: 20, W: 30, H: 40}) {
		t.Errorf("Box changed without shadow: %+v", g.Box)
	}
	if !g.ShadowExpansion.Zero() {
		t.Errorf("ShadowExpansion: got %+v, want zero", g.ShadowExpansion)
	}
}

func TestAnalyze_PageAbsolute(t *testing.T) {
	p := Probe{
		Found:   true,
		Rect:    Rect{X: 10, Y: -50, W: 100, H: 100},
		ScrollX: 0, ScrollY: 500,
	}
	g, err := Analyze(p)
	if err != nil {
		t.Fatal(err)
	}
	if g.Box.Y != 450 {
		t.Errorf("Box.Y: got %v, want 450 (scroll-adjusted)", g.Box.Y)
	}
}

func TestAnalyze_FrameOffset(t *testing.T) {
	p := Probe{
		Found:     true,
		Rect:      Rect{X: 10, Y: 10, W: 50, H: 50},
		FrameRect: &Rect{X: 200, Y: 300, W: 400, H: 400},
	}
	g, err := Analyze(p)
	if err != nil {
		t.Fatal(err)
	}
	if g.Box.X != 210 || g.Box.Y != 310 {
		t.Errorf("Box: got %+v, want offset by frame (210, 310)", g.Box)
	}
	if g.FrameOffset == nil || g.FrameOffset.X != 200 || g.FrameOffset.Y != 300 {
		t.Errorf("FrameOffset: got %+v", g.FrameOffset)
	}
}

func TestAnalyze_Scrollable(t *testing.T) {
	cases := []struct {
		name string
		p    Probe
		want bool
	}{
		{
			name: "overflow auto with taller content",
			p:    Probe{Found: true, OverflowY: "auto", ScrollHeight: 2000, ClientHeight: 500, ViewportHeight: 900},
			want: true,
		},
		{
			name: "overflow visible but effectively long",
			p:    Probe{Found: true, OverflowY: "visible", ScrollHeight: 2000, ClientHeight: 2000, ViewportHeight: 900},
			want: true, // 2000 > 1.5×900
		},
		{
			name: "short content",
			p:    Probe{Found: true, OverflowY: "visible", ScrollHeight: 600, ClientHeight: 600, ViewportHeight: 900},
			want: false,
		},
		{
			name: "overflow hidden and not long",
			p:    Probe{Found: true, OverflowY: "hidden", ScrollHeight: 1200, ClientHeight: 500, ViewportHeight: 900},
			want: false,
		},
	}
	for _, tc := range cases {
		g, err := Analyze(tc.p)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if g.Scrollable != tc.want {
			t.Errorf("%s: Scrollable = %v, want %v", tc.name, g.Scrollable, tc.want)
		}
	}
}

func TestAnalyze_ScrollableHeights(t *testing.T) {
	p := Probe{
		Found:        true,
		Rect:         Rect{X: 0, Y: 0, W: 300, H: 500},
		OverflowY:    "scroll",
		ScrollHeight: 2400, ClientHeight: 600, ViewportHeight: 900,
	}
	g, err := Analyze(p)
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalHeight != 2400 || g.VisibleHeight != 600 {
		t.Errorf("heights: got total=%v visible=%v, want 2400/600", g.TotalHeight, g.VisibleHeight)
	}
}

func TestAnalyze_NotFound(t *testing.T) {
	_, err := Analyze(Probe{Found: false})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAnalyze_FixedSticky(t *testing.T) {
	g, err := Analyze(Probe{Found: true, Position: "sticky"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.FixedOrSticky {
		t.Error("sticky position not detected")
	}
}
