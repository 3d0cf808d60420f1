package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/scrollshot/internal/caperr"
	"github.com/hazyhaar/scrollshot/internal/geometry"
	"github.com/hazyhaar/scrollshot/internal/planner"
	"github.com/hazyhaar/scrollshot/internal/retry"
)

// fakeSurface scripts the external primitives and records the call order.
type fakeSurface struct {
	calls       []string
	scrollY     float64
	failCapture int // fail this many captures before succeeding
	failScroll  int
	measureErr  error
}

func (f *fakeSurface) CaptureViewport(_ context.Context, _ int) ([]byte, error) {
	f.calls = append(f.calls, "capture")
	if f.failCapture > 0 {
		f.failCapture--
		return nil, errors.New("screenshot raster empty")
	}
	return []byte("raster"), nil
}

func (f *fakeSurface) SetRegionScroll(_ context.Context, _ string, y float64) (float64, error) {
	f.calls = append(f.calls, "scroll")
	if f.failScroll > 0 {
		f.failScroll--
		return 0, errors.New("scroll did not settle")
	}
	f.scrollY = y
	return y, nil
}

func (f *fakeSurface) ResetScroll(_ context.Context, _ string) error {
	f.calls = append(f.calls, "reset")
	f.scrollY = 0
	return nil
}

func (f *fakeSurface) MeasureRegion(_ context.Context, _ string) (geometry.Rect, error) {
	f.calls = append(f.calls, "measure")
	if f.measureErr != nil {
		return geometry.Rect{}, f.measureErr
	}
	return geometry.Rect{X: 0, Y: 10 - f.scrollY/100, W: 200, H: 400}, nil
}

func fastConfig() Config {
	return Config{
		SettleDelay: time.Millisecond,
		StepTimeout: time.Second,
		Retry:       retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2},
	}
}

func plan3() []planner.Offset {
	return []planner.Offset{{Y: 0}, {Y: 340}, {Y: 400, Final: true}}
}

func TestRun_SequentialProtocol(t *testing.T) {
	f := &fakeSurface{}
	segs, err := New(fastConfig()).Run(context.Background(), f, "#feed", plan3())
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("segments: got %d, want 3", len(segs))
	}

	// Reset, then per offset scroll→capture→measure, then reset.
	want := []string{"reset",
		"scroll", "capture", "measure",
		"scroll", "capture", "measure",
		"scroll", "capture", "measure",
		"reset"}
	if len(f.calls) != len(want) {
		t.Fatalf("calls: got %v", f.calls)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("call %d: got %s, want %s (full: %v)", i, f.calls[i], want[i], f.calls)
		}
	}

	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
	}
	// Observed boxes are re-measured per segment, not copied from the plan.
	if segs[0].Observed == segs[1].Observed {
		t.Error("observed boxes should reflect per-scroll measurement")
	}
}

func TestRun_RetriesTransientCapture(t *testing.T) {
	f := &fakeSurface{failCapture: 2}
	segs, err := New(fastConfig()).Run(context.Background(), f, "#feed", plan3()[:1])
	if err != nil {
		t.Fatalf("transient failures within budget should recover: %v", err)
	}
	if len(segs) != 1 {
		t.Errorf("segments: got %d, want 1", len(segs))
	}
}

func TestRun_ExhaustionDiscardsPartials(t *testing.T) {
	// First segment succeeds; from then on every capture fails, beyond
	// the retry budget.
	f := &fakeSurface{}
	cfg := fastConfig()
	orch := New(cfg)

	f.failCapture = 0
	plan := plan3()
	// Fail all captures for the second offset onwards.
	step := 0
	wrapped := &scriptedSurface{inner: f, onCapture: func() error {
		step++
		if step > 1 {
			return errors.New("capture lost target")
		}
		return nil
	}}

	segs, err := orch.Run(context.Background(), wrapped, "#feed", plan)
	if err == nil {
		t.Fatal("want failure once retries exhaust")
	}
	if segs != nil {
		t.Errorf("partial segments must be discarded, got %d", len(segs))
	}
	if caperr.KindOf(err) != caperr.CaptureFailed {
		t.Errorf("kind: got %s, want capture_failed", caperr.KindOf(err))
	}
	// Scroll state restored even on failure.
	if f.calls[len(f.calls)-1] != "reset" {
		t.Errorf("last call: got %s, want reset", f.calls[len(f.calls)-1])
	}
}

func TestRun_ElementGoneIsTerminal(t *testing.T) {
	f := &fakeSurface{measureErr: caperr.New(caperr.ElementNotFound, errors.New("stale handle"))}
	measures := 0
	wrapped := &scriptedSurface{inner: f, onMeasure: func() { measures++ }}

	_, err := New(fastConfig()).Run(context.Background(), wrapped, "#feed", plan3())
	if caperr.KindOf(err) != caperr.ElementNotFound {
		t.Fatalf("kind: got %s, want element_not_found", caperr.KindOf(err))
	}
	if measures != 1 {
		t.Errorf("measure calls: got %d, want 1 (terminal kinds never retry)", measures)
	}
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	f := &fakeSurface{}
	ctx, cancel := context.WithCancel(context.Background())

	captured := 0
	wrapped := &scriptedSurface{inner: f, onCapture: func() error {
		captured++
		if captured == 1 {
			cancel() // cancel mid-session, after the first segment
		}
		return nil
	}}

	segs, err := New(fastConfig()).Run(ctx, wrapped, "#feed", plan3())
	if err == nil {
		t.Fatal("want error after cancellation")
	}
	if segs != nil {
		t.Error("cancelled session must not surface partial segments")
	}
	if f.calls[len(f.calls)-1] != "reset" {
		t.Error("scroll must still be reset after cancellation")
	}
}

func TestRun_ProgressMonotonic(t *testing.T) {
	f := &fakeSurface{}
	var reported []int
	cfg := fastConfig()
	cfg.Progress = func(done, total int) { reported = append(reported, done*100/total) }

	if _, err := New(cfg).Run(context.Background(), f, "#feed", plan3()); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(reported); i++ {
		if reported[i] < reported[i-1] {
			t.Fatalf("progress not monotonic: %v", reported)
		}
	}
	if len(reported) != 3 || reported[2] != 100 {
		t.Errorf("progress: got %v", reported)
	}
}

// scriptedSurface decorates fakeSurface with per-call hooks.
type scriptedSurface struct {
	inner     *fakeSurface
	onCapture func() error
	onMeasure func()
}

func (s *scriptedSurface) CaptureViewport(ctx context.Context, q int) ([]byte, error) {
	buf, err := s.inner.CaptureViewport(ctx, q)
	if err != nil {
		return nil, err
	}
	if s.onCapture != nil {
		if herr := s.onCapture(); herr != nil {
			return nil, herr
		}
	}
	return buf, nil
}

func (s *scriptedSurface) SetRegionScroll(ctx context.Context, sel string, y float64) (float64, error) {
	return s.inner.SetRegionScroll(ctx, sel, y)
}

func (s *scriptedSurface) ResetScroll(ctx context.Context, sel string) error {
	return s.inner.ResetScroll(ctx, sel)
}

func (s *scriptedSurface) MeasureRegion(ctx context.Context, sel string) (geometry.Rect, error) {
	if s.onMeasure != nil {
		s.onMeasure()
	}
	return s.inner.MeasureRegion(ctx, sel)
}
