// Package capture drives the external raster and scroll primitives
// through a planned offset sequence, assembling raw segments. The
// protocol is strictly sequential: every step depends on the page's
// shared scroll state, so segments are never captured in parallel.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/scrollshot/internal/caperr"
	"github.com/hazyhaar/scrollshot/internal/geometry"
	"github.com/hazyhaar/scrollshot/internal/planner"
	"github.com/hazyhaar/scrollshot/internal/retry"
	"github.com/hazyhaar/scrollshot/internal/stitcher"
)

// Surface is the external capture contract: a browser tab, or a fake in
// tests. Every call is a suspension point — it must honour ctx and is the
// only place a session yields control.
type Surface interface {
	// CaptureViewport rasters the currently visible viewport at the
	// device pixel ratio. Quality is 0–100 and only meaningful for lossy
	// capture formats.
	CaptureViewport(ctx context.Context, quality int) ([]byte, error)

	// SetRegionScroll scrolls the region (or the page, when selector is
	// empty) to y and returns the position actually reached.
	SetRegionScroll(ctx context.Context, selector string, y float64) (float64, error)

	// ResetScroll returns the region to origin.
	ResetScroll(ctx context.Context, selector string) error

	// MeasureRegion re-measures the region's viewport-relative bounding
	// box after a scroll settled. Layout may have shifted.
	MeasureRegion(ctx context.Context, selector string) (geometry.Rect, error)
}

// Config tunes the orchestration protocol.
type Config struct {
	// SettleDelay is the fixed wait after each scroll instruction before
	// capturing, so async layout and paint can finish. Default 350ms.
	SettleDelay time.Duration

	// StepTimeout bounds each external call. Exceeding it is a retryable
	// failure. Default 10s.
	StepTimeout time.Duration

	// Quality is handed to the capture primitive, 0–100. Default 100.
	Quality int

	Retry  retry.Policy
	Logger *slog.Logger

	// Progress, if set, is told after each captured segment.
	Progress func(completed, total int)
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 350 * time.Millisecond
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 10 * time.Second
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = 100
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.Default
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Retry.Logger = c.Logger
}

// Orchestrator runs the capture protocol for one session at a time.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{cfg: cfg}
}

// Run executes the plan against the surface and returns the captured
// segments in strictly increasing index order. On any exhausted step the
// whole orchestration fails and partial segments are discarded — partial
// results are never surfaced as success. The region's scroll is restored
// to origin on the way out, success or not.
func (o *Orchestrator) Run(ctx context.Context, surface Surface, selector string, plan []planner.Offset) (segs []stitcher.Segment, err error) {
	if len(plan) == 0 {
		return nil, caperr.New(caperr.ProcessingError, errors.New("capture: empty plan"))
	}

	if err := o.resetScroll(ctx, surface, selector); err != nil {
		return nil, err
	}

	// Restore page state for the user even when a step failed or the
	// session was cancelled mid-flight.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StepTimeout)
		defer cancel()
		if rerr := surface.ResetScroll(cleanupCtx, selector); rerr != nil {
			o.cfg.Logger.Warn("capture: reset scroll on exit failed", "error", rerr)
		}
		if err != nil {
			segs = nil
		}
	}()

	segs = make([]stitcher.Segment, 0, len(plan))
	for i, off := range plan {
		// Cancellation is checked at every suspension point; an in-flight
		// call is not forcibly aborted, its result is just discarded.
		if cerr := ctx.Err(); cerr != nil {
			return nil, caperr.New(caperr.ProcessingError, cerr)
		}

		if _, err = retry.Do(ctx, o.cfg.Retry, "scroll", func(ctx context.Context) (float64, error) {
			stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
			defer cancel()
			got, serr := surface.SetRegionScroll(stepCtx, selector, off.Y)
			if serr != nil {
				return 0, asKind(caperr.ScrollControlFailed, stepCtx, serr)
			}
			return got, nil
		}); err != nil {
			return nil, fmt.Errorf("capture: scroll to %v: %w", off.Y, err)
		}

		// Settle: explicit suspend-and-resume, not a spin-wait.
		select {
		case <-ctx.Done():
			return nil, caperr.New(caperr.ProcessingError, ctx.Err())
		case <-time.After(o.cfg.SettleDelay):
		}

		var raster []byte
		if raster, err = retry.Do(ctx, o.cfg.Retry, "capture", func(ctx context.Context) ([]byte, error) {
			stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
			defer cancel()
			buf, cerr := surface.CaptureViewport(stepCtx, o.cfg.Quality)
			if cerr != nil {
				return nil, asKind(caperr.CaptureFailed, stepCtx, cerr)
			}
			return buf, nil
		}); err != nil {
			return nil, fmt.Errorf("capture: segment %d: %w", i, err)
		}

		var observed geometry.Rect
		if observed, err = retry.Do(ctx, o.cfg.Retry, "measure", func(ctx context.Context) (geometry.Rect, error) {
			stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
			defer cancel()
			return surface.MeasureRegion(stepCtx, selector)
		}); err != nil {
			return nil, fmt.Errorf("capture: re-measure segment %d: %w", i, err)
		}

		segs = append(segs, stitcher.Segment{
			Raster:    raster,
			Requested: off,
			Observed:  observed,
			Index:     i,
		})

		if o.cfg.Progress != nil {
			o.cfg.Progress(i+1, len(plan))
		}
	}

	return segs, nil
}

func (o *Orchestrator) resetScroll(ctx context.Context, surface Surface, selector string) error {
	_, err := retry.Do(ctx, o.cfg.Retry, "reset_scroll", func(ctx context.Context) (struct{}, error) {
		stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
		defer cancel()
		if rerr := surface.ResetScroll(stepCtx, selector); rerr != nil {
			return struct{}{}, asKind(caperr.ScrollControlFailed, stepCtx, rerr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("capture: reset scroll: %w", err)
	}
	return nil
}

// asKind classifies a step failure under the step's kind unless the error
// already carries one. A blown step deadline is the step kind, retryable.
func asKind(kind caperr.Kind, ctx context.Context, err error) error {
	var ce *caperr.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return caperr.New(kind, fmt.Errorf("step timeout: %w", err))
	}
	return caperr.New(kind, err)
}
