// Package scrollshot captures full-length screenshots of scrollable page
// regions. It probes the region's geometry (shadows, transforms, iframe
// nesting), plans overlapping scroll segments, drives a headless Chrome
// through the scroll-capture loop, stitches the segments into one canvas,
// and encodes the result as PNG, JPEG, or PDF.
package scrollshot

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/hazyhaar/scrollshot/idgen"
	"github.com/hazyhaar/scrollshot/internal/browser"
	"github.com/hazyhaar/scrollshot/internal/caperr"
	"github.com/hazyhaar/scrollshot/internal/capture"
	"github.com/hazyhaar/scrollshot/internal/config"
	"github.com/hazyhaar/scrollshot/internal/encoder"
	"github.com/hazyhaar/scrollshot/internal/geometry"
	"github.com/hazyhaar/scrollshot/internal/perf"
	"github.com/hazyhaar/scrollshot/internal/planner"
	"github.com/hazyhaar/scrollshot/internal/retry"
	"github.com/hazyhaar/scrollshot/internal/session"
	"github.com/hazyhaar/scrollshot/internal/stitcher"
)

// Request describes one capture.
type Request struct {
	// URL of the page to capture.
	URL string `json:"url"`

	// Selector of the region. Empty captures the page's scrolling element.
	Selector string `json:"selector,omitempty"`

	// Format: png (default), jpeg, or pdf.
	Format string `json:"format,omitempty"`

	// Quality in [0, 1], JPEG only. Zero means 0.92.
	Quality float64 `json:"quality,omitempty"`

	// FilenameTemplate overrides the configured template.
	FilenameTemplate string `json:"filename_template,omitempty"`
}

// Output is the encoded capture artifact.
type Output = encoder.Output

// Snapshot is a point-in-time view of an async session.
type Snapshot = session.Snapshot

// Surface is the browser contract the orchestrator drives. Implemented
// by internal/browser over rod; tests use fakes.
type Surface = capture.Surface

// Saver persists an Output somewhere and returns its location. The engine
// itself never touches disk; callers decide where artifacts go.
type Saver interface {
	Save(ctx context.Context, out *Output) (string, error)
}

// Progress stage boundaries, percent of the whole session.
const (
	stageAnalyzeDone = 10
	stageCaptureDone = 70
	stageStitchDone  = 90
)

// Engine owns the browser, the session registry, and the capture
// pipeline. One Engine serves any number of concurrent sessions, each on
// its own tab.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *browser.Manager
	sessions *session.Store
	newID    idgen.Generator
}

// New creates an Engine from a configuration. A nil config gets defaults.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		manager: browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			MemoryLimit:     cfg.Browser.MemoryLimit,
			RecycleInterval: cfg.Browser.RecycleInterval,
			NavTimeout:      cfg.Browser.NavTimeout,
			Logger:          logger,
		}),
		sessions: session.NewStore(0, logger),
		newID:    idgen.Session,
	}
}

// Start launches the browser and its recycle monitor. ctx bounds the
// monitor's lifetime, not individual captures.
func (e *Engine) Start(ctx context.Context) error {
	return e.manager.Start(ctx)
}

// Close shuts the browser down. In-flight sessions fail.
func (e *Engine) Close() error {
	return e.manager.Close()
}

// Capture runs one capture synchronously.
func (e *Engine) Capture(ctx context.Context, req Request) (*Output, error) {
	id := e.newID()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Capture.SessionTimeout)
	defer cancel()

	e.sessions.Create(id, cancel)
	out, err := e.run(ctx, id, req)
	if err != nil {
		e.sessions.Fail(id, caperr.Classify(err))
		return nil, err
	}
	e.sessions.Complete(id, out)
	return out, nil
}

// CaptureAsync starts a capture in the background and returns its session
// ID immediately. Poll Session for progress; the output is attached to
// the completed session for the grace period.
func (e *Engine) CaptureAsync(ctx context.Context, req Request) string {
	id := e.newID()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Capture.SessionTimeout)

	e.sessions.Create(id, cancel)
	go func() {
		defer cancel()
		out, err := e.run(runCtx, id, req)
		if err != nil {
			e.sessions.Fail(id, caperr.Classify(err))
			return
		}
		e.sessions.Complete(id, out)
	}()
	return id
}

// Session returns the snapshot of a session, or false if it is unknown or
// already evicted.
func (e *Engine) Session(id string) (Snapshot, bool) {
	return e.sessions.Get(id)
}

// CancelSession cancels a running session.
func (e *Engine) CancelSession(id string) bool {
	return e.sessions.Cancel(id)
}

// run is the capture pipeline: open tab, probe, analyze, plan,
// orchestrate, stitch, encode.
func (e *Engine) run(ctx context.Context, id string, req Request) (*Output, error) {
	if req.URL == "" {
		return nil, caperr.New(caperr.ProcessingError, fmt.Errorf("scrollshot: empty URL"))
	}
	opts, err := e.encodeOptions(req)
	if err != nil {
		return nil, caperr.New(caperr.ProcessingError, err)
	}

	started := time.Now()
	log := e.logger.With("session_id", id, "url", req.URL, "selector", req.Selector)
	log.Info("capture: session started", "format", string(opts.Format))

	tab, err := browser.OpenTab(ctx, e.manager, req.URL)
	if err != nil {
		return nil, caperr.Classify(err)
	}
	defer tab.Close()

	// Device characteristics drive the performance preset.
	dpr, err := tab.DevicePixelRatio(ctx)
	if err != nil {
		return nil, caperr.Classify(err)
	}
	screenW, err := tab.ScreenWidth(ctx)
	if err != nil {
		return nil, caperr.Classify(err)
	}
	preset := perf.PresetFor(dpr, screenW)
	ctl := perf.NewController(preset, log, perf.WithHeapProbe(tab.HeapUsage))
	log.Debug("capture: device profile", "dpr", dpr, "screen_width", screenW, "preset", preset.Class)

	// Probe and analyze the region geometry.
	probe, err := tab.ProbeRegion(ctx, req.Selector)
	if err != nil {
		return nil, caperr.Classify(err)
	}
	region, err := geometry.Analyze(probe)
	if err != nil {
		if err == geometry.ErrNotFound {
			return nil, caperr.New(caperr.ElementNotFound, fmt.Errorf("scrollshot: selector %q matched nothing", req.Selector))
		}
		return nil, caperr.Classify(err)
	}
	plan := planner.Plan(region)
	e.sessions.SetProgress(id, stageAnalyzeDone, "analyzed")
	log.Info("capture: plan ready",
		"segments", len(plan),
		"total_height", region.TotalHeight,
		"visible_height", region.VisibleHeight,
		"scrollable", region.Scrollable)

	// Scroll-and-raster loop.
	orch := capture.New(capture.Config{
		SettleDelay: e.cfg.Capture.SettleDelay,
		StepTimeout: e.cfg.Capture.StepTimeout,
		Retry: retry.Policy{
			MaxAttempts: e.cfg.Retry.MaxAttempts,
			BaseDelay:   e.cfg.Retry.BaseDelay,
			Multiplier:  e.cfg.Retry.Multiplier,
			Logger:      log,
		},
		Logger: log,
		Progress: func(completed, total int) {
			span := stageCaptureDone - stageAnalyzeDone
			e.sessions.SetProgress(id, stageAnalyzeDone+span*completed/total, "capturing")
		},
	})
	segs, err := orch.Run(ctx, tab, req.Selector, plan)
	if err != nil {
		return nil, err
	}

	// Stitch, in index order, batched by estimated pixel memory.
	img, err := e.stitch(ctx, id, ctl, segs, region, dpr)
	if err != nil {
		return nil, err
	}
	e.sessions.SetProgress(id, stageStitchDone, "stitched")

	// Encode the final artifact.
	out, err := encoder.Encode(img, opts)
	if err != nil {
		return nil, caperr.New(caperr.ProcessingError, err)
	}

	log.Info("capture: session complete",
		"segments", len(segs),
		"bytes", len(out.Bytes),
		"filename", out.Filename,
		"elapsed", time.Since(started))
	return out, nil
}

// encodeOptions resolves a request's encoding against the configured
// defaults. The request wins field by field.
func (e *Engine) encodeOptions(req Request) (encoder.Options, error) {
	name := req.Format
	if name == "" {
		name = e.cfg.Encode.Format
	}
	format, err := encoder.ParseFormat(name)
	if err != nil {
		return encoder.Options{}, err
	}
	quality := req.Quality
	if quality == 0 {
		quality = e.cfg.Encode.Quality
	}
	tmpl := req.FilenameTemplate
	if tmpl == "" {
		tmpl = e.cfg.Encode.FilenameTemplate
	}
	return encoder.Options{
		Format:           format,
		Quality:          quality,
		FilenameTemplate: tmpl,
	}, nil
}

// stitch composites the segments onto one canvas. A lone segment is
// cropped to its observed box directly — the canvas is sized to the
// expanded region box, and routing one segment through it would rescale
// instead of crop. Composition is order dependent, so even the batched
// path feeds segments strictly in index order; disabling batches just
// removes the inter-batch pauses.
func (e *Engine) stitch(ctx context.Context, id string, ctl *perf.Controller, segs []stitcher.Segment, region *geometry.Region, dpr float64) (*image.RGBA, error) {
	if len(segs) == 1 {
		img, err := stitcher.CropToRegion(segs[0].Raster, segs[0].Observed, dpr)
		if err != nil {
			return nil, caperr.New(caperr.ProcessingError, err)
		}
		return img, nil
	}

	st, err := stitcher.New(region, dpr)
	if err != nil {
		return nil, caperr.New(caperr.ProcessingError, err)
	}

	add := func(ctx context.Context, i int) error {
		ctl.Monitor(ctx, id)
		return st.Add(segs[i])
	}

	if e.cfg.Capture.DisableBatch {
		for i := range segs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := add(ctx, i); err != nil {
				return nil, caperr.New(caperr.ProcessingError, err)
			}
		}
	} else {
		rowBytes := int64(region.Box.W * dpr * 4)
		err := ctl.ProcessBatches(ctx, len(segs),
			func(i int) int64 { return rowBytes * int64(segs[i].Observed.H*dpr) },
			add)
		if err != nil {
			return nil, caperr.Classify(err)
		}
	}

	img, err := st.Result()
	if err != nil {
		return nil, caperr.New(caperr.ProcessingError, err)
	}
	return img, nil
}
