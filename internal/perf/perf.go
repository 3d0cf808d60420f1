// Package perf tunes capture work to the device's memory budget. It is
// advisory only: it computes segment-size and batch budgets, throttles
// long jobs between batches, and watches memory pressure — it never
// touches captured data.
package perf

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

const bytesPerPixel = 4 // RGBA

const (
	warnRatio    = 0.8
	cleanupRatio = 0.7
)

// Preset bounds capture work for a device class.
type Preset struct {
	Class string

	// MaxSegmentHeight caps a single segment's height in logical pixels.
	MaxSegmentHeight int

	// MemoryThreshold is the working-set ceiling in bytes used for the
	// segment pixel budget.
	MemoryThreshold int64

	// BatchMemoryThreshold caps the estimated bytes processed per batch.
	BatchMemoryThreshold int64
}

// PresetFor picks a device-class preset from (devicePixelRatio,
// screenWidth) bands. Mobile-class devices pack more physical pixels per
// logical pixel into less memory, so they get smaller segments and a
// lower ceiling.
func PresetFor(dpr float64, screenWidth int) Preset {
	switch {
	case dpr >= 2.5 && screenWidth <= 500:
		return Preset{Class: "mobile-high-dpr", MaxSegmentHeight: 2000, MemoryThreshold: 64 << 20, BatchMemoryThreshold: 16 << 20}
	case dpr >= 2 && screenWidth <= 800:
		return Preset{Class: "mobile", MaxSegmentHeight: 4000, MemoryThreshold: 128 << 20, BatchMemoryThreshold: 32 << 20}
	case dpr >= 2:
		return Preset{Class: "desktop-retina", MaxSegmentHeight: 8000, MemoryThreshold: 256 << 20, BatchMemoryThreshold: 64 << 20}
	default:
		return Preset{Class: "desktop", MaxSegmentHeight: 16000, MemoryThreshold: 512 << 20, BatchMemoryThreshold: 128 << 20}
	}
}

// minSegmentHeight is the floor for the pixel budget: below this the
// per-segment overheads dominate.
const minSegmentHeight = 100

// SegmentPixelBudget computes the tallest segment (logical pixels) whose
// RGBA raster fits the memory threshold at the given width and DPR, with
// a 2× safety factor for decode-plus-composite double residency. Clamped
// to [100, preset max].
func SegmentPixelBudget(widthLogical, dpr float64, p Preset) int {
	if widthLogical <= 0 || dpr <= 0 {
		return p.MaxSegmentHeight
	}
	rowBytes := widthLogical * dpr * bytesPerPixel
	budget := int(float64(p.MemoryThreshold) / rowBytes / 2)
	if budget < minSegmentHeight {
		return minSegmentHeight
	}
	if budget > p.MaxSegmentHeight {
		return p.MaxSegmentHeight
	}
	return budget
}

// HeapProbe reports external (browser-side) heap usage in bytes. The rod
// tab exposes one; tests fake it.
type HeapProbe func(ctx context.Context) (int64, error)

// Controller throttles long jobs and monitors memory pressure.
type Controller struct {
	preset  Preset
	logger  *slog.Logger
	probe   HeapProbe
	cleanup func() // extra cleanup hook, may be nil

	// Batching disabled processes all items concurrently.
	batchingDisabled bool

	mu          sync.Mutex
	lastCleanup time.Time
	cooldown    time.Duration

	// swappable in tests
	heapInUse func() int64
	sleep     func(context.Context, time.Duration)
}

// Option configures a Controller.
type Option func(*Controller)

// WithHeapProbe attaches a browser-side heap probe.
func WithHeapProbe(p HeapProbe) Option {
	return func(c *Controller) { c.probe = p }
}

// WithCleanupHook runs extra cleanup (release cached handles) during a
// pressure-triggered cleanup pass.
func WithCleanupHook(f func()) Option {
	return func(c *Controller) { c.cleanup = f }
}

// WithBatchingDisabled turns off progressive batching; ProcessBatches then
// runs all items concurrently with no throttling.
func WithBatchingDisabled() Option {
	return func(c *Controller) { c.batchingDisabled = true }
}

// NewController creates a Controller for a device preset.
func NewController(preset Preset, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		preset:   preset,
		logger:   logger,
		cooldown: 10 * time.Second,
		heapInUse: func() int64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return int64(ms.HeapAlloc)
		},
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Preset returns the controller's device preset.
func (c *Controller) Preset() Preset { return c.preset }

// ProcessBatches runs op for items 0..n−1 in batches whose cumulative
// estimated memory stays under the preset's batch threshold, with a
// cooperative yield and a short cleanup pause between batches. The first
// error aborts remaining work. With batching disabled all items run
// concurrently.
func (c *Controller) ProcessBatches(ctx context.Context, n int, estimate func(i int) int64, op func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	if c.batchingDisabled {
		return c.processAll(ctx, n, op)
	}

	threshold := c.preset.BatchMemoryThreshold
	start := 0
	for start < n {
		end := start
		var est int64
		for end < n {
			est += estimate(end)
			end++
			if est >= threshold && end > start {
				break
			}
		}

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := op(ctx, i); err != nil {
				return err
			}
		}
		start = end

		if start < n {
			// Yield to the scheduler, then give the collector a moment
			// before the next batch touches more pixel data.
			runtime.Gosched()
			c.sleep(ctx, 10*time.Millisecond)
		}
	}
	return nil
}

func (c *Controller) processAll(ctx context.Context, n int, op func(ctx context.Context, i int) error) error {
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := op(ctx, i); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}

// Usage is one memory sample.
type Usage struct {
	HeapBytes   int64
	BrowserJS   int64 // 0 when no probe is attached or it failed
	Ratio       float64
	OverWarn    bool
	OverCleanup bool
}

// Sample reads current memory usage against the preset threshold.
func (c *Controller) Sample(ctx context.Context) Usage {
	u := Usage{HeapBytes: c.heapInUse()}
	if c.probe != nil {
		if js, err := c.probe(ctx); err == nil {
			u.BrowserJS = js
		}
	}
	total := u.HeapBytes + u.BrowserJS
	if c.preset.MemoryThreshold > 0 {
		u.Ratio = float64(total) / float64(c.preset.MemoryThreshold)
	}
	u.OverWarn = u.Ratio > warnRatio
	u.OverCleanup = u.Ratio > cleanupRatio
	return u
}

// Monitor samples usage for a session and, above the warning threshold,
// logs; above the cleanup threshold and past the cooldown it runs a
// best-effort cleanup pass. Returns the sample.
func (c *Controller) Monitor(ctx context.Context, sessionID string) Usage {
	u := c.Sample(ctx)

	if u.OverWarn {
		c.logger.Warn("perf: memory pressure high",
			"session_id", sessionID,
			"ratio", u.Ratio,
			"heap_bytes", u.HeapBytes,
			"browser_js_bytes", u.BrowserJS)
	}

	if u.OverCleanup {
		c.mu.Lock()
		due := time.Since(c.lastCleanup) >= c.cooldown
		if due {
			c.lastCleanup = time.Now()
		}
		c.mu.Unlock()

		if due {
			c.logger.Info("perf: running cleanup pass", "session_id", sessionID)
			if c.cleanup != nil {
				c.cleanup()
			}
			runtime.GC()
			c.sleep(ctx, 50*time.Millisecond)
		}
	}
	return u
}
