package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/scrollshot/internal/caperr"
	"github.com/hazyhaar/scrollshot/internal/geometry"
)

// Tab wraps a Rod page and implements the capture surface: viewport
// rasters, scroll control, and region probing. One Tab per capture
// session; the scroll state it mutates is why sessions are sequential.
type Tab struct {
	Page    *rod.Page
	PageURL string
	manager *Manager
}

// OpenTab creates a stealth tab, navigates, and waits for load.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b, err := mgr.Acquire()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		mgr.Release()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		mgr.Release()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, manager: mgr}, nil
}

// Close closes the tab and releases the browser.
func (t *Tab) Close() error {
	var err error
	if t.Page != nil {
		err = t.Page.Close()
		t.Page = nil
		t.manager.Release()
	}
	return err
}

// CaptureViewport rasters the visible viewport. Quality below 100 uses
// JPEG at that quality; otherwise PNG, so segments stay lossless until
// the final encode.
func (t *Tab) CaptureViewport(ctx context.Context, quality int) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if quality > 0 && quality < 100 {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = &quality
	}
	buf, err := t.Page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, caperr.New(caperr.CaptureFailed, fmt.Errorf("browser: screenshot: %w", err))
	}
	return buf, nil
}

// selectorJS resolves the scroll/measure target: an explicit selector, or
// the page's scrolling element when the region is the whole page.
const selectorJS = `(sel) => sel ? document.querySelector(sel) : (document.scrollingElement || document.documentElement)`

// SetRegionScroll scrolls the region to y and returns the position
// actually reached — the content may refuse to advance near the bottom.
func (t *Tab) SetRegionScroll(ctx context.Context, selector string, y float64) (float64, error) {
	res, err := t.Page.Context(ctx).Eval(`(sel, y) => {
		const resolve = `+selectorJS+`;
		const el = resolve(sel);
		if (!el) return null;
		el.scrollTop = y;
		if (!sel) window.scrollTo(0, y);
		return el.scrollTop;
	}`, selector, y)
	if err != nil {
		return 0, caperr.New(caperr.ScrollControlFailed, fmt.Errorf("browser: set scroll: %w", err))
	}
	if res.Value.Nil() {
		return 0, caperr.New(caperr.ElementNotFound, fmt.Errorf("browser: no element matches selector %q", selector))
	}
	return res.Value.Num(), nil
}

// ResetScroll returns the region and the page to origin.
func (t *Tab) ResetScroll(ctx context.Context, selector string) error {
	_, err := t.SetRegionScroll(ctx, selector, 0)
	return err
}

// MeasureRegion re-measures the region's viewport-relative bounding box.
func (t *Tab) MeasureRegion(ctx context.Context, selector string) (geometry.Rect, error) {
	res, err := t.Page.Context(ctx).Eval(`(sel) => {
		const resolve = `+selectorJS+`;
		const el = resolve(sel);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return JSON.stringify({x: r.x, y: r.y, w: r.width, h: r.height});
	}`, selector)
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("browser: measure: %w", err)
	}
	if res.Value.Nil() {
		return geometry.Rect{}, caperr.New(caperr.ElementNotFound, fmt.Errorf("browser: no element matches selector %q", selector))
	}
	var box geometry.Rect
	if err := json.Unmarshal([]byte(res.Value.Str()), &box); err != nil {
		return geometry.Rect{}, fmt.Errorf("browser: decode measurement: %w", err)
	}
	return box, nil
}

// ProbeRegion gathers the raw geometry measurements for analysis: rect,
// computed shadow/transform/overflow styles, scroll extents, and the
// embedding frame's rect when inside an iframe. Cross-origin frame access
// degrades to best effort — the probe never throws for it.
func (t *Tab) ProbeRegion(ctx context.Context, selector string) (geometry.Probe, error) {
	res, err := t.Page.Context(ctx).Eval(`(sel) => {
		const resolve = `+selectorJS+`;
		const el = resolve(sel);
		if (!el) return JSON.stringify({found: false});
		const r = el.getBoundingClientRect();
		const cs = getComputedStyle(el);

		let frameRect = null;
		try {
			if (window.frameElement) {
				const fr = window.frameElement.getBoundingClientRect();
				frameRect = {
					x: fr.x + window.parent.scrollX,
					y: fr.y + window.parent.scrollY,
					w: fr.width,
					h: fr.height,
				};
			}
		} catch (e) {
			// Cross-origin boundary: the embedder exposes nothing more.
		}

		return JSON.stringify({
			found: true,
			rect: {x: r.x, y: r.y, w: r.width, h: r.height},
			scrollX: window.scrollX,
			scrollY: window.scrollY,
			boxShadow: cs.boxShadow,
			textShadow: cs.textShadow,
			transform: cs.transform,
			overflowY: cs.overflowY,
			position: cs.position,
			zIndex: parseInt(cs.zIndex, 10) || 0,
			scrollHeight: el.scrollHeight,
			clientHeight: el.clientHeight,
			viewportHeight: window.innerHeight,
			frameRect: frameRect,
		});
	}`, selector)
	if err != nil {
		return geometry.Probe{}, fmt.Errorf("browser: probe: %w", err)
	}
	var p geometry.Probe
	if err := json.Unmarshal([]byte(res.Value.Str()), &p); err != nil {
		return geometry.Probe{}, fmt.Errorf("browser: decode probe: %w", err)
	}
	return p, nil
}

// DevicePixelRatio reports the page's DPR; crop and composite math runs
// in physical pixels.
func (t *Tab) DevicePixelRatio(ctx context.Context) (float64, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.devicePixelRatio`)
	if err != nil {
		return 0, fmt.Errorf("browser: devicePixelRatio: %w", err)
	}
	dpr := res.Value.Num()
	if dpr <= 0 {
		dpr = 1
	}
	return dpr, nil
}

// ScreenWidth reports the device screen width for performance presets.
func (t *Tab) ScreenWidth(ctx context.Context) (int, error) {
	res, err := t.Page.Context(ctx).Eval(`() => screen.width`)
	if err != nil {
		return 0, fmt.Errorf("browser: screen width: %w", err)
	}
	return res.Value.Int(), nil
}

// HeapUsage is the perf controller's browser-side memory probe.
func (t *Tab) HeapUsage(ctx context.Context) (int64, error) {
	res, err := t.Page.Context(ctx).Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
