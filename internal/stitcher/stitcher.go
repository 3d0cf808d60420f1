// Package stitcher composites viewport rasters captured at successive
// scroll offsets into one seamless image. Overlap between consecutive
// segments is computed from requested scroll deltas against observed
// region heights — never assumed — and removed once. All crop and
// composite math is done in physical pixels.
package stitcher

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // surfaces may hand back JPEG rasters
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/hazyhaar/scrollshot/internal/geometry"
	"github.com/hazyhaar/scrollshot/internal/planner"
)

// ErrNoSegments is returned when stitching is attempted with no input.
var ErrNoSegments = errors.New("stitcher: no segments to stitch")

// Segment is one captured viewport raster. Observed is the region's
// bounding box as measured after the scroll settled, viewport-relative —
// independent from the originally analysed box, because layout can shift.
// Segments are immutable once captured and arrive in increasing Index
// order; the stitcher never reorders them.
type Segment struct {
	Raster    []byte
	Requested planner.Offset
	Observed  geometry.Rect
	Index     int
}

// Stitcher incrementally composites segments onto an output canvas sized
// region.Box.W × region.TotalHeight in physical pixels. Add segments in
// capture order, then call Result.
type Stitcher struct {
	region *geometry.Region
	dpr    float64
	canvas *image.RGBA
	destY  int
	count  int
	prevY  float64 // previous segment's requested scroll Y
}

// New allocates the output canvas for a region.
func New(region *geometry.Region, dpr float64) (*Stitcher, error) {
	if region == nil {
		return nil, errors.New("stitcher: nil region")
	}
	if dpr <= 0 {
		dpr = 1
	}
	w := px(region.Box.W * dpr)
	h := px(region.TotalHeight * dpr)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("stitcher: degenerate canvas %dx%d", w, h)
	}
	return &Stitcher{
		region: region,
		dpr:    dpr,
		canvas: image.NewRGBA(image.Rect(0, 0, w, h)),
	}, nil
}

// Add decodes seg's raster, crops it to the observed region box, removes
// overlap with the previous segment, and draws it at the next unfilled
// vertical offset.
func (s *Stitcher) Add(seg Segment) error {
	raster, _, err := image.Decode(bytes.NewReader(seg.Raster))
	if err != nil {
		return fmt.Errorf("stitcher: decode segment %d: %w", seg.Index, err)
	}

	crop := cropRect(seg.Observed, s.dpr, raster.Bounds())

	if s.count > 0 {
		// Overlap between this segment and the previous one, in logical
		// pixels: the observed height minus the requested scroll advance.
		// A scroll that failed to advance yields overlap == full height;
		// the segment is then fully redundant and contributes nothing.
		overlap := seg.Observed.H - (seg.Requested.Y - s.prevY)
		if overlap > 0 {
			shift := px(overlap * s.dpr)
			crop.Min.Y += shift
		}
	}
	s.count++
	s.prevY = seg.Requested.Y

	if crop.Dx() <= 0 || crop.Dy() <= 0 {
		return nil
	}

	// Never paint past the canvas bottom.
	h := crop.Dy()
	if remain := s.canvas.Bounds().Dy() - s.destY; h > remain {
		h = remain
	}
	if h <= 0 {
		return nil
	}

	dst := image.Rect(0, s.destY, s.canvas.Bounds().Dx(), s.destY+h)
	src := image.Rect(crop.Min.X, crop.Min.Y, crop.Max.X, crop.Min.Y+h)

	if crop.Dx() != dst.Dx() {
		// Layout shifted the observed width between captures; rescale the
		// slice horizontally so columns stay aligned.
		xdraw.CatmullRom.Scale(s.canvas, dst, raster, src, xdraw.Src, nil)
	} else {
		draw.Draw(s.canvas, dst, raster, src.Min, draw.Src)
	}
	s.destY += h

	return nil
}

// Result returns the composited raster, trimmed to the filled height.
// The output height equals the sum of each segment's contributed height
// and never exceeds region.TotalHeight × dpr.
func (s *Stitcher) Result() (*image.RGBA, error) {
	if s.count == 0 {
		return nil, ErrNoSegments
	}
	if s.destY >= s.canvas.Bounds().Dy() {
		return s.canvas, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, s.canvas.Bounds().Dx(), s.destY))
	draw.Draw(out, out.Bounds(), s.canvas, image.Point{}, draw.Src)
	return out, nil
}

// Stitch composites a full segment list. A single segment needs no
// compositing and delegates to a plain crop.
func Stitch(segs []Segment, region *geometry.Region, dpr float64) (*image.RGBA, error) {
	if len(segs) == 0 {
		return nil, ErrNoSegments
	}
	if len(segs) == 1 {
		return CropToRegion(segs[0].Raster, segs[0].Observed, dpr)
	}
	st, err := New(region, dpr)
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		if err := st.Add(seg); err != nil {
			return nil, err
		}
	}
	return st.Result()
}

// CropToRegion cuts the region box out of a single raster. The crop is
// clamped to the raster's decoded bounds — an out-of-range request is
// shrunk, never an error.
func CropToRegion(raster []byte, box geometry.Rect, dpr float64) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(raster))
	if err != nil {
		return nil, fmt.Errorf("stitcher: decode raster: %w", err)
	}
	if dpr <= 0 {
		dpr = 1
	}
	crop := cropRect(box, dpr, img.Bounds())
	if crop.Dx() <= 0 || crop.Dy() <= 0 {
		return nil, fmt.Errorf("stitcher: region %+v outside raster %v", box, img.Bounds())
	}
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), img, crop.Min, draw.Src)
	return out, nil
}

// EncodePNG losslessly encodes a composited raster. The quality/format
// trade-off is the encoder's concern, not the stitcher's.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("stitcher: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// cropRect converts a viewport-relative logical box into a physical-pixel
// crop clamped inside bounds.
func cropRect(box geometry.Rect, dpr float64, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		px(box.X*dpr),
		px(box.Y*dpr),
		px((box.X+box.W)*dpr),
		px((box.Y+box.H)*dpr),
	)
	return r.Intersect(bounds)
}

func px(v float64) int { return int(math.Round(v)) }
