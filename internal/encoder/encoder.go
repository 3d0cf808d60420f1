// Package encoder converts a composited raster into the requested output
// format. PNG is lossless and keeps alpha; JPEG and PDF have no alpha
// channel, so the raster is painted over an opaque white background first.
package encoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalises a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png", "":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("encoder: unsupported format %q", s)
}

// Extension returns the filename extension for a format, dot included.
func Extension(f Format) string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPDF:
		return ".pdf"
	default:
		return ".png"
	}
}

// MIMEType returns the MIME type for a format.
func MIMEType(f Format) string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPDF:
		return "application/pdf"
	default:
		return "image/png"
	}
}

// Options selects the output encoding.
type Options struct {
	Format Format

	// Quality in [0, 1]; JPEG only, ignored for PNG and PDF. Zero means
	// the 0.92 default.
	Quality float64

	// FilenameTemplate with {timestamp} {date} {time} {format}
	// placeholders. Empty means "capture-{timestamp}".
	FilenameTemplate string

	// Now overrides the template clock; zero means time.Now.
	Now time.Time
}

// Output is the final encoded artifact of a capture session.
type Output struct {
	Bytes    []byte  `json:"-"`
	Format   Format  `json:"format"`
	Quality  float64 `json:"quality,omitempty"`
	Filename string  `json:"filename"`
}

// DataURI renders the output as a data: URI.
func (o *Output) DataURI() string {
	return "data:" + MIMEType(o.Format) + ";base64," + base64.StdEncoding.EncodeToString(o.Bytes)
}

// Encode converts the raster into the requested format.
func Encode(img image.Image, opts Options) (*Output, error) {
	if img == nil {
		return nil, fmt.Errorf("encoder: nil raster")
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var buf bytes.Buffer
	var quality float64
	var err error

	switch opts.Format {
	case FormatPNG:
		// Lossless, alpha preserved, no background fill.
		err = png.Encode(&buf, img)

	case FormatJPEG:
		quality = clampQuality(opts.Quality)
		err = jpeg.Encode(&buf, onWhite(img), &jpeg.Options{Quality: int(quality*100 + 0.5)})

	case FormatPDF:
		err = encodePDF(&buf, onWhite(img))

	default:
		return nil, fmt.Errorf("encoder: unsupported format %q", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoder: encode %s: %w", opts.Format, err)
	}

	return &Output{
		Bytes:    buf.Bytes(),
		Format:   opts.Format,
		Quality:  quality,
		Filename: Filename(opts.FilenameTemplate, opts.Format, now),
	}, nil
}

// onWhite flattens the raster onto an opaque white background.
func onWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// encodePDF wraps the raster in a single-page PDF via pdfcpu's image
// import. The page is sized to the image by the default import config.
func encodePDF(w io.Writer, img image.Image) error {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return err
	}
	return api.ImportImages(nil, w, []io.Reader{bytes.NewReader(pngBuf.Bytes())}, nil, nil)
}

func clampQuality(q float64) float64 {
	switch {
	case q <= 0:
		return 0.92
	case q > 1:
		return 1
	}
	return q
}
