package scrollshot

import "github.com/hazyhaar/scrollshot/internal/caperr"

// Error is the classified capture error. Re-exported from internal.
type Error = caperr.Error

// Kind categorizes a capture error.
type Kind = caperr.Kind

const (
	ProcessingError     = caperr.ProcessingError
	ElementNotFound     = caperr.ElementNotFound
	PermissionDenied    = caperr.PermissionDenied
	CaptureFailed       = caperr.CaptureFailed
	ScrollControlFailed = caperr.ScrollControlFailed
	DownloadFailed      = caperr.DownloadFailed
)

// Severity grades user impact.
type Severity = caperr.Severity

const (
	SeverityLow      = caperr.SeverityLow
	SeverityMedium   = caperr.SeverityMedium
	SeverityHigh     = caperr.SeverityHigh
	SeverityCritical = caperr.SeverityCritical
)

// KindOf extracts the Kind from any error.
func KindOf(err error) Kind { return caperr.KindOf(err) }

// Retryable reports whether an error's kind permits another attempt.
func Retryable(err error) bool { return caperr.Retryable(err) }

// Classify wraps an arbitrary error into a classified *Error.
func Classify(err error) *Error { return caperr.Classify(err) }
