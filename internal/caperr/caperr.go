// Package caperr defines the capture error taxonomy: a typed kind carried
// through the call stack, with severity and fallback eligibility attached.
// Classification by message keywords exists only at the true host boundary
// (Classify), where an opaque browser error string must be mapped to a kind.
package caperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a capture failure.
type Kind int

const (
	// ProcessingError is the default: something went wrong mid-pipeline.
	// Retryable.
	ProcessingError Kind = iota

	// ElementNotFound means the target selector matched nothing or the
	// handle went stale. Terminal — retrying the same selector cannot
	// succeed.
	ElementNotFound

	// PermissionDenied means the host refused access (cross-origin frame,
	// protected surface). Terminal.
	PermissionDenied

	// CaptureFailed means the viewport raster primitive failed. Retryable;
	// fallback is a simplified single-viewport capture.
	CaptureFailed

	// ScrollControlFailed means the scroll primitive failed or timed out.
	// Retryable.
	ScrollControlFailed

	// DownloadFailed means handing the artifact to the persistence
	// collaborator failed. Retryable; fallback is a manual save.
	DownloadFailed
)

func (k Kind) String() string {
	switch k {
	case ElementNotFound:
		return "element_not_found"
	case PermissionDenied:
		return "permission_denied"
	case CaptureFailed:
		return "capture_failed"
	case ScrollControlFailed:
		return "scroll_control_failed"
	case DownloadFailed:
		return "download_failed"
	default:
		return "processing_error"
	}
}

// Retryable reports whether an operation failing with this kind may
// succeed on a retry.
func (k Kind) Retryable() bool {
	switch k {
	case ElementNotFound, PermissionDenied:
		return false
	}
	return true
}

// Severity tags an error for the progress collaborator. Critical and high
// severity errors are not auto-dismissed by consumers.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// AutoDismiss reports whether a consumer may dismiss the error without
// user acknowledgement.
func (s Severity) AutoDismiss() bool { return s < SeverityHigh }

// Error is a classified capture failure.
type Error struct {
	Kind        Kind
	Severity    Severity
	UserMessage string // corrective, user-facing text
	Fallback    bool   // a degraded path is available to the caller
	Err         error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrollshot: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("scrollshot: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on kind: errors.Is(err, &Error{Kind: k}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds a classified error with the kind's default severity, message
// and fallback eligibility.
func New(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	switch kind {
	case ElementNotFound:
		e.Severity = SeverityHigh
		e.UserMessage = "The selected element could not be found. Pick the element again and retry."
	case PermissionDenied:
		e.Severity = SeverityCritical
		e.UserMessage = "Access to this content was denied. Cross-origin or protected content cannot be captured."
	case CaptureFailed:
		e.Severity = SeverityHigh
		e.UserMessage = "Capturing the page failed. A simplified capture of the visible area is available."
		e.Fallback = true
	case ScrollControlFailed:
		e.Severity = SeverityMedium
		e.UserMessage = "Scrolling the region failed. The capture may be incomplete; retrying usually helps."
	case DownloadFailed:
		e.Severity = SeverityMedium
		e.UserMessage = "Saving the image failed. You can save it manually instead."
		e.Fallback = true
	default:
		e.Severity = SeverityMedium
		e.UserMessage = "Processing the capture failed. Please retry."
	}
	return e
}

// KindOf extracts the kind from an error chain; unclassified errors are
// ProcessingError.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ProcessingError
}

// Retryable reports whether the error chain carries a retryable kind.
// Unclassified errors are treated as retryable ProcessingError.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}

// Classify maps an opaque host error message to a kind by keyword. This is
// the only place string sniffing is allowed; everything above the boundary
// carries typed kinds.
func Classify(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "element"), strings.Contains(msg, "selector"):
		return New(ElementNotFound, err)
	case strings.Contains(msg, "permission"), strings.Contains(msg, "denied"):
		return New(PermissionDenied, err)
	case strings.Contains(msg, "download"), strings.Contains(msg, "save"):
		return New(DownloadFailed, err)
	case strings.Contains(msg, "capture"), strings.Contains(msg, "screenshot"):
		return New(CaptureFailed, err)
	case strings.Contains(msg, "scroll"):
		return New(ScrollControlFailed, err)
	default:
		return New(ProcessingError, err)
	}
}
