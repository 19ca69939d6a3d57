package tasks

import (
	"context"
	"errors"

	"github.com/desertthunder/proofs/internal/services"
)

// CancelledError means the batch context ended before the file was accepted.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	if e.Err == nil {
		return "upload cancelled"
	}
	return "upload cancelled: " + e.Err.Error()
}

func (e *CancelledError) Unwrap() error { return e.Err }

// Error kinds reported by [Classify].
const (
	KindTransport   = "transport"
	KindHTTPStatus  = "http_status"
	KindApplication = "application"
	KindParse       = "parse"
	KindCancelled   = "cancelled"
	KindUnknown     = "unknown"
)

// Classify names the failure kind of err, or "" for nil.
func Classify(err error) string {
	var (
		cancelled *CancelledError
		transport *services.TransportError
		status    *services.HTTPStatusError
		app       *services.ApplicationError
		parse     *services.ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cancelled):
		return KindCancelled
	case errors.As(err, &app):
		return KindApplication
	case errors.As(err, &status):
		return KindHTTPStatus
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &transport):
		return KindTransport
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}
