// Package apierr defines the error taxonomy shared by the provider,
// orchestrator, and HTTP shell layers. Errors are plain sentinel/wrapped
// values classified with errors.Is/errors.As at the orchestrator boundary;
// "not found" is never raised, it is returned as a nil *provider.Metadata.
package apierr

import "errors"

// Sentinel errors classified by the orchestrator into HTTP responses.
var (
	// ErrInvalidInput covers bad id formats and malformed query parameters. 400, not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned when a concurrency slot could not be acquired within its wait budget. 429, retryable.
	ErrBusy = errors.New("service busy")

	// ErrUpstreamTransient covers network errors, parse failures, and unresolved browser challenges.
	// 5xx, not cached, rate limiter completion not recorded, safe to retry.
	ErrUpstreamTransient = errors.New("upstream transient failure")

	// ErrCancelled is surfaced when the request's context is done before completion.
	ErrCancelled = errors.New("request cancelled")
)

// Classification reports the taxonomy category for an error returned by the
// provider or network layer, for logging and metrics purposes.
type Classification string

const (
	ClassInvalidInput       Classification = "invalid_input"
	ClassBusy               Classification = "busy"
	ClassNotFound           Classification = "not_found"
	ClassUpstreamTransient  Classification = "upstream_transient"
	ClassCancelled          Classification = "cancelled"
	ClassInternal           Classification = "internal"
)

// Classify maps an error (possibly nil, meaning success) to its taxonomy class.
// A nil error classifies as empty string; callers should check err == nil first.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return ClassCancelled
	case errors.Is(err, ErrInvalidInput):
		return ClassInvalidInput
	case errors.Is(err, ErrBusy):
		return ClassBusy
	case errors.Is(err, ErrUpstreamTransient):
		return ClassUpstreamTransient
	default:
		return ClassInternal
	}
}
