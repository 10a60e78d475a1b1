// Package apierr defines the typed error taxonomy from spec.md §7 and the
// HTTP-status mapping the request surface uses to render them. Errors wrap
// the way the teacher's internal/net/circuit and internal/providers/kraken
// wrap lower-level failures with fmt.Errorf("...: %w", err).
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy members from spec.md §7.
type Kind string

const (
	KindInvalidArgument     Kind = "invalid_argument"
	KindUpstreamFailure     Kind = "upstream_failure"
	KindTemporaryUnavailable Kind = "temporary_unavailable"
	KindRateLimited         Kind = "rate_limited"
	KindNotFound            Kind = "not_found"
)

// Error is a typed, human-readable API error.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a typed error with no underlying cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs a typed error around an underlying cause.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to the status code the request surface returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindTemporaryUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
