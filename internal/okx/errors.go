package okx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies failures surfaced by the signed API layer.
type Kind string

const (
	KindConfiguration   Kind = "CONFIGURATION_ERROR"
	KindUnknownEndpoint Kind = "UNKNOWN_ENDPOINT"
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindUpstreamFailure Kind = "UPSTREAM_FAILURE"
	KindTimeout         Kind = "TIMEOUT"
)

// Sentinels for errors.Is. An *Error matches a sentinel of the same Kind.
var (
	ErrCredentialsNotConfigured = &Error{Kind: KindConfiguration, Detail: "OKX API credentials not configured"}
	ErrUnknownEndpoint          = &Error{Kind: KindUnknownEndpoint, Detail: "invalid endpoint"}
	ErrInvalidInput             = &Error{Kind: KindInvalidInput, Detail: "invalid input"}
	ErrUpstreamFailure          = &Error{Kind: KindUpstreamFailure, Detail: "upstream request failed"}
	ErrTimeout                  = &Error{Kind: KindTimeout, Detail: "upstream request timed out"}
)

// Error is the normalized error shape returned by Client. Transport
// exceptions never escape unwrapped; they are kept as Cause.
type Error struct {
	Kind Kind
	// Detail is safe to show to an end user.
	Detail string
	// Status is the upstream HTTP status, when one was received.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode maps the error to the HTTP status the proxy responds with.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUnknownEndpoint, KindInvalidInput:
		return http.StatusBadRequest
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func invalidInput(format string, args ...any) *Error {
	return newError(KindInvalidInput, fmt.Sprintf(format, args...), nil)
}

// transportError normalizes a failure from the limiter or the HTTP round trip.
func transportError(err error) *Error {
	if isTimeout(err) {
		return newError(KindTimeout, ErrTimeout.Detail, err)
	}
	return newError(KindUpstreamFailure, ErrUpstreamFailure.Detail, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
