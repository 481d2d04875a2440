package aiplan

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a plan-generation failure. The kind decides both
// the HTTP status reported to the caller and whether a retry may help.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota
	KindValidation
	KindAuthentication
	KindRateLimit
	KindNetwork
	KindTimeout
	KindAPI
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the single error type produced by this package.
type Error struct {
	Kind       ErrorKind
	Status     int           // upstream HTTP status, 0 when none
	RetryAfter time.Duration // from a rate-limit response, 0 when absent
	Message    string
	Details    []string
	cause      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// Retryable reports whether retrying the request could succeed. Only
// rate limits, network failures, timeouts and 5xx upstream responses
// qualify.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindRateLimit, KindNetwork, KindTimeout:
		return true
	case KindAPI:
		return e.Status >= 500
	default:
		return false
	}
}

// RetryAfter extracts the server-requested retry delay, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// KindOf returns the kind of err, or KindAPI when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindAPI
}

// HTTPStatus maps a pipeline error to the status reported to the
// caller. Upstream authentication, rate-limit, network and timeout
// failures are server-side problems from the client's point of view;
// only an upstream API failure surfaces as a bad gateway.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 500
	}
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindValidation:
		if e.Status == 400 || e.Status == 500 {
			return e.Status
		}
		return 400
	case KindAPI:
		return 502
	default:
		return 500
	}
}
