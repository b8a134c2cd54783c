// Package vocerr defines the error taxonomy for remote API failures.
// Errors are classified once at the API-client boundary, callers match on
// the Kind via the helper functions instead of inspecting response codes.
package vocerr

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindAuthFailure
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAuthFailure:
		return "auth_failure"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// APIError wraps an error of a remote API call with its classification.
type APIError struct {
	Kind Kind
	// RetryAfter is the earliest point in time that the operation can be
	// retried. It is the zero timestamp when the API did not communicate
	// one.
	RetryAfter time.Time
	// Err is the wrapped original error
	Err error
}

func New(kind Kind, err error) *APIError {
	return &APIError{Kind: kind, Err: err}
}

func NewRateLimited(err error, retryAfter time.Time) *APIError {
	return &APIError{
		Kind:       KindRateLimited,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func isKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func IsNotFound(err error) bool    { return isKind(err, KindNotFound) }
func IsAuthFailure(err error) bool { return isKind(err, KindAuthFailure) }
func IsRateLimited(err error) bool { return isKind(err, KindRateLimited) }
