package codeforces

import (
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY
// ══════════════════════════════════════════════════════════════════════════════

// ErrRateLimitViolation signals broken pacing bookkeeping inside the
// client. The slot reservation makes it unreachable in normal
// operation; it exists so a regression fails loudly instead of
// hammering the API.
var ErrRateLimitViolation = errors.New("codeforces: request issued before minimum interval elapsed")

// NotFoundError is returned when a handle does not exist upstream.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("codeforces: handle %q not found", e.Handle)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransientError covers failures worth trying again next cycle:
// network errors, 5xx and 429 responses, and an open circuit.
type TransientError struct {
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("codeforces: transient failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("codeforces: transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError is returned when a response cannot be interpreted:
// malformed JSON or a payload that violates the documented shape.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codeforces: invalid response: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("codeforces: invalid response: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// APIError is a well-formed "FAILED" response that is not a missing
// handle, e.g. a malformed parameter rejected upstream.
type APIError struct {
	Comment string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codeforces: api error: %s", e.Comment)
}
