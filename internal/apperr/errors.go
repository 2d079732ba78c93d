// Package apperr defines the error taxonomy shared by the lifecycle service,
// the publish engine, and the transport layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")

	// ErrInvalidTransition is returned when a requested status change is not
	// an edge of the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState is returned when an operation's status precondition fails.
	ErrInvalidState = errors.New("invalid state")
	ErrMissingSlug  = errors.New("missing slug")
	ErrNotPublished = errors.New("not published")

	// ErrUpstream wraps failures of collaborators (AI, artifact store, note store I/O).
	ErrUpstream = errors.New("upstream failure")
)

// IsUserError reports whether err is an expected, caller-recoverable failure
// that should be surfaced as a client error rather than an internal one.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrInvalidTransition, ErrInvalidState, ErrMissingSlug, ErrNotPublished,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
