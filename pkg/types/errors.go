package types

import (
	"errors"
	"fmt"
)

// ErrKind classifies engine errors for callers. Only configuration errors
// and timeouts abort a request; everything else degrades gracefully and is
// visible through logs and metrics instead.
type ErrKind string

const (
	// ErrKindConfig is fatal: unknown role, or pinned invariants that
	// exceed the token budget. Surfaced to the caller immediately.
	ErrKindConfig ErrKind = "configuration"

	// ErrKindTimeout means one or more retrieval calls exceeded the
	// request deadline. The request fails cleanly; no partial bundle is
	// ever returned. Retry policy belongs to the caller.
	ErrKindTimeout ErrKind = "retrieval_timeout"

	// ErrKindCache marks cache backend failures. The engine degrades to
	// computing fresh, so this kind appears in logs, not in responses.
	ErrKindCache ErrKind = "cache"

	// ErrKindIndexInvariant marks a duplicate-chunk condition in the
	// backing index, detected during fusion. It is flagged rather than
	// silently resolved; the index owner is responsible for the fix.
	ErrKindIndexInvariant ErrKind = "index_invariant"
)

// Error is a typed engine error.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a typed error wrapping an optional cause.
func NewError(kind ErrKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrorKind extracts the ErrKind from err, or "" when err carries none.
func ErrorKind(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfigError reports whether err is a fatal configuration error.
func IsConfigError(err error) bool { return ErrorKind(err) == ErrKindConfig }

// IsTimeout reports whether err is a retrieval timeout.
func IsTimeout(err error) bool { return ErrorKind(err) == ErrKindTimeout }
