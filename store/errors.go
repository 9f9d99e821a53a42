package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks caller contract violations. Never retried.
	ErrInvalid = errors.New("store: invalid argument")
	// ErrTransport marks backend connectivity failures and timeouts.
	ErrTransport = errors.New("store: transport failure")
	// ErrCorrupt marks bytes the backend holds but cannot make sense of.
	// Retrying will not help; the entry has to be rewritten.
	ErrCorrupt = errors.New("store: corrupt entry")
)

// ValidationError reports malformed input rejected before any backend access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransportError wraps a backend failure (unreachable, closed, timed out).
// It unwraps to the cause so errors.Is(err, context.DeadlineExceeded) works.
type TransportError struct {
	Op  string
	Key string
	Err error
}

func (e *TransportError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Transport wraps err as a *TransportError; nil stays nil.
func Transport(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Key: key, Err: err}
}
