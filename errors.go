package journeycas

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/journeycas/store"
)

var (
	// ErrNotFound: the document, or the entity a mutation targets inside it,
	// does not exist. Terminal; not retried.
	ErrNotFound = errors.New("journeycas: not found")
	// ErrConflict: the CAS retry budget ran out under contention. The caller
	// may retry the whole operation later.
	ErrConflict = errors.New("journeycas: version conflict")

	// ErrInvalid, ErrTransport and ErrCorrupt are the store's sentinels so
	// one errors.Is check works at every layer. ErrCorrupt also covers a
	// document that does not decode with the configured codec.
	ErrInvalid   = store.ErrInvalid
	ErrTransport = store.ErrTransport
	ErrCorrupt   = store.ErrCorrupt
)

// ConflictError reports an update that lost every CAS attempt.
type ConflictError struct {
	Key      string
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("update %q: version conflict after %d attempts", e.Key, e.Attempts)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InitializeError reports a bootstrap write that failed part way. Journeys
// before Written were stored; the index was not rewritten.
type InitializeError struct {
	JourneyID string
	Written   int
	Err       error
}

func (e *InitializeError) Error() string {
	if e.JourneyID == "" {
		return fmt.Sprintf("initialize: index write failed after %d journeys: %v", e.Written, e.Err)
	}
	return fmt.Sprintf("initialize: journey %q failed after %d journeys: %v", e.JourneyID, e.Written, e.Err)
}

func (e *InitializeError) Unwrap() error { return e.Err }
