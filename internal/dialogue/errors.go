package dialogue

import (
	"errors"
	"fmt"
)

// ErrEmptyReply is the cause recorded when a backend answers with no text.
var ErrEmptyReply = errors.New("backend returned an empty reply")

// NotFoundError reports a unique_id that is not in the catalog.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book %q not found", e.ID)
}

// BackendError wraps any failure of the completion backend.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return "generating response: " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed chat turn.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
