package registry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTarget = errors.New("invalid target")
	ErrNotFound      = errors.New("target not found")

	// ErrSavesHeld is the cause of a SaveError while automatic saves are
	// held back to protect unreadable stored data.
	ErrSavesHeld = errors.New("automatic saves held: stored list could not be read; save or reload explicitly")
)

// SaveError reports that the in-memory change succeeded but persisting it
// did not.
type SaveError struct {
	Err error
}

func (e *SaveError) Error() string { return fmt.Sprintf("save targets: %v", e.Err) }
func (e *SaveError) Unwrap() error { return e.Err }

// IsSaveError reports whether err only signals a failed save.
func IsSaveError(err error) bool {
	var se *SaveError
	return errors.As(err, &se)
}
