// Package storageerr gives the recall and archival backing stores a common
// way to mark an error as a storage failure rather than a caller mistake,
// so the tool dispatcher and agent loop can tell the two apart without
// importing either store's concrete package.
package storageerr

import (
	"errors"
	"fmt"
)

// StorageError wraps a backing-store I/O failure. Op names the operation
// that failed (e.g. "recall.Append", "archival.Search").
type StorageError struct {
	Op      string
	Wrapped error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Op, e.Wrapped)
}

func (e *StorageError) Unwrap() error {
	return e.Wrapped
}

// Wrap marks err as a StorageError for op. Returns nil if err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Wrapped: err}
}

// Is reports whether err is (or wraps) a StorageError.
func Is(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
