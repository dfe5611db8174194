package core

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to callers. Test with errors.Is.
var (
	ErrDuplicateName      = errors.New("a category with this name already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInterval    = errors.New("end time must be after start time")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a persistence failure. It matches ErrStorageUnavailable
// and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
