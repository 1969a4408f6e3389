package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is. These are generic and are
// usually wrapped with operation context via MemoryError.
var (
	// Entry errors
	ErrNotFound        = errors.New("entry not found")
	ErrInvalidEntry    = errors.New("invalid entry")
	ErrVersionConflict = errors.New("version conflict")
	ErrAccessDenied    = errors.New("access denied")

	// Partition errors
	ErrPartitionNotFound  = errors.New("partition not found")
	ErrReadOnlyPartition  = errors.New("partition is read-only")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrPartitionExists    = errors.New("partition already exists")

	// Lifecycle errors
	ErrNotInitialized       = errors.New("not initialized")
	ErrAlreadyInitialized   = errors.New("already initialized")
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Backend errors
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendClosed      = errors.New("backend closed")
)

// MemoryError provides structured error information with operation context.
// It implements the error interface and supports unwrapping with errors.Is/As.
type MemoryError struct {
	Op   string // Operation that failed (e.g. "manager.Store")
	Kind string // Error kind (e.g. "entry", "partition", "backend")
	ID   string // Optional ID of the entity involved
	Err  error  // Underlying error
}

func (e *MemoryError) Error() string {
	switch {
	case e.Op != "" && e.ID != "":
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// OpError wraps err with the failing operation and entity ID.
func OpError(op, kind, id string, err error) *MemoryError {
	return &MemoryError{Op: op, Kind: kind, ID: id, Err: err}
}
