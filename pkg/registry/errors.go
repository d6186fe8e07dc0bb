package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBackend is returned for ids not present in the registry.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrDuplicateBackend is returned when two descriptors share an id.
	ErrDuplicateBackend = errors.New("duplicate backend")

	// ErrMissingAdapter is returned when a descriptor has no adapter.
	ErrMissingAdapter = errors.New("missing adapter")
)

// BackendError ties a registry error to a backend id.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %q: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *BackendError) Unwrap() error {
	return e.Err
}
