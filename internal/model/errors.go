package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated covers every token failure. Callers must not learn why.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrPeerNotFound    = errors.New("peer not found")
	ErrNotFound        = errors.New("not found")
)

// ValidationError rejects a frame before anything is written
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage failure for a single request
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
