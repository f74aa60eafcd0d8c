package assignment

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCallIDs is returned when a request names no calls.
	ErrEmptyCallIDs = errors.New("call_ids must not be empty")
	// ErrInvalidWeights is returned when weights are negative or do not sum to one.
	ErrInvalidWeights = errors.New("invalid assignment weights")
	// ErrInvalidRequest wraps any other malformed request field.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDirectory wraps failures of the call or engineer directory.
	ErrDirectory = errors.New("directory fetch failed")
	// ErrNilDependency is returned by NewEngine when a collaborator is missing.
	ErrNilDependency = errors.New("nil dependency")
)

// ValidationError reports the request field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
