package domain

import (
	"errors"
	"fmt"
)

// ErrNotClaimed signals a conditional status transition that matched no row,
// meaning another dispatcher already claimed or finished the letter
var ErrNotClaimed = errors.New("newsletter not claimed")

// ValidationError signals bad or missing input, surfaced to the caller
// immediately and never retried
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals an unknown entity id
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NewNotFoundError creates a not-found error for the given resource
func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
