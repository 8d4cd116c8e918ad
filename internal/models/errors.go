package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrVersionConflict     = errors.New("record was modified concurrently")
	ErrInvalidBillingCycle = errors.New("invalid billing cycle")
	ErrInvalidSignature    = errors.New("invalid payment signature")
	ErrPaymentTerminal     = errors.New("payment is in a terminal state")
)

// ValidationError names the offending field. It matches ErrValidation and, when
// set, the more specific Err via errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
