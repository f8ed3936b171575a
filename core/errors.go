package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports client input that fails business validation.
// It maps to a 400 response.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing referenced entity. It maps to a 404 response.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

// ConflictError reports an operation that clashes with existing state
// (duplicate assignment, supervisor on panel, entity in use). It maps to
// a 409 response.
type ConflictError struct {
	message string
}

func NewConflictError(msg string) error {
	return &ConflictError{message: msg}
}

func (err ConflictError) Error() string {
	return err.message
}

// shutdownError signals an unrecoverable internal fault; the server
// shuts down gracefully when one surfaces.
type shutdownError struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdownError{message: msg}
}

func (err shutdownError) Error() string {
	return err.message
}

func IsShutdown(err error) bool {
	if _, ok := errors.Cause(err).(*shutdownError); ok {
		return true
	}
	return false
}
