package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTOML indicates config file parsing failed.
	ErrInvalidTOML = errors.New("invalid TOML syntax")
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// LoadError wraps configuration loading errors with file context.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a load error for a file.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
