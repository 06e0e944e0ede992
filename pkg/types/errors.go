package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the core. The API layer maps them onto
// status codes; everything else wraps them with context via fmt.Errorf %w.
var (
	// ErrNotFound means the referenced entity does not exist, or the
	// caller lacks Read on it (indistinguishable on purpose).
	ErrNotFound = errors.New("not found")
	// ErrBusy means the target already has the conflicting operation in
	// flight. No update is created for refused requests.
	ErrBusy = errors.New("resource is busy")
	// ErrUnauthenticated means the request carried no valid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is known but under-privileged.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the write contradicts existing state, e.g. a
	// duplicate name.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field '%s': %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalError reports a failure of an external system: a periphery agent,
// a cloud provider, a registry. The API maps it to 502.
type ExternalError struct {
	// System names what failed, e.g. "periphery", "aws", "slack".
	System string
	Err    error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.System, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// NewExternalError wraps err as a failure of the named system.
func NewExternalError(system string, err error) *ExternalError {
	return &ExternalError{System: system, Err: err}
}

// IsExternalError reports whether err is (or wraps) an ExternalError.
func IsExternalError(err error) bool {
	var xe *ExternalError
	return errors.As(err, &xe)
}
