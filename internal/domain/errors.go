package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repositories and usecases.
var (
	ErrNotFound = errors.New("not found")

	// ErrModeInUse: a shipping mode cannot be deleted while rules reference it.
	ErrModeInUse = errors.New("shipping mode is referenced by existing rules")

	// ErrShippingUnavailable: checkout requested a destination/mode/weight no
	// rule covers. User-facing state, never logged as an error.
	ErrShippingUnavailable = errors.New("no shipping option available")
)

// Validation fields, used by the admin UI to highlight the offending input.
const (
	FieldDestination = "destination"
	FieldModeKey     = "modeKey"
	FieldWeight      = "weight"
	FieldMinWeight   = "minWeight"
	FieldMaxWeight   = "maxWeight"
	FieldPrice       = "price"
)

// ValidationError reports which invariant failed and on which field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// StorageError wraps repository failures (connectivity, aborted tx) so the
// caller can retry or surface a transient failure. It is never folded into
// a "no coverage" quote result.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err originated in the storage layer.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
