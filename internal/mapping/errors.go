package mapping

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrInvalidFieldName is a setup error for malformed logical names.
	ErrInvalidFieldName = errors.New("invalid field name")

	// ErrRegistryFrozen is returned when registering after the first compile.
	ErrRegistryFrozen = errors.New("field registry is frozen")

	// ErrInvalidMapping is a setup error for an unusable physical target.
	ErrInvalidMapping = errors.New("invalid field mapping")

	// ErrUnsupportedValueKind is a contract violation: the condition holds a
	// value kind the field does not accept. The upstream validator should have
	// rejected it.
	ErrUnsupportedValueKind = errors.New("unsupported value kind")
)

// ErrorCode categorizes mapping errors.
type ErrorCode string

const (
	ErrCodeInvalidName     ErrorCode = "INVALID_NAME"
	ErrCodeFrozen          ErrorCode = "FROZEN"
	ErrCodeInvalidMapping  ErrorCode = "INVALID_MAPPING"
	ErrCodeUnsupportedKind ErrorCode = "UNSUPPORTED_KIND"
)

// Error carries the field a setup or contract error relates to.
type Error struct {
	Code    ErrorCode
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidMapping builds an ErrInvalidMapping error for field.
func InvalidMapping(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidMapping,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidMapping,
	}
}

// IsSetupError reports whether err was raised while registering fields.
func IsSetupError(err error) bool {
	return errors.Is(err, ErrInvalidFieldName) ||
		errors.Is(err, ErrInvalidMapping) ||
		errors.Is(err, ErrRegistryFrozen)
}
