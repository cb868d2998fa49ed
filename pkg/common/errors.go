package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes surfaced to API clients.
const (
	CodeMissingFile         = "MISSING_FILE"
	CodeEmptyFilename       = "EMPTY_FILENAME"
	CodeExtensionNotAllowed = "EXTENSION_NOT_ALLOWED"
	CodeInvalidFilename     = "INVALID_FILENAME"
	CodeConversionFailed    = "CONVERSION_FAILED"
	CodeStorage             = "STORAGE_ERROR"
	CodeConfig              = "CONFIG_ERROR"
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConversion   = errors.New("conversion failed")
	ErrStorage      = errors.New("storage error")
	ErrInternal     = errors.New("internal error")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// AsAppError unwraps err into an *AppError if it holds one.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
