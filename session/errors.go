package session

import (
	"errors"
	"fmt"

	"github.com/tomyedwab/bridgedb/engine"
	"github.com/tomyedwab/bridgedb/registry"
)

// ErrorType represents the failure categories reportable across the
// boundary.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unclassified failure
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidHandle represents an unknown or stale handle
	ErrorTypeInvalidHandle
	// ErrorTypeOpenFailed represents a database that could not be opened
	ErrorTypeOpenFailed
	// ErrorTypeBadKey represents a missing, malformed or wrong encryption key
	ErrorTypeBadKey
	// ErrorTypeSQL represents a statement the engine rejected
	ErrorTypeSQL
	// ErrorTypeParamDecode represents a malformed parameter payload
	ErrorTypeParamDecode
	// ErrorTypeTransactionState represents an illegal transaction transition
	ErrorTypeTransactionState
	// ErrorTypeIO represents a filesystem failure during export or import
	ErrorTypeIO
	// ErrorTypeInvalidArgument represents an out-of-range argument
	ErrorTypeInvalidArgument
)

// Error is a structured session failure with category information.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewError creates a new Error with the specified type and message
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithCause creates a new Error with the specified type, message,
// and underlying cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{Type: errorType, Message: message, Cause: cause}
}

// NewInvalidHandleError creates a stale-handle error
func NewInvalidHandleError(message string, cause error) *Error {
	return NewErrorWithCause(ErrorTypeInvalidHandle, message, cause)
}

// NewOpenFailedError creates an open-failure error
func NewOpenFailedError(message string, cause error) *Error {
	return NewErrorWithCause(ErrorTypeOpenFailed, message, cause)
}

// NewBadKeyError creates an encryption-key error
func NewBadKeyError(message string) *Error {
	return NewError(ErrorTypeBadKey, message)
}

// NewSQLError creates an engine-rejection error
func NewSQLError(message string, cause error) *Error {
	return NewErrorWithCause(ErrorTypeSQL, message, cause)
}

// NewParamDecodeError creates a parameter-payload error
func NewParamDecodeError(message string, cause error) *Error {
	return NewErrorWithCause(ErrorTypeParamDecode, message, cause)
}

// NewTransactionStateError creates an illegal-transition error
func NewTransactionStateError(message string) *Error {
	return NewError(ErrorTypeTransactionState, message)
}

// NewIOError creates a filesystem error
func NewIOError(message string, cause error) *Error {
	return NewErrorWithCause(ErrorTypeIO, message, cause)
}

// NewInvalidArgumentError creates an out-of-range argument error
func NewInvalidArgumentError(message string) *Error {
	return NewError(ErrorTypeInvalidArgument, message)
}

func isType(err error, errorType ErrorType) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.IsType(errorType)
	}
	return false
}

// IsInvalidHandle checks if an error is a stale-handle error
func IsInvalidHandle(err error) bool { return isType(err, ErrorTypeInvalidHandle) }

// IsOpenFailed checks if an error is an open failure
func IsOpenFailed(err error) bool { return isType(err, ErrorTypeOpenFailed) }

// IsBadKey checks if an error is an encryption-key error
func IsBadKey(err error) bool { return isType(err, ErrorTypeBadKey) }

// IsSQLError checks if an error is an engine rejection
func IsSQLError(err error) bool { return isType(err, ErrorTypeSQL) }

// IsParamDecode checks if an error is a parameter-payload error
func IsParamDecode(err error) bool { return isType(err, ErrorTypeParamDecode) }

// IsTransactionState checks if an error is an illegal transition
func IsTransactionState(err error) bool { return isType(err, ErrorTypeTransactionState) }

// IsIOError checks if an error is a filesystem error
func IsIOError(err error) bool { return isType(err, ErrorTypeIO) }

// IsInvalidArgument checks if an error is an out-of-range argument
func IsInvalidArgument(err error) bool { return isType(err, ErrorTypeInvalidArgument) }

// wrapResolveError converts a registry lookup failure into the session
// taxonomy.
func wrapResolveError(err error) error {
	if errors.Is(err, registry.ErrInvalidHandle) {
		return NewInvalidHandleError("invalid handle", err)
	}
	return NewErrorWithCause(ErrorTypeUnknown, "handle lookup failed", err)
}

// wrapEngineError classifies an engine failure by its sentinel wrapping.
func wrapEngineError(message string, err error) error {
	switch {
	case errors.Is(err, engine.ErrBadKey):
		return NewErrorWithCause(ErrorTypeBadKey, message, err)
	case errors.Is(err, engine.ErrIO):
		return NewErrorWithCause(ErrorTypeIO, message, err)
	case errors.Is(err, engine.ErrTxState):
		return NewErrorWithCause(ErrorTypeTransactionState, message, err)
	default:
		return NewSQLError(message, err)
	}
}
