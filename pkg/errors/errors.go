package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies the failures the collection pipeline can produce
type ErrorType string

const (
	// ErrorTypeConfiguration covers pre-flight failures: missing credentials,
	// window bounds that cannot be normalized. Always fatal.
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeAuth is a login failure after the retry budget is exhausted
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeRateLimit is the recoverable throttle signal from the source
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeNetwork is a transient transport failure, retried with backoff
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRecord is one malformed raw post; dropped with a warning
	ErrorTypeRecord ErrorType = "record"
	// ErrorTypeFallback aborts only the browser pass, never the whole run
	ErrorTypeFallback ErrorType = "fallback"
	// ErrorTypePipeline is anything escaping the taxonomy; fatal
	ErrorTypePipeline ErrorType = "pipeline"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error is a typed pipeline error with an optional wrapped cause
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap attaches a type and message to an underlying cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// TypeOf extracts the error type from any error in the chain
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type anywhere in its chain
func Is(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsFatal reports whether an error type aborts the whole run on its own.
// Rate limits, malformed records and fallback failures are survivable.
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConfiguration, ErrorTypeAuth, ErrorTypePipeline:
		return true
	default:
		return false
	}
}

// ExitCode maps an error type to a distinguishable process exit status
func ExitCode(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeConfiguration:
		return 2
	case ErrorTypeAuth:
		return 3
	case ErrorTypePipeline:
		return 4
	default:
		return 1
	}
}
