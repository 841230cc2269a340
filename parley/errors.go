package parley

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Protocol errors (from server error responses)
	ErrorUnknown ErrorCode = iota
	ErrorUnsupportedVersion
	ErrorUnauthorized
	ErrorInvalidMessage
	ErrorBadRequest
	ErrorRoomNotFound
	ErrorNotInRoom
	ErrorRateLimited
	ErrorSessionExpired
	ErrorInternalServer

	// Client-side errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorInvalidConfig
	ErrorNotConnected
	ErrorMalformedPayload
	ErrorDuplicateSubmission
	ErrorSerialization
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorUnsupportedVersion:
		return "unsupported_version"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorRoomNotFound:
		return "room_not_found"
	case ErrorNotInRoom:
		return "not_in_room"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorSessionExpired:
		return "session_expired"
	case ErrorInternalServer:
		return "internal_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorMalformedPayload:
		return "malformed_payload"
	case ErrorDuplicateSubmission:
		return "duplicate_submission"
	case ErrorSerialization:
		return "serialization_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a protocol error code string to ErrorCode.
func ParseErrorCode(code string) ErrorCode {
	switch code {
	case "unsupported_version":
		return ErrorUnsupportedVersion
	case "unauthorized":
		return ErrorUnauthorized
	case "invalid_message":
		return ErrorInvalidMessage
	case "bad_request":
		return ErrorBadRequest
	case "room_not_found":
		return ErrorRoomNotFound
	case "not_in_room":
		return ErrorNotInRoom
	case "rate_limited":
		return ErrorRateLimited
	case "session_expired":
		return ErrorSessionExpired
	case "internal_error":
		return ErrorInternalServer
	default:
		return ErrorUnknown
	}
}

// ParleyError is a structured error with code and context.
type ParleyError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ParleyError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ParleyError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface for error comparison.
func (e *ParleyError) Is(target error) bool {
	t, ok := target.(*ParleyError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ParleyError with the given code and message.
func NewError(code ErrorCode, message string) *ParleyError {
	return &ParleyError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ParleyError.
func WrapError(code ErrorCode, message string, err error) *ParleyError {
	return &ParleyError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// FromProtocolError converts a protocol Error to ParleyError.
func FromProtocolError(e *Error) *ParleyError {
	if e == nil {
		return nil
	}
	return &ParleyError{
		Code:    ParseErrorCode(e.Code),
		Message: e.Msg,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrorUnknown if err is not a
// ParleyError.
func CodeOf(err error) ErrorCode {
	var pe *ParleyError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrorUnknown
}

// IsProtocolError checks if an error is a protocol error (from server).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParleyError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code >= ErrorUnsupportedVersion && pe.Code <= ErrorInternalServer
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParleyError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == ErrorConnection || pe.Code == ErrorDisconnected ||
		pe.Code == ErrorTimeout || pe.Code == ErrorNotConnected
}

// IsFatal reports whether err ends the session (forces cleanup and
// navigation away). Everything else is surfaced as a non-fatal notice.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrorSessionExpired
}
