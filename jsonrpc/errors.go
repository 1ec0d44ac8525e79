package jsonrpc

import "fmt"

// Error carries a JSON-RPC error code alongside a message, optionally
// wrapping the error that caused it.
type Error struct {
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (code: %d): %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new coded error
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewInvalidParamsError creates an error for code -32602.
func NewInvalidParamsError(message string) *Error {
	return &Error{Code: CodeInvalidParams, Message: message}
}

// NewInternalError creates an error for code -32603 wrapping cause.
func NewInternalError(cause error) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error", Cause: cause}
}
