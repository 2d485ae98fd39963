package storage

import "errors"

// ErrorCode classifies adapter failures by operation class, not by backend.
type ErrorCode string

const (
	ReadFailed   ErrorCode = "STORAGE_READ_FAILED"
	WriteFailed  ErrorCode = "STORAGE_WRITE_FAILED"
	DeleteFailed ErrorCode = "STORAGE_DELETE_FAILED"
)

// Error is the failure value every adapter returns. Adapters catch all
// underlying faults (driver, network, key-value store) at their edge and
// convert them; raw backend errors never cross the adapter boundary.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps an underlying fault with a storage error code.
func NewError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the storage error code from err, or "" when err is not a
// storage error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
