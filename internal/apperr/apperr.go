package apperr

import (
	"errors"
	"fmt"
)

// Code classifies failures by how callers must react to them.
type Code string

const (
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"
	CodeTransportFailure  Code = "TRANSPORT_FAILURE"
	CodeMissingIdentity   Code = "MISSING_IDENTITY"
	CodeNoPendingWork     Code = "NO_PENDING_WORK"
	CodeInvalidSubmission Code = "INVALID_SUBMISSION"
	CodeConfigInvalid     Code = "CONFIG_INVALID"
)

// AppError represents an application error
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StoreUnavailable is fatal for the current operation.
func StoreUnavailable(message string, err error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: message, Err: err}
}

func TransportFailure(recipient string, err error) *AppError {
	return &AppError{Code: CodeTransportFailure, Message: "delivery to " + recipient + " failed", Err: err}
}

func MissingIdentity() *AppError {
	return &AppError{
		Code:    CodeMissingIdentity,
		Message: "Please access this form using your personalized email link (e.g., ?email=your@email.com)",
	}
}

func NoPendingWork(message string) *AppError {
	return &AppError{Code: CodeNoPendingWork, Message: message}
}

func InvalidSubmission(message string) *AppError {
	return &AppError{Code: CodeInvalidSubmission, Message: message}
}

func ConfigInvalid(message string) *AppError {
	return &AppError{Code: CodeConfigInvalid, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message of an AppError, or err.Error().
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
