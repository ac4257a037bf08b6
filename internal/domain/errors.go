package domain

import (
	"errors"
	"fmt"
)

const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// DomainError carries a stable code for the API layer plus an optional cause.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code and message, so a sentinel still matches after Wrap.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of e with cause attached.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: cause}
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// AsDomainError finds the outermost DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyBatch           = NewDomainError(ErrCodeValidation, "batch must contain at least one log")
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrInvalidLimit         = NewDomainError(ErrCodeValidation, "limit must be positive")
	ErrInvalidCursor        = NewDomainError(ErrCodeValidation, "invalid cursor")

	ErrLogNotFound      = NewDomainError(ErrCodeNotFound, "log not found")
	ErrAnalysisNotFound = NewDomainError(ErrCodeNotFound, "analysis not found")

	ErrStoreUnavailable = NewDomainError(ErrCodeInternalError, "log store unavailable")
)
