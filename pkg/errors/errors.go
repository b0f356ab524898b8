package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the traceability engine
const (
	CodeFormatError          = "FORMAT_ERROR"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "RESOURCE_NOT_FOUND"
	CodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidState         = "INVALID_STATE"
	CodeExhaustedRetries     = "EXHAUSTED_RETRIES"
	CodeStorageError         = "STORAGE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

// AppError carries a stable code, a message for the caller and the wrapped cause
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code so callers can test kinds with errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// Wrap sets the underlying cause
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Kind markers for errors.Is comparisons, e.g. errors.Is(err, errors.KindNotFound)
var (
	KindFormat               = &AppError{Code: CodeFormatError}
	KindValidation           = &AppError{Code: CodeValidationError}
	KindNotFound             = &AppError{Code: CodeNotFound}
	KindInsufficientQuantity = &AppError{Code: CodeInsufficientQuantity}
	KindInvalidTransition    = &AppError{Code: CodeInvalidTransition}
	KindInvalidState         = &AppError{Code: CodeInvalidState}
	KindExhaustedRetries     = &AppError{Code: CodeExhaustedRetries}
	KindStorage              = &AppError{Code: CodeStorageError}
)

// ErrFormat reports a malformed identifier or prefix. Never retried.
func ErrFormat(message string) *AppError {
	return NewAppError(CodeFormatError, message, http.StatusBadRequest)
}

// ErrValidation reports invalid command input.
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrNotFound reports a missing actor, batch or record.
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrNotFoundWithID is ErrNotFound with the looked-up id attached.
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrInsufficientQuantity reports that a batch cannot cover the requested quantity.
func ErrInsufficientQuantity(batchID string, requested, available int64) *AppError {
	return NewAppError(CodeInsufficientQuantity,
		fmt.Sprintf("insufficient quantity: requested %d, available %d", requested, available),
		http.StatusConflict).WithDetail("batchId", batchID)
}

// ErrInvalidTransition reports a forbidden status change.
func ErrInvalidTransition(from, to string) *AppError {
	return NewAppError(CodeInvalidTransition,
		fmt.Sprintf("cannot transition from %s to %s", from, to),
		http.StatusUnprocessableEntity).
		WithDetail("from", from).
		WithDetail("to", to)
}

// ErrInvalidState reports an operation attempted from the wrong workflow state.
func ErrInvalidState(resource, current, operation string) *AppError {
	return NewAppError(CodeInvalidState,
		fmt.Sprintf("cannot %s %s in state %s", operation, resource, current),
		http.StatusConflict).WithDetail("state", current)
}

// ErrExhaustedRetries reports that a bounded retry loop gave up.
func ErrExhaustedRetries(operation string, attempts int) *AppError {
	return NewAppError(CodeExhaustedRetries,
		fmt.Sprintf("%s: no free value after %d attempts", operation, attempts),
		http.StatusServiceUnavailable)
}

// ErrStorage wraps a failure of an external store.
func ErrStorage(operation string, err error) *AppError {
	return NewAppError(CodeStorageError, operation+" failed", http.StatusBadGateway).Wrap(err)
}

// ErrInternal creates an internal error
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// CodeOf returns the code of the outermost AppError in the chain, or INTERNAL_ERROR.
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// FromError converts a standard error to an AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}
