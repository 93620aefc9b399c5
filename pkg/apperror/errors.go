package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the same request as-is.
func (e *AppError) Retryable() bool {
	return e.HTTPStatus >= http.StatusInternalServerError || e.Code == CodeInsufficientFunds
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

const (
	CodeValidation         = "VAL_001"
	CodeInsufficientFunds  = "SET_001"
	CodeNotEditable        = "SET_002"
	CodeDuplicateReference = "SET_003"
	CodeNotFound           = "RES_001"
	CodeInvalidToken       = "AUTH_001"
	CodeForbidden          = "AUTH_002"
	CodeRateLimited        = "RATE_001"
	CodeInternal           = "SYS_001"
)

// ---- Settlement (SET) ----

// ErrInsufficientFunds reports a balance below the required amount at the
// moment of the conditional debit.
func ErrInsufficientFunds(required, balance int64) *AppError {
	e := New(CodeInsufficientFunds, "Insufficient wallet balance", http.StatusPaymentRequired)
	e.Details = map[string]any{
		"required":  required,
		"balance":   balance,
		"shortfall": required - balance,
	}
	return e
}

func ErrNotEditable() *AppError {
	return New(CodeNotEditable, "Costs cannot be changed after settlement", http.StatusConflict)
}

func ErrDuplicateReference(referenceID string) *AppError {
	e := New(CodeDuplicateReference, "Ledger reference already used", http.StatusConflict)
	e.Details = map[string]any{"reference_id": referenceID}
	return e
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Not allowed to access this resource", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an infrastructure failure. The request is safe to retry.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
