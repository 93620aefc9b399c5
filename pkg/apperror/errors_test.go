package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("SET_002", "Costs frozen", http.StatusConflict),
			expected: "[SET_002] Costs frozen",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("VAL_001", "test", http.StatusBadRequest).Unwrap())
}

func TestCatalogue(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(6000, 3000), CodeInsufficientFunds, 402},
		{"NotEditable", ErrNotEditable(), CodeNotEditable, 409},
		{"DuplicateReference", ErrDuplicateReference("settlement:x"), CodeDuplicateReference, 409},
		{"NotFound", ErrNotFound("Order"), CodeNotFound, 404},
		{"InvalidToken", ErrInvalidToken(), CodeInvalidToken, 401},
		{"Forbidden", ErrForbidden(), CodeForbidden, 403},
		{"RateLimited", ErrRateLimitExceeded(), CodeRateLimited, 429},
		{"Validation", Validation("bad"), CodeValidation, 400},
		{"Internal", InternalError(errors.New("boom")), CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestErrInsufficientFunds_Details(t *testing.T) {
	err := ErrInsufficientFunds(6000, 3000)
	assert.Equal(t, int64(3000), err.Details["shortfall"])
	assert.Equal(t, int64(3000), err.Details["balance"])
	assert.Equal(t, int64(6000), err.Details["required"])
	assert.Equal(t, "Insufficient wallet balance", err.Message)
}

func TestRetryable(t *testing.T) {
	assert.True(t, ErrInsufficientFunds(10, 0).Retryable())
	assert.True(t, InternalError(errors.New("db down")).Retryable())
	assert.False(t, ErrNotEditable().Retryable())
	assert.False(t, Validation("x").Retryable())
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", ErrNotEditable())
	assert.True(t, HasCode(wrapped, CodeNotEditable))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeNotEditable))
}

func TestNotFound_Message(t *testing.T) {
	err := ErrNotFound("Fulfillment request")
	assert.Equal(t, "Fulfillment request not found", err.Message)
}
