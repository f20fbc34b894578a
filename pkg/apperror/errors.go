package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Validation (VAL) ----

// Validation returns a request-level validation failure with a caller-facing message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount(message string) *AppError {
	return New("VAL_002", message, http.StatusBadRequest)
}

func ErrBelowMinimum(minimum string) *AppError {
	return New("VAL_003", fmt.Sprintf("minimum expected amount is %s", minimum), http.StatusBadRequest)
}

func ErrInvalidCard() *AppError {
	return New("VAL_004", "card number is invalid", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("VAL_005", "insufficient wallet balance", http.StatusBadRequest)
}

func ErrInvalidPIN() *AppError {
	return New("VAL_006", "transaction pin is incorrect", http.StatusBadRequest)
}

// ---- Compliance (CMP) ----

func ErrNotCompliant() *AppError {
	return New("CMP_001", "business compliance has not been approved", http.StatusForbidden)
}

// ---- Conflict (CNF) ----

func ErrRequestInFlight() *AppError {
	return New("CNF_001", "a request is already being processed", http.StatusForbidden)
}

func ErrLinkInitialized() *AppError {
	return New("CNF_002", "payment link already has a charge in progress", http.StatusForbidden)
}

func ErrRefundInProgress(status string) *AppError {
	return New("CNF_003", fmt.Sprintf("last refund initiated is %s", status), http.StatusForbidden)
}

func ErrInvalidTransition(message string) *AppError {
	return New("CNF_004", message, http.StatusConflict)
}

func ErrLinkInactive() *AppError {
	return New("CNF_005", "payment link is not active", http.StatusForbidden)
}

func ErrEmailExists() *AppError {
	return New("CNF_006", "a business with this email already exists", http.StatusConflict)
}

// ---- Not Found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Provider (PRV) ----

// ErrProvider wraps a provider failure; message is the provider's own wording.
func ErrProvider(message string, err error) *AppError {
	if message == "" {
		message = "provider request failed"
	}
	return Wrap("PRV_001", message, http.StatusInternalServerError, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New("AUTH_002", "invalid business credentials", http.StatusUnauthorized)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("VAL_007", fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "internal database error", http.StatusInternalServerError, err)
}

func ErrCacheError(err error) *AppError {
	return Wrap("SYS_002", "idempotency cache unavailable", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "internal server error", http.StatusInternalServerError, err)
}
