package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
	Details    any    `json:"details,omitempty"`
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

// WithDetails attaches a client-visible payload and returns the same error.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
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

// ---- Credit Lifecycle (CRD) ----

func ErrValidation(message string) *AppError {
	return New("CRD_001", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("CRD_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrConflict(message string) *AppError {
	return New("CRD_003", message, http.StatusConflict)
}

func ErrDuplicateSubmission() *AppError {
	return New("CRD_004", "Submission with this idempotency key is already in progress", http.StatusConflict)
}

// ErrValidationPartial reports that validation stopped after at least one
// durable step. The credit is resumable from the stage in details.
func ErrValidationPartial(stage string, details any, err error) *AppError {
	return Wrap("CRD_010", fmt.Sprintf("Validation partially complete, stopped at %s", stage), http.StatusAccepted, err).
		WithDetails(details)
}

// ---- Value Ledger (LED) ----

func ErrLedgerRejected(err error) *AppError {
	return Wrap("LED_001", "Ledger rejected the operation", http.StatusUnprocessableEntity, err)
}

func ErrLedgerTimeout(err error) *AppError {
	return Wrap("LED_002", "Ledger outcome unknown, reconciliation required", http.StatusGatewayTimeout, err)
}

func ErrLedgerUnavailable(err error) *AppError {
	return Wrap("LED_003", "Ledger temporarily unavailable", http.StatusServiceUnavailable, err)
}

// ---- Settlement (SET) ----

func ErrPriceMismatch() *AppError {
	return New("SET_001", "Settlement total disagrees with ledger-recorded price", http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New("SET_002", "Insufficient balance for purchase", http.StatusPaymentRequired)
}

// ErrPurchasePartial reports that value moved on the ledger while the
// settlement record lags. Callers must replay, never re-pay.
func ErrPurchasePartial(stage string, details any, err error) *AppError {
	return Wrap("SET_010", fmt.Sprintf("Purchase partially complete, stopped at %s", stage), http.StatusAccepted, err).
		WithDetails(details)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidRole() *AppError {
	return New("AUTH_004", "Unknown role", http.StatusBadRequest)
}

func ErrForbiddenRole(required string) *AppError {
	return New("AUTH_005", fmt.Sprintf("Operation requires role %s", required), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request (REQ) ----

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("REQ_001", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Credit lock unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a CRD_001 validation error.
func Validation(message string) *AppError {
	return ErrValidation(message)
}
