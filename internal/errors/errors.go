// Package errors provides the typed errors returned by the bookkeeping engine.
// All service-layer errors are AppErrors so callers get a stable code and a
// short user-facing message, and internal causes never leak to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code, so wrapped copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsValidation reports whether the error is a recoverable rejection of caller
// input. Validation errors are raised before any write.
func (e *AppError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid access key", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput       = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound           = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer     = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Ledger errors.
var (
	ErrLedgerNotFound   = &AppError{Code: "LEDGER_NOT_FOUND", Message: "Ledger not found", StatusCode: http.StatusNotFound}
	ErrNoCurrentLedger  = &AppError{Code: "NO_CURRENT_LEDGER", Message: "No ledger is available", StatusCode: http.StatusNotFound}
	ErrCrossLedgerEntry = &AppError{Code: "CROSS_LEDGER_REFERENCE", Message: "Referenced entity belongs to another ledger", StatusCode: http.StatusUnprocessableEntity}
)

// Account errors.
var (
	ErrAccountNotFound    = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountArchived    = &AppError{Code: "ACCOUNT_ARCHIVED", Message: "Account is archived", StatusCode: http.StatusUnprocessableEntity}
	ErrAccountInUse       = &AppError{Code: "ACCOUNT_IN_USE", Message: "Account is used by existing transactions; archive it instead", StatusCode: http.StatusConflict}
	ErrNoAdjustmentNeeded = &AppError{Code: "NO_ADJUSTMENT_NEEDED", Message: "Account already has the requested balance", StatusCode: http.StatusUnprocessableEntity}
)

// Category errors.
var (
	ErrCategoryNotFound     = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse        = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing budgets", StatusCode: http.StatusConflict}
	ErrCategoryHasChildren  = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has child categories", StatusCode: http.StatusConflict}
	ErrSelfParentCategory   = &AppError{Code: "SELF_PARENT_CATEGORY", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
	ErrCategoryTooDeep      = &AppError{Code: "CATEGORY_TOO_DEEP", Message: "Categories can only be nested one level deep", StatusCode: http.StatusUnprocessableEntity}
	ErrCategoryKindMismatch = &AppError{Code: "CATEGORY_KIND_MISMATCH", Message: "Category kind does not match", StatusCode: http.StatusUnprocessableEntity}
)

// Transaction errors.
var (
	ErrTransactionNotFound     = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType  = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
	ErrInvalidAmount           = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrMissingSourceAccount    = &AppError{Code: "MISSING_SOURCE_ACCOUNT", Message: "A source account is required", StatusCode: http.StatusUnprocessableEntity}
	ErrMissingDestination      = &AppError{Code: "MISSING_DESTINATION_ACCOUNT", Message: "A destination account is required", StatusCode: http.StatusUnprocessableEntity}
	ErrUnexpectedAccount       = &AppError{Code: "UNEXPECTED_ACCOUNT", Message: "This transaction type does not take that account", StatusCode: http.StatusUnprocessableEntity}
	ErrSameAccountTransfer     = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusUnprocessableEntity}
	ErrTransactionApplied      = &AppError{Code: "TRANSACTION_ALREADY_APPLIED", Message: "Transaction is already applied", StatusCode: http.StatusConflict}
	ErrTransactionNotApplied   = &AppError{Code: "TRANSACTION_NOT_APPLIED", Message: "Transaction is not applied", StatusCode: http.StatusConflict}
	ErrTransactionStillApplied = &AppError{Code: "TRANSACTION_STILL_APPLIED", Message: "Revert the transaction before changing or deleting it", StatusCode: http.StatusConflict}
)

// Budget errors.
var (
	ErrBudgetNotFound      = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrInvalidBudgetPeriod = &AppError{Code: "INVALID_BUDGET_PERIOD", Message: "Invalid budget period", StatusCode: http.StatusBadRequest}
)

// Tag errors.
var (
	ErrTagNotFound  = &AppError{Code: "TAG_NOT_FOUND", Message: "Tag not found", StatusCode: http.StatusNotFound}
	ErrDuplicateTag = &AppError{Code: "DUPLICATE_TAG", Message: "A tag with this name already exists", StatusCode: http.StatusConflict}
)
