package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindExpiredStaging    Kind = "EXPIRED_STAGING"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindSystem            Kind = "SYSTEM"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s %s", e.Message, e.Errors[0].Field, e.Errors[0].Message)
}

// Common errors
var (
	ErrExpiredStaging = &AppError{Code: http.StatusGone, Kind: KindExpiredStaging,
		Message: "No pending transaction to finalize, please start the checkout again"}
	ErrAlreadyVoided = &AppError{Code: http.StatusConflict, Kind: KindConflict,
		Message: "Document is already voided"}
	ErrNotVoided = &AppError{Code: http.StatusConflict, Kind: KindConflict,
		Message: "Only voided documents can be reactivated"}
	ErrNotFinalized = &AppError{Code: http.StatusConflict, Kind: KindConflict,
		Message: "Only finalized documents can be voided"}
	ErrNotOpen = &AppError{Code: http.StatusConflict, Kind: KindConflict,
		Message: "Document is not open for finalization"}
	ErrDuplicateDocumentNumber = &AppError{Code: http.StatusInternalServerError, Kind: KindSystem,
		Message: "Document number is already in use"}
	ErrDuplicatePaymentReference = &AppError{Code: http.StatusInternalServerError, Kind: KindSystem,
		Message: "Payment reference is already in use"}
	ErrCorruptSequence = &AppError{Code: http.StatusInternalServerError, Kind: KindSystem,
		Message: "Document number sequence is corrupt"}
)

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Kind:    KindValidation,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewFieldError is a validation error for a single field.
func NewFieldError(field, message string) *AppError {
	return NewValidationError([]FieldError{{Field: field, Message: message}})
}

// NewNotFoundError creates a not found error for a resource and its identifier
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
	}
}

// NewInconsistencyError reports durable state that contradicts itself.
func NewInconsistencyError(message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    KindSystem,
		Message: message,
	}
}

// InsufficientStockError is returned when an item cannot cover a requested quantity.
type InsufficientStockError struct {
	ItemID    int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: available=%d, requested=%d",
		e.ItemID, e.Available, e.Requested)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if kind == KindInsufficientStock {
		var stockErr *InsufficientStockError
		return errors.As(err, &stockErr)
	}
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsNotFound is shorthand for IsKind(err, KindNotFound).
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return &AppError{
			Code:    http.StatusConflict,
			Kind:    KindInsufficientStock,
			Message: stockErr.Error(),
		}
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    KindSystem,
		Message: err.Error(),
	}
}
