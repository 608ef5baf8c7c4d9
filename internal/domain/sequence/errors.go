package sequence

import (
	"errors"
	"net/http"

	"heshbon/internal/core/apperror"
)

// ErrConflict marks a transient store-level conflict during allocation
// (serialization failure, lock timeout). Repository implementations wrap
// such failures with this sentinel; the allocator retries on it and
// surfaces AllocationContention once the retry budget is exhausted.
var ErrConflict = errors.New("sequence: allocation conflict")

// NewAlreadyLocked reports the expected, non-fatal condition of a second
// lock attempt for a (tenant, document type) that already has one.
func NewAlreadyLocked(tenantID string, docType DocumentType) *apperror.AppError {
	return &apperror.AppError{
		Code:       apperror.CodeSequenceLocked,
		Message:    "Starting number is already configured for this document type",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"tenantId":     tenantID,
			"documentType": string(docType),
		},
	}
}

// NewNotLocked reports an allocation attempt before the starting number
// was chosen. Callers must lock first.
func NewNotLocked(tenantID string, docType DocumentType) *apperror.AppError {
	return &apperror.AppError{
		Code:       apperror.CodeSequenceNotLocked,
		Message:    "Starting number must be chosen before issuing documents of this type",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"tenantId":     tenantID,
			"documentType": string(docType),
		},
	}
}

// NewInvalidStartingNumber rejects non-positive starting numbers.
func NewInvalidStartingNumber(value int64) *apperror.AppError {
	return &apperror.AppError{
		Code:       apperror.CodeInvalidStartingNumber,
		Message:    "Starting number must be a positive integer",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"startingNumber": value},
	}
}

// NewInvalidTenant rejects operations without a tenant identity.
func NewInvalidTenant() *apperror.AppError {
	return apperror.NewValidation("tenant is required").
		WithDetail("field", "tenantId")
}

// NewAllocationContention reports retry budget exhaustion under concurrent
// allocation. Transient; the caller may try again.
func NewAllocationContention(tenantID string, docType DocumentType, attempts int, cause error) *apperror.AppError {
	return &apperror.AppError{
		Code:       apperror.CodeAllocationContention,
		Message:    "Could not allocate a document number due to concurrent activity",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"tenantId":     tenantID,
			"documentType": string(docType),
			"attempts":     attempts,
		},
		Err: cause,
	}
}

// IsAlreadyLocked checks for the AlreadyLocked condition.
func IsAlreadyLocked(err error) bool {
	return apperror.HasCode(err, apperror.CodeSequenceLocked)
}

// IsNotLocked checks for the SequenceNotLocked condition.
func IsNotLocked(err error) bool {
	return apperror.HasCode(err, apperror.CodeSequenceNotLocked)
}
