package service

import (
	"errors"

	"github.com/craftflow/mes-api/internal/domain"
	"gorm.io/gorm"
)

// Common service errors. Handlers translate these and *domain.Error
// values into the wire envelope; anything else maps to internal_error.
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoTenant is returned when the request context carries no tenant
	ErrNoTenant = errors.New("no tenant in request context")
)

// batchError converts a row failure into its batch representation,
// surfacing the domain code when one is present.
func batchError(index int, err error) domain.BatchError {
	be := domain.BatchError{Index: index, Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		be.Code = string(de.Code)
		be.Message = de.Message
	}
	return be
}

// translateNotFound converts gorm's record-not-found into the domain
// not-found error so a cross-tenant read is indistinguishable from a
// missing record.
func translateNotFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFound(resource)
	}
	return err
}
