package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one member of the closed error taxonomy.
// Handlers map codes to HTTP status families; services never return
// raw database errors across the boundary.
type ErrorCode string

const (
	ErrCodeNotFound                ErrorCode = "not_found"
	ErrCodeValidation              ErrorCode = "validation"
	ErrCodeBusinessLogic           ErrorCode = "business_logic"
	ErrCodeNotAuthorizedForTenant  ErrorCode = "not_authorized_for_tenant"
	ErrCodeInsufficientStock       ErrorCode = "insufficient_stock"
	ErrCodeComputationFailed       ErrorCode = "computation_failed"
	ErrCodeInternal                ErrorCode = "internal_error"
)

// ComputationFailureKind is the structured sub-kind carried by
// computation_failed errors.
type ComputationFailureKind string

const (
	ComputationFailureBOMCycle              ComputationFailureKind = "BOMCycle"
	ComputationFailureInventoryInconsistent ComputationFailureKind = "InventoryInconsistent"
	ComputationFailureMissingRule           ComputationFailureKind = "MissingRule"
	ComputationFailureLockTimeout           ComputationFailureKind = "LockTimeout"
)

// Error is the typed error every service raises. Details carries
// machine-readable context (field names, document codes, sub-kinds).
type Error struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match on the taxonomy code so callers can branch
// on kind without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail returns the error with an extra detail entry attached.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error for logging while keeping the
// wire message stable.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

func NewNotFound(entity string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: entity + " not found"}
}

func NewValidation(message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message}
}

func NewValidationf(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewBusinessLogic(message string) *Error {
	return &Error{Code: ErrCodeBusinessLogic, Message: message}
}

func NewNotAuthorizedForTenant() *Error {
	return &Error{Code: ErrCodeNotAuthorizedForTenant, Message: "operation not authorized for tenant"}
}

func NewInsufficientStock(materialCode string, requested, available string) *Error {
	e := &Error{Code: ErrCodeInsufficientStock, Message: "insufficient stock for material " + materialCode}
	return e.WithDetail("requested", requested).WithDetail("available", available)
}

func NewComputationFailed(kind ComputationFailureKind, message string) *Error {
	e := &Error{Code: ErrCodeComputationFailed, Message: message}
	return e.WithDetail("kind", string(kind))
}

// Sentinel values for errors.Is matching by code.
var (
	ErrNotFound               = &Error{Code: ErrCodeNotFound}
	ErrValidation             = &Error{Code: ErrCodeValidation}
	ErrBusinessLogic          = &Error{Code: ErrCodeBusinessLogic}
	ErrNotAuthorizedForTenant = &Error{Code: ErrCodeNotAuthorizedForTenant}
	ErrInsufficientStock      = &Error{Code: ErrCodeInsufficientStock}
	ErrComputationFailed      = &Error{Code: ErrCodeComputationFailed}
)

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// FailureKind extracts the computation failure sub-kind, if any.
func FailureKind(err error) (ComputationFailureKind, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeComputationFailed {
		if kind, ok := e.Details["kind"]; ok {
			return ComputationFailureKind(kind), true
		}
	}
	return "", false
}
