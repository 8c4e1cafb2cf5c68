package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// respondData writes the success envelope.
func respondData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.Response{Success: true, Data: data})
}

// respondError translates a service error into the failure envelope.
// Unknown errors are masked as internal_error so database details never
// reach the wire.
func respondError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		switch {
		case errors.Is(err, service.ErrNoTenant), errors.Is(err, service.ErrUnauthorized):
			de = &domain.Error{Code: domain.ErrCodeNotAuthorizedForTenant, Message: "operation not authorized for tenant"}
		default:
			de = &domain.Error{Code: domain.ErrCodeInternal, Message: "internal error"}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(de.Code))
	_ = json.NewEncoder(w).Encode(domain.Response{Success: false, Error: de})
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeBusinessLogic:
		return http.StatusConflict
	case domain.ErrCodeNotAuthorizedForTenant:
		return http.StatusForbidden
	case domain.ErrCodeInsufficientStock:
		return http.StatusConflict
	case domain.ErrCodeComputationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondValidationError reports field-level failures from the request
// validator in the failure envelope.
func respondValidationError(w http.ResponseWriter, err error) {
	de := domain.NewValidation("one or more fields failed validation")
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			de.WithDetail(toJSONFieldName(fe.Field()), formatValidationError(fe))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(domain.Response{Success: false, Error: de})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must contain at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "uuid":
		return "Must be a valid UUID"
	default:
		return "Invalid value"
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// decodeJSON parses and validates a request body in one step. Bulk
// endpoints post arrays; their struct elements are validated one by one.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondError(w, domain.NewValidation("invalid request body"))
		return false
	}

	v := reflect.Indirect(reflect.ValueOf(target))
	switch v.Kind() {
	case reflect.Struct:
		if err := validate.Struct(target); err != nil {
			respondValidationError(w, err)
			return false
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if reflect.Indirect(v.Index(i)).Kind() != reflect.Struct {
				continue
			}
			if err := validate.Struct(v.Index(i).Addr().Interface()); err != nil {
				respondValidationError(w, err)
				return false
			}
		}
	}
	return true
}

// queryUint reads an unsigned integer query parameter, zero when absent
// or malformed.
func queryUint(r *http.Request, name string) uint {
	n, _ := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	return uint(n)
}

// pagination reads skip/limit query parameters with sane defaults.
func pagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	return skip, limit
}

func paginated(data interface{}, total int64, skip, limit int) domain.PaginatedResponse {
	return domain.PaginatedResponse{Data: data, Total: total, Skip: skip, Limit: limit}
}
