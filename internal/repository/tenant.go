package repository

import (
	"context"
	"strings"

	"github.com/craftflow/mes-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string
	Order SortOrder
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "updatedAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and
// sort config. fieldMap whitelists API field names to database columns;
// anything outside it falls back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyTenantScope constrains a query to the caller's tenant. A request
// without a tenant must never see data, so the query is pinned to an
// empty result set instead of running unscoped.
func ApplyTenantScope(ctx context.Context, query *gorm.DB) *gorm.DB {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return query.Where("1 = 0")
	}
	return query.Where("tenant_id = ?", tenantID)
}

// ApplyTenantScopeWithAlias constrains a joined query using a table
// alias for the tenant column.
func ApplyTenantScopeWithAlias(ctx context.Context, query *gorm.DB, tableAlias string) *gorm.DB {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return query.Where("1 = 0")
	}
	return query.Where(tableAlias+".tenant_id = ?", tenantID)
}

// ClampPageSize normalizes a requested page size into [1, MaxPageSize].
func ClampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
