package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// jsonValue marshals v for storage in a json/jsonb column.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonScan unmarshals a json/jsonb column into dst, tolerating both
// []byte (postgres) and string (sqlite) source values.
func jsonScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// SourceConfig describes how a material is obtained. Exactly the fields
// relevant to the material's SourceType are populated; the rest stay zero.
type SourceConfig struct {
	// ManufacturingMode applies to Make/Configure materials.
	ManufacturingMode string `json:"manufacturing_mode,omitempty"`
	// DefaultSupplierCode / Name apply to Buy and Outsource materials.
	DefaultSupplierCode string `json:"default_supplier_code,omitempty"`
	DefaultSupplierName string `json:"default_supplier_name,omitempty"`
	// OutsourceOperation applies to Outsource materials.
	OutsourceOperation string `json:"outsource_operation,omitempty"`
	// VariantAttributes apply to Configure materials.
	VariantAttributes map[string]string `json:"variant_attributes,omitempty"`
}

func (c SourceConfig) Value() (driver.Value, error) { return jsonValue(c) }
func (c *SourceConfig) Scan(src interface{}) error  { return jsonScan(src, c) }

// Validate checks the config against the material's source type at
// write time so downstream code never sees a half-populated blob.
func (c SourceConfig) Validate(sourceType MaterialSourceType) error {
	switch sourceType {
	case SourceTypeOutsource:
		if c.OutsourceOperation == "" {
			return NewValidation("outsource materials require an outsource operation in source config")
		}
		if c.DefaultSupplierCode == "" {
			return NewValidation("outsource materials require a default supplier in source config")
		}
	case SourceTypeBuy:
		// Supplier is recommended but not mandatory; requisitions may
		// be sourced later.
	}
	return nil
}

// ScheduleEntry is one time bucket of a computation item schedule.
type ScheduleEntry struct {
	Bucket   string          `json:"bucket"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DetailResults holds the per-bucket schedules of one computation item.
type DetailResults struct {
	DemandSchedule       []ScheduleEntry `json:"demand_schedule"`
	InventorySchedule    []ScheduleEntry `json:"inventory_schedule"`
	PlannedOrderSchedule []ScheduleEntry `json:"planned_order_schedule"`
	Warnings             []string        `json:"warnings,omitempty"`
}

func (d DetailResults) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DetailResults) Scan(src interface{}) error  { return jsonScan(src, d) }

// ReviewRemark is one entry of a document's review history.
type ReviewRemark struct {
	Action     string    `json:"action"`
	Remark     string    `json:"remark,omitempty"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ReviewRemarks is the append-only review history stored on reviewable
// documents.
type ReviewRemarks []ReviewRemark

func (r ReviewRemarks) Value() (driver.Value, error) { return jsonValue(r) }
func (r *ReviewRemarks) Scan(src interface{}) error  { return jsonScan(src, r) }

// ComputeParams are the caller-supplied parameters of a computation run.
// Policy objects are passed through rather than interpreted beyond the
// documented defaults; their sources are configuration.
type ComputeParams struct {
	PlanningHorizonDays int             `json:"planning_horizon_days"`
	TimeBucket          TimeBucket      `json:"time_bucket"`
	SafetyStockPolicy   string          `json:"safety_stock_policy,omitempty"`
	ReorderPointPolicy  string          `json:"reorder_point_policy,omitempty"`
	IncludePhantom      bool            `json:"include_phantom"`
	MakeCapacityPerBucket *decimal.Decimal `json:"make_capacity_per_bucket,omitempty"`
}

func (p ComputeParams) Value() (driver.Value, error) { return jsonValue(p) }
func (p *ComputeParams) Scan(src interface{}) error  { return jsonScan(src, p) }
