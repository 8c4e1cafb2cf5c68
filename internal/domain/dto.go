package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Response is the uniform wire envelope. Data is set on success,
// Error on failure, never both.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// PaginatedResponse wraps skip/limit list results.
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}

// CursorPage wraps cursor-based list results for large collections.
// NextCursor is the internal id to resume from; 0 means exhausted.
type CursorPage struct {
	Data       interface{} `json:"data"`
	NextCursor uint        `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}

// BatchError reports one failed row of a batch operation.
type BatchError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// BatchResult is the partial-failure-tolerant outcome of a batch
// operation.
type BatchResult struct {
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Errors       []BatchError `json:"errors"`
	UUIDs        []uuid.UUID  `json:"uuids,omitempty"`
}

// ReviewRequest carries an approve/reject action with its remark.
type ReviewRequest struct {
	Remark string `json:"remark" validate:"max=500"`
}

// CreateMaterialRequest creates a material. MainCode is generated from
// the MATERIAL code rule when omitted.
type CreateMaterialRequest struct {
	MainCode       string             `json:"mainCode" validate:"max=64"`
	Name           string             `json:"name" validate:"max=200"`
	MaterialType   MaterialType       `json:"materialType" validate:"required,oneof=FIN SEMI RAW PACK AUX"`
	BaseUnit       string             `json:"baseUnit" validate:"required,max=20"`
	UnitPrecision  *int               `json:"unitPrecision" validate:"omitempty,gte=0,lte=6"`
	BatchManaged   bool               `json:"batchManaged"`
	SerialManaged  bool               `json:"serialManaged"`
	VariantManaged bool               `json:"variantManaged"`
	BatchRuleCode  string             `json:"batchRuleCode" validate:"max=64"`
	SerialRuleCode string             `json:"serialRuleCode" validate:"max=64"`
	SourceType     MaterialSourceType `json:"sourceType" validate:"required,oneof=Make Buy Phantom Outsource Configure"`
	SourceConfig   SourceConfig       `json:"sourceConfig"`
	SafetyStock    decimal.Decimal    `json:"safetyStock"`
	ReorderPoint   decimal.Decimal    `json:"reorderPoint"`
	LeadTimeDays   int                `json:"leadTimeDays" validate:"gte=0"`
}

// UpdateMaterialRequest updates mutable material fields; the main code
// and source type are immutable after creation.
type UpdateMaterialRequest struct {
	Name         string          `json:"name" validate:"max=200"`
	BaseUnit     string          `json:"baseUnit" validate:"required,max=20"`
	SourceConfig SourceConfig    `json:"sourceConfig"`
	SafetyStock  decimal.Decimal `json:"safetyStock"`
	ReorderPoint decimal.Decimal `json:"reorderPoint"`
	LeadTimeDays int             `json:"leadTimeDays" validate:"gte=0"`
}

// BulkUpdateMaterialRequest is one row of a material batch update.
type BulkUpdateMaterialRequest struct {
	MaterialUUID uuid.UUID             `json:"materialUuid" validate:"required"`
	Update       UpdateMaterialRequest `json:"update"`
}

// CreateMaterialAliasRequest registers an external code for a material.
type CreateMaterialAliasRequest struct {
	AliasKind MaterialAliasKind `json:"aliasKind" validate:"required,oneof=department customer supplier"`
	AliasCode string            `json:"aliasCode" validate:"required,max=64"`
	OwnerCode string            `json:"ownerCode" validate:"max=64"`
	OwnerName string            `json:"ownerName" validate:"max=200"`
}

// CreateBOMItemRequest is one component line of a new BOM.
type CreateBOMItemRequest struct {
	ComponentMaterialUUID uuid.UUID       `json:"componentMaterialUuid" validate:"required"`
	Quantity              decimal.Decimal `json:"quantity" validate:"required"`
	ScrapRate             decimal.Decimal `json:"scrapRate"`
	Unit                  string          `json:"unit" validate:"max=20"`
	LeadTimeDays          int             `json:"leadTimeDays" validate:"gte=0"`
	OperationName         string          `json:"operationName" validate:"max=100"`
	Sequence              int             `json:"sequence"`
}

// CreateBOMRequest creates a draft BOM for a parent material.
type CreateBOMRequest struct {
	ParentMaterialUUID uuid.UUID              `json:"parentMaterialUuid" validate:"required"`
	Version            string                 `json:"version" validate:"max=20"`
	Remark             string                 `json:"remark" validate:"max=500"`
	Items              []CreateBOMItemRequest `json:"items" validate:"required,min=1,dive"`
}

// StockMovementRequest is the shared parameter set of the inventory
// surface. A nil WarehouseUUID routes to the main warehouse.
type StockMovementRequest struct {
	MaterialUUID  uuid.UUID       `json:"materialUuid" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity" validate:"required"`
	WarehouseID   *uint           `json:"warehouseId"`
	BatchNo       string          `json:"batchNo" validate:"max=64"`
	SourceType    string          `json:"sourceType" validate:"max=50"`
	SourceDocID   *uint           `json:"sourceDocId"`
	SourceDocCode string          `json:"sourceDocCode" validate:"max=64"`
}

// AdjustInventoryRequest sets an absolute quantity (stocktaking).
type AdjustInventoryRequest struct {
	MaterialUUID    uuid.UUID       `json:"materialUuid" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required"`
	WarehouseID     *uint           `json:"warehouseId"`
	BatchNo         string          `json:"batchNo" validate:"max=64"`
	StocktakingID   uint            `json:"stocktakingId"`
	StocktakingCode string          `json:"stocktakingCode" validate:"max=64"`
}

// CreateDemandItemRequest is one material line of a new demand.
type CreateDemandItemRequest struct {
	MaterialUUID     uuid.UUID       `json:"materialUuid" validate:"required"`
	RequiredQuantity decimal.Decimal `json:"requiredQuantity" validate:"required"`
	ForecastDate     *time.Time      `json:"forecastDate"`
	DeliveryDate     *time.Time      `json:"deliveryDate"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
}

// CreateDemandRequest creates a unified demand of either type.
type CreateDemandRequest struct {
	DemandType     DemandType                `json:"demandType" validate:"required,oneof=sales_order sales_forecast"`
	BusinessMode   BusinessMode              `json:"businessMode" validate:"required,oneof=MTO MTS"`
	CustomerCode   string                    `json:"customerCode" validate:"max=64"`
	CustomerName   string                    `json:"customerName" validate:"max=200"`
	OrderDate      *time.Time                `json:"orderDate"`
	DeliveryDate   *time.Time                `json:"deliveryDate"`
	ForecastPeriod string                    `json:"forecastPeriod" validate:"max=20"`
	StartDate      *time.Time                `json:"startDate"`
	EndDate        *time.Time                `json:"endDate"`
	Remark         string                    `json:"remark" validate:"max=500"`
	Items          []CreateDemandItemRequest `json:"items" validate:"dive"`
	RequestID      string                    `json:"requestId" validate:"max=100"`
}

// ComputeRequest triggers a computation run over approved demands.
type ComputeRequest struct {
	ComputationType ComputationType `json:"computationType" validate:"required,oneof=MRP LRP"`
	DemandUUIDs     []uuid.UUID     `json:"demandUuids" validate:"required,min=1"`
	Params          ComputeParams   `json:"params"`
	// AllowRecompute opts in to running against demands already pushed
	// to an earlier computation. The old run is not reversed.
	AllowRecompute bool   `json:"allowRecompute"`
	RequestID      string `json:"requestId" validate:"max=100"`
}

// CreateWorkOrderRequest creates a draft work order.
type CreateWorkOrderRequest struct {
	ProductUUID      uuid.UUID         `json:"productUuid" validate:"required"`
	Quantity         decimal.Decimal   `json:"quantity" validate:"required"`
	Priority         WorkOrderPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	PlannedStartDate *time.Time        `json:"plannedStartDate"`
	PlannedEndDate   *time.Time        `json:"plannedEndDate"`
	Remark           string            `json:"remark" validate:"max=500"`
}

// FreezeRequest freezes a work order with a reason.
type FreezeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ReportWorkRequest records production against a work order.
type ReportWorkRequest struct {
	ReportQuantity      decimal.Decimal `json:"reportQuantity" validate:"required"`
	QualifiedQuantity   decimal.Decimal `json:"qualifiedQuantity"`
	UnqualifiedQuantity decimal.Decimal `json:"unqualifiedQuantity"`
	// Backflush consumes components through the product BOM.
	Backflush bool   `json:"backflush"`
	Remark    string `json:"remark" validate:"max=500"`
}

// ScrapRequest records scrap or defect against a work order.
type ScrapRequest struct {
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	Reason     string          `json:"reason" validate:"max=500"`
	DefectCode string          `json:"defectCode" validate:"max=64"`
	LetThrough bool            `json:"letThrough"`
}

// OutsourceMovementRequest issues components to or receives goods from
// an outsource supplier.
type OutsourceMovementRequest struct {
	MaterialUUID      uuid.UUID       `json:"materialUuid" validate:"required"`
	Quantity          decimal.Decimal `json:"quantity" validate:"required"`
	BatchNo           string          `json:"batchNo" validate:"max=64"`
	QualifiedQuantity decimal.Decimal `json:"qualifiedQuantity"`
}

// CreateCodeRuleRequest registers a code template.
type CreateCodeRuleRequest struct {
	RuleCode   string     `json:"ruleCode" validate:"required,max=64"`
	Name       string     `json:"name" validate:"max=200"`
	Template   string     `json:"template" validate:"required,max=200"`
	ResetCycle ResetCycle `json:"resetCycle" validate:"required,oneof=none daily monthly yearly"`
	StartValue int64      `json:"startValue" validate:"gte=0"`
	Step       int64      `json:"step" validate:"gte=1"`
}

// GenerateCodeRequest asks for the next code of a rule.
type GenerateCodeRequest struct {
	RuleCode  string            `json:"ruleCode" validate:"required,max=64"`
	Context   map[string]string `json:"context"`
	RequestID string            `json:"requestId" validate:"max=100"`
}

// RecordEdgeRequest appends one relation edge.
type RecordEdgeRequest struct {
	SourceType DocumentType `json:"sourceType" validate:"required"`
	SourceID   uint         `json:"sourceId" validate:"required"`
	TargetType DocumentType `json:"targetType" validate:"required"`
	TargetID   uint         `json:"targetId" validate:"required"`
	Kind       RelationKind `json:"kind" validate:"omitempty,oneof=generated pushed adjusted reversal"`
}

// NodeTimingRequest starts or ends a timing node.
type NodeTimingRequest struct {
	DocumentType DocumentType `json:"documentType" validate:"required"`
	DocumentID   uint         `json:"documentId" validate:"required"`
	NodeCode     string       `json:"nodeCode" validate:"required,max=64"`
}

// ChainNode is one document of a traced source chain, ordered from the
// root demand down to the leaf.
type ChainNode struct {
	DocumentType DocumentType `json:"documentType"`
	DocumentID   uint         `json:"documentId"`
	Depth        int          `json:"depth"`
	Kind         RelationKind `json:"kind,omitempty"`
}
