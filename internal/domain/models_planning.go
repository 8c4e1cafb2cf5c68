package domain

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// DemandType distinguishes the two demand sources merged into the
// unified demand model.
type DemandType string

const (
	DemandTypeSalesOrder    DemandType = "sales_order"
	DemandTypeSalesForecast DemandType = "sales_forecast"
)

func (t DemandType) IsValid() bool {
	return t == DemandTypeSalesOrder || t == DemandTypeSalesForecast
}

// BusinessMode determines whether demand items are anchored to their
// delivery date (MTO) or forecast date (MTS) during computation.
type BusinessMode string

const (
	BusinessModeMTO BusinessMode = "MTO"
	BusinessModeMTS BusinessMode = "MTS"
)

func (m BusinessMode) IsValid() bool {
	return m == BusinessModeMTO || m == BusinessModeMTS
}

// ReviewStatus is the review state shared by reviewable documents.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending_review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Demand is the unified record over a firm sales order and a sales
// forecast. Only approved demands may be pushed to computation.
type Demand struct {
	Base
	DemandCode          string          `gorm:"type:varchar(64);not null;index:idx_demands_tenant_code" json:"demandCode"`
	DemandType          DemandType      `gorm:"type:varchar(20);not null;index" json:"demandType"`
	BusinessMode        BusinessMode    `gorm:"type:varchar(10);not null" json:"businessMode"`
	CustomerCode        string          `gorm:"type:varchar(64)" json:"customerCode,omitempty"`
	CustomerName        string          `gorm:"type:varchar(200)" json:"customerName,omitempty"`
	OrderDate           *time.Time      `gorm:"type:date" json:"orderDate,omitempty"`
	DeliveryDate        *time.Time      `gorm:"type:date" json:"deliveryDate,omitempty"`
	ForecastPeriod      string          `gorm:"type:varchar(20)" json:"forecastPeriod,omitempty"`
	StartDate           *time.Time      `gorm:"type:date" json:"startDate,omitempty"`
	EndDate             *time.Time      `gorm:"type:date" json:"endDate,omitempty"`
	TotalQuantity       decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"totalQuantity"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"totalAmount"`
	ReviewStatus        ReviewStatus    `gorm:"type:varchar(20);not null;default:'pending_review';index" json:"reviewStatus"`
	ReviewRemarks       ReviewRemarks   `gorm:"type:jsonb" json:"reviewRemarks,omitempty"`
	PushedToComputation bool            `gorm:"not null;default:false;index" json:"pushedToComputation"`
	ComputationID       *uint           `gorm:"column:computation_id" json:"-"`
	Remark              string          `gorm:"type:text" json:"remark,omitempty"`
	Items               []DemandItem    `gorm:"foreignKey:DemandID" json:"items,omitempty"`
}

// DeliveryStatus tracks fulfilment of one demand item.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusPartial   DeliveryStatus = "partial"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// DemandItem is one material line of a demand.
// RemainingQuantity = RequiredQuantity - DeliveredQuantity, never
// negative.
type DemandItem struct {
	Base
	DemandID          uint            `gorm:"not null;index" json:"-"`
	MaterialID        uint            `gorm:"not null;index" json:"-"`
	Material          *Material       `gorm:"foreignKey:MaterialID" json:"-"`
	MaterialCode      string          `gorm:"type:varchar(64)" json:"materialCode"`
	RequiredQuantity  decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"requiredQuantity"`
	DeliveredQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"deliveredQuantity"`
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"remainingQuantity"`
	ForecastDate      *time.Time      `gorm:"type:date" json:"forecastDate,omitempty"`
	DeliveryDate      *time.Time      `gorm:"type:date" json:"deliveryDate,omitempty"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unitPrice"`
	ItemAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"itemAmount"`
	DeliveryStatus    DeliveryStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"deliveryStatus"`
}

// ComputationType selects the planning mode; MRP and LRP share one
// engine distinguished by bucket granularity and policy.
type ComputationType string

const (
	ComputationTypeMRP ComputationType = "MRP"
	ComputationTypeLRP ComputationType = "LRP"
)

func (t ComputationType) IsValid() bool {
	return t == ComputationTypeMRP || t == ComputationTypeLRP
}

// ComputationStatus is the lifecycle of one computation run.
type ComputationStatus string

const (
	ComputationStatusPending   ComputationStatus = "pending"
	ComputationStatusRunning   ComputationStatus = "running"
	ComputationStatusCompleted ComputationStatus = "completed"
	ComputationStatusFailed    ComputationStatus = "failed"
)

// TimeBucket is the aggregation granularity of a computation run.
type TimeBucket string

const (
	TimeBucketDay   TimeBucket = "day"
	TimeBucketWeek  TimeBucket = "week"
	TimeBucketMonth TimeBucket = "month"
)

func (b TimeBucket) IsValid() bool {
	return b == TimeBucketDay || b == TimeBucketWeek || b == TimeBucketMonth
}

// DemandComputation is one planning run over one or more demands.
type DemandComputation struct {
	Base
	ComputationCode   string                  `gorm:"type:varchar(64);not null;index:idx_computations_tenant_code" json:"computationCode"`
	ComputationType   ComputationType         `gorm:"type:varchar(10);not null;index" json:"computationType"`
	ComputationStatus ComputationStatus       `gorm:"type:varchar(20);not null;default:'pending';index" json:"computationStatus"`
	BusinessMode      BusinessMode            `gorm:"type:varchar(10)" json:"businessMode,omitempty"`
	DemandID          *uint                   `gorm:"column:demand_id;index" json:"-"`
	DemandUUIDs       pq.StringArray          `gorm:"type:text[];column:demand_uuids" json:"demandUuids,omitempty"`
	Params            ComputeParams           `gorm:"type:jsonb" json:"params"`
	ErrorMessage      string                  `gorm:"type:text" json:"errorMessage,omitempty"`
	StartedAt         *time.Time              `json:"startedAt,omitempty"`
	CompletedAt       *time.Time              `json:"completedAt,omitempty"`
	Items             []DemandComputationItem `gorm:"foreignKey:ComputationID" json:"items,omitempty"`
}

// DemandComputationItem is the net result for one material of a run.
type DemandComputationItem struct {
	Base
	ComputationID                  uint            `gorm:"not null;index" json:"-"`
	MaterialID                     uint            `gorm:"not null;index" json:"-"`
	Material                       *Material       `gorm:"foreignKey:MaterialID" json:"-"`
	MaterialCode                   string          `gorm:"type:varchar(64)" json:"materialCode"`
	SourceType                     MaterialSourceType `gorm:"type:varchar(20)" json:"sourceType"`
	RequiredQuantity               decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"requiredQuantity"`
	AvailableInventory             decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"availableInventory"`
	GrossRequirement               decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"grossRequirement"`
	NetRequirement                 decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"netRequirement"`
	SafetyStock                    decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"safetyStock"`
	ReorderPoint                   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"reorderPoint"`
	PlannedReceipt                 decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"plannedReceipt"`
	PlannedRelease                 decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"plannedRelease"`
	SuggestedWorkOrderQuantity     decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"suggestedWorkOrderQuantity"`
	SuggestedPurchaseOrderQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"suggestedPurchaseOrderQuantity"`
	DetailResults                  DetailResults   `gorm:"type:jsonb" json:"detailResults"`
}
