package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkOrderPriority orders execution when capacity is contended.
type WorkOrderPriority string

const (
	PriorityLow    WorkOrderPriority = "low"
	PriorityNormal WorkOrderPriority = "normal"
	PriorityHigh   WorkOrderPriority = "high"
	PriorityUrgent WorkOrderPriority = "urgent"
)

func (p WorkOrderPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// WorkOrderStatus is the execution lifecycle of a work order.
type WorkOrderStatus string

const (
	WorkOrderStatusDraft      WorkOrderStatus = "draft"
	WorkOrderStatusReleased   WorkOrderStatus = "released"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder drives production of a Make or Configure material.
// The freeze flag is orthogonal to status: while frozen, every
// transition except unfreeze is rejected.
type WorkOrder struct {
	Base
	Code                string            `gorm:"type:varchar(64);not null;index:idx_work_orders_tenant_code" json:"code"`
	ProductID           uint              `gorm:"not null;index" json:"-"`
	Product             *Material         `gorm:"foreignKey:ProductID" json:"-"`
	ProductCode         string            `gorm:"type:varchar(64)" json:"productCode"`
	Quantity            decimal.Decimal   `gorm:"type:decimal(18,6);not null" json:"quantity"`
	Priority            WorkOrderPriority `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	Status              WorkOrderStatus   `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	IsFrozen            bool              `gorm:"not null;default:false" json:"isFrozen"`
	FreezeReason        string            `gorm:"type:varchar(500)" json:"freezeReason,omitempty"`
	FrozenBy            string            `gorm:"type:varchar(100)" json:"frozenBy,omitempty"`
	FrozenAt            *time.Time        `json:"frozenAt,omitempty"`
	PlannedStartDate    *time.Time        `gorm:"type:date" json:"plannedStartDate,omitempty"`
	PlannedEndDate      *time.Time        `gorm:"type:date" json:"plannedEndDate,omitempty"`
	ActualStartDate     *time.Time        `json:"actualStartDate,omitempty"`
	ActualEndDate       *time.Time        `json:"actualEndDate,omitempty"`
	CompletedQuantity   decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"completedQuantity"`
	QualifiedQuantity   decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"qualifiedQuantity"`
	UnqualifiedQuantity decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"unqualifiedQuantity"`
	ComputationID       *uint             `gorm:"column:computation_id;index" json:"-"`
	Remark              string            `gorm:"type:text" json:"remark,omitempty"`
}

// WorkOrderReport records one production report against a work order.
// Backflush consumes component inventory through the product's BOM.
type WorkOrderReport struct {
	Base
	WorkOrderID         uint            `gorm:"not null;index" json:"-"`
	WorkOrder           *WorkOrder      `gorm:"foreignKey:WorkOrderID" json:"-"`
	ReportQuantity      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"reportQuantity"`
	QualifiedQuantity   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"qualifiedQuantity"`
	UnqualifiedQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"unqualifiedQuantity"`
	Backflushed         bool            `gorm:"not null;default:false" json:"backflushed"`
	ReportedAt          time.Time       `gorm:"not null" json:"reportedAt"`
	Remark              string          `gorm:"type:varchar(500)" json:"remark,omitempty"`
}

// ScrapRecordStatus is the disposition of a scrap or defect record.
type ScrapRecordStatus string

const (
	ScrapStatusPending    ScrapRecordStatus = "pending"
	ScrapStatusApproved   ScrapRecordStatus = "approved"
	ScrapStatusLetThrough ScrapRecordStatus = "let_through"
	ScrapStatusRejected   ScrapRecordStatus = "rejected"
)

// ScrapRecord reduces a work order's completed quantity; let-through
// requires explicit approval.
type ScrapRecord struct {
	Base
	WorkOrderID uint              `gorm:"not null;index" json:"-"`
	MaterialID  uint              `gorm:"not null" json:"-"`
	Quantity    decimal.Decimal   `gorm:"type:decimal(18,6);not null" json:"quantity"`
	Reason      string            `gorm:"type:varchar(500)" json:"reason,omitempty"`
	DefectCode  string            `gorm:"type:varchar(64)" json:"defectCode,omitempty"`
	Status      ScrapRecordStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RecordedAt  time.Time         `gorm:"not null" json:"recordedAt"`
}

// OutsourceWorkOrder mirrors WorkOrder for work performed by a
// supplier; issues and receipts move material out and back in.
type OutsourceWorkOrder struct {
	Base
	Code                string            `gorm:"type:varchar(64);not null;index:idx_outsource_wo_tenant_code" json:"code"`
	ProductID           uint              `gorm:"not null;index" json:"-"`
	ProductCode         string            `gorm:"type:varchar(64)" json:"productCode"`
	Quantity            decimal.Decimal   `gorm:"type:decimal(18,6);not null" json:"quantity"`
	Priority            WorkOrderPriority `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	Status              WorkOrderStatus   `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	IsFrozen            bool              `gorm:"not null;default:false" json:"isFrozen"`
	FreezeReason        string            `gorm:"type:varchar(500)" json:"freezeReason,omitempty"`
	FrozenBy            string            `gorm:"type:varchar(100)" json:"frozenBy,omitempty"`
	FrozenAt            *time.Time        `json:"frozenAt,omitempty"`
	SupplierCode        string            `gorm:"type:varchar(64);not null" json:"supplierCode"`
	SupplierName        string            `gorm:"type:varchar(200)" json:"supplierName,omitempty"`
	OutsourceOperation  string            `gorm:"type:varchar(100);not null" json:"outsourceOperation"`
	PlannedStartDate    *time.Time        `gorm:"type:date" json:"plannedStartDate,omitempty"`
	PlannedEndDate      *time.Time        `gorm:"type:date" json:"plannedEndDate,omitempty"`
	CompletedQuantity   decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"completedQuantity"`
	QualifiedQuantity   decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"qualifiedQuantity"`
	UnqualifiedQuantity decimal.Decimal   `gorm:"type:decimal(18,6);not null;default:0" json:"unqualifiedQuantity"`
	ComputationID       *uint             `gorm:"column:computation_id;index" json:"-"`
}

// OutsourceIssue moves component material out to the supplier.
type OutsourceIssue struct {
	Base
	OutsourceWorkOrderID uint            `gorm:"not null;index" json:"-"`
	MaterialID           uint            `gorm:"not null" json:"-"`
	MaterialCode         string          `gorm:"type:varchar(64)" json:"materialCode"`
	BatchNo              string          `gorm:"type:varchar(64)" json:"batchNo,omitempty"`
	Quantity             decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"quantity"`
	IssuedAt             time.Time       `gorm:"not null" json:"issuedAt"`
}

// OutsourceReceipt brings finished goods back from the supplier.
type OutsourceReceipt struct {
	Base
	OutsourceWorkOrderID uint            `gorm:"not null;index" json:"-"`
	MaterialID           uint            `gorm:"not null" json:"-"`
	MaterialCode         string          `gorm:"type:varchar(64)" json:"materialCode"`
	BatchNo              string          `gorm:"type:varchar(64)" json:"batchNo,omitempty"`
	Quantity             decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"quantity"`
	QualifiedQuantity    decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"qualifiedQuantity"`
	ReceivedAt           time.Time       `gorm:"not null" json:"receivedAt"`
}

// PurchaseDocStatus is the lifecycle shared by requisitions and orders.
type PurchaseDocStatus string

const (
	PurchaseStatusDraft     PurchaseDocStatus = "draft"
	PurchaseStatusSubmitted PurchaseDocStatus = "submitted"
	PurchaseStatusApproved  PurchaseDocStatus = "approved"
	PurchaseStatusRejected  PurchaseDocStatus = "rejected"
	PurchaseStatusClosed    PurchaseDocStatus = "closed"
)

// PurchaseRequisition collects Buy suggestions before supplier
// assignment; pushing it produces a PurchaseOrder.
type PurchaseRequisition struct {
	Base
	Code          string                    `gorm:"type:varchar(64);not null;index:idx_purchase_reqs_tenant_code" json:"code"`
	Status        PurchaseDocStatus         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	ComputationID *uint                     `gorm:"column:computation_id;index" json:"-"`
	Remark        string                    `gorm:"type:text" json:"remark,omitempty"`
	Items         []PurchaseRequisitionItem `gorm:"foreignKey:RequisitionID" json:"items,omitempty"`
}

// PurchaseRequisitionItem is one material line of a requisition.
type PurchaseRequisitionItem struct {
	Base
	RequisitionID uint            `gorm:"not null;index" json:"-"`
	MaterialID    uint            `gorm:"not null;index" json:"-"`
	MaterialCode  string          `gorm:"type:varchar(64)" json:"materialCode"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"quantity"`
	RequiredDate  *time.Time      `gorm:"type:date" json:"requiredDate,omitempty"`
}

// PurchaseOrder is a supplier-facing order.
type PurchaseOrder struct {
	Base
	Code          string              `gorm:"type:varchar(64);not null;index:idx_purchase_orders_tenant_code" json:"code"`
	SupplierCode  string              `gorm:"type:varchar(64)" json:"supplierCode,omitempty"`
	SupplierName  string              `gorm:"type:varchar(200)" json:"supplierName,omitempty"`
	Status        PurchaseDocStatus   `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	OrderDate     *time.Time          `gorm:"type:date" json:"orderDate,omitempty"`
	TotalAmount   decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0" json:"totalAmount"`
	ComputationID *uint               `gorm:"column:computation_id;index" json:"-"`
	Items         []PurchaseOrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// PurchaseOrderItem is one material line of a purchase order.
type PurchaseOrderItem struct {
	Base
	OrderID      uint            `gorm:"not null;index" json:"-"`
	MaterialID   uint            `gorm:"not null;index" json:"-"`
	MaterialCode string          `gorm:"type:varchar(64)" json:"materialCode"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unitPrice"`
	ItemAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"itemAmount"`
	RequiredDate *time.Time      `gorm:"type:date" json:"requiredDate,omitempty"`
}
