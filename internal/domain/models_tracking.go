package domain

import (
	"time"
)

// DocumentType identifies the document family of a relation or timing
// node. New families are added here as the suite grows.
type DocumentType string

const (
	DocTypeDemand              DocumentType = "demand"
	DocTypeDemandComputation   DocumentType = "demand_computation"
	DocTypeWorkOrder           DocumentType = "work_order"
	DocTypeOutsourceWorkOrder  DocumentType = "outsource_work_order"
	DocTypePurchaseRequisition DocumentType = "purchase_requisition"
	DocTypePurchaseOrder       DocumentType = "purchase_order"
	DocTypeStocktaking         DocumentType = "stocktaking"
	DocTypeInventory           DocumentType = "inventory"
)

// RelationKind classifies an edge of the document graph.
type RelationKind string

const (
	RelationKindGenerated RelationKind = "generated"
	RelationKindPushed    RelationKind = "pushed"
	RelationKindAdjusted  RelationKind = "adjusted"
	// RelationKindReversal marks a correcting edge; the original edge
	// is never deleted.
	RelationKindReversal RelationKind = "reversal"
)

// DocumentRelation is one append-only edge of the traceability graph.
// Edges carry no soft delete: once written they are permanent, and
// corrections are recorded as reversal edges.
type DocumentRelation struct {
	ID         uint         `gorm:"primaryKey;autoIncrement" json:"-"`
	TenantID   uint         `gorm:"not null;index:idx_relations_source;index:idx_relations_target" json:"-"`
	SourceType DocumentType `gorm:"type:varchar(40);not null;index:idx_relations_source" json:"sourceType"`
	SourceID   uint         `gorm:"not null;index:idx_relations_source" json:"sourceId"`
	TargetType DocumentType `gorm:"type:varchar(40);not null;index:idx_relations_target" json:"targetType"`
	TargetID   uint         `gorm:"not null;index:idx_relations_target" json:"targetId"`
	Kind       RelationKind `gorm:"type:varchar(20);not null;default:'generated'" json:"kind"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	CreatedBy  string       `gorm:"type:varchar(100)" json:"createdBy,omitempty"`
}

// DocumentNodeTiming records the wall-clock window of one process node
// of a document. DurationHours is net of non-working time according to
// the tenant's working-hours policy.
type DocumentNodeTiming struct {
	ID              uint         `gorm:"primaryKey;autoIncrement" json:"-"`
	TenantID        uint         `gorm:"not null;uniqueIndex:idx_timings_node" json:"-"`
	DocumentType    DocumentType `gorm:"type:varchar(40);not null;uniqueIndex:idx_timings_node" json:"documentType"`
	DocumentID      uint         `gorm:"not null;uniqueIndex:idx_timings_node" json:"documentId"`
	NodeCode        string       `gorm:"type:varchar(64);not null;uniqueIndex:idx_timings_node" json:"nodeCode"`
	StartTime       *time.Time   `json:"startTime,omitempty"`
	EndTime         *time.Time   `json:"endTime,omitempty"`
	DurationSeconds int64        `gorm:"not null;default:0" json:"durationSeconds"`
	DurationHours   float64      `gorm:"type:decimal(12,4);not null;default:0" json:"durationHours"`
	Operator        string       `gorm:"type:varchar(100)" json:"operator,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// ResetCycle determines when a code counter scope rolls over.
type ResetCycle string

const (
	ResetCycleNone    ResetCycle = "none"
	ResetCycleDaily   ResetCycle = "daily"
	ResetCycleMonthly ResetCycle = "monthly"
	ResetCycleYearly  ResetCycle = "yearly"
)

func (c ResetCycle) IsValid() bool {
	switch c {
	case ResetCycleNone, ResetCycleDaily, ResetCycleMonthly, ResetCycleYearly:
		return true
	}
	return false
}

// CodeRule is a template for generating human-readable business codes,
// e.g. "SO{YYYY}{MM}{DD}{SEQ:4}".
type CodeRule struct {
	Base
	RuleCode   string     `gorm:"type:varchar(64);not null;index:idx_code_rules_tenant_code" json:"ruleCode"`
	Name       string     `gorm:"type:varchar(200)" json:"name,omitempty"`
	Template   string     `gorm:"type:varchar(200);not null" json:"template"`
	ResetCycle ResetCycle `gorm:"type:varchar(10);not null;default:'none'" json:"resetCycle"`
	StartValue int64      `gorm:"not null;default:1" json:"startValue"`
	Step       int64      `gorm:"not null;default:1" json:"step"`
	IsActive   bool       `gorm:"not null;default:true" json:"isActive"`
}

// CodeCounter is the per-(tenant, rule, scope) sequence row. The
// atomic increment of Value is the only source of sequence numbers.
type CodeCounter struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `gorm:"not null;uniqueIndex:idx_code_counters_scope"`
	RuleCode  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_code_counters_scope"`
	ScopeKey  string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_code_counters_scope"`
	Value     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// IdempotencyKey stores the outcome of a code-generating request so a
// replay within the retention window returns the prior result instead
// of burning a new number.
type IdempotencyKey struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `gorm:"not null;uniqueIndex:idx_idempotency_request"`
	RequestID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_idempotency_request"`
	RuleCode  string    `gorm:"type:varchar(64);not null"`
	Code      string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}
