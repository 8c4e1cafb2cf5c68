package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base carries the shared shape of every business entity: an internal
// autoincrement id used for joins, a stable external uuid used on the
// wire, the mandatory tenant scope, audit actors, and soft delete.
type Base struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	UUID      uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	TenantID  uint           `gorm:"not null;index" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CreatedBy     string `gorm:"type:varchar(100);column:created_by" json:"createdBy,omitempty"`
	CreatedByName string `gorm:"type:varchar(200);column:created_by_name" json:"createdByName,omitempty"`
	UpdatedBy     string `gorm:"type:varchar(100);column:updated_by" json:"updatedBy,omitempty"`
	UpdatedByName string `gorm:"type:varchar(200);column:updated_by_name" json:"updatedByName,omitempty"`
}

// BeforeCreate assigns the external uuid in the application rather than
// the database so batched inserts get their identifiers up front.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	return nil
}

// MaterialType classifies a material by its role in production.
type MaterialType string

const (
	MaterialTypeFinished     MaterialType = "FIN"
	MaterialTypeSemiFinished MaterialType = "SEMI"
	MaterialTypeRaw          MaterialType = "RAW"
	MaterialTypePackaging    MaterialType = "PACK"
	MaterialTypeAuxiliary    MaterialType = "AUX"
)

func (t MaterialType) IsValid() bool {
	switch t {
	case MaterialTypeFinished, MaterialTypeSemiFinished, MaterialTypeRaw, MaterialTypePackaging, MaterialTypeAuxiliary:
		return true
	}
	return false
}

// MaterialSourceType routes net requirements to the document family
// that can satisfy them.
type MaterialSourceType string

const (
	SourceTypeMake      MaterialSourceType = "Make"
	SourceTypeBuy       MaterialSourceType = "Buy"
	SourceTypePhantom   MaterialSourceType = "Phantom"
	SourceTypeOutsource MaterialSourceType = "Outsource"
	SourceTypeConfigure MaterialSourceType = "Configure"
)

func (t MaterialSourceType) IsValid() bool {
	switch t {
	case SourceTypeMake, SourceTypeBuy, SourceTypePhantom, SourceTypeOutsource, SourceTypeConfigure:
		return true
	}
	return false
}

// Material is the master record every planning and inventory operation
// hangs off.
type Material struct {
	Base
	MainCode       string             `gorm:"type:varchar(64);not null;index:idx_materials_tenant_code" json:"mainCode"`
	Name           string             `gorm:"type:varchar(200)" json:"name,omitempty"`
	MaterialType   MaterialType       `gorm:"type:varchar(10);not null;index" json:"materialType"`
	BaseUnit       string             `gorm:"type:varchar(20);not null" json:"baseUnit"`
	UnitPrecision  int                `gorm:"not null;default:2" json:"unitPrecision"`
	BatchManaged   bool               `gorm:"not null;default:false" json:"batchManaged"`
	SerialManaged  bool               `gorm:"not null;default:false" json:"serialManaged"`
	VariantManaged bool               `gorm:"not null;default:false" json:"variantManaged"`
	BatchRuleCode  string             `gorm:"type:varchar(64)" json:"batchRuleCode,omitempty"`
	SerialRuleCode string             `gorm:"type:varchar(64)" json:"serialRuleCode,omitempty"`
	SourceType     MaterialSourceType `gorm:"type:varchar(20);not null;index" json:"sourceType"`
	SourceConfig   SourceConfig       `gorm:"type:jsonb" json:"sourceConfig"`
	SafetyStock    decimal.Decimal    `gorm:"type:decimal(18,6);not null;default:0" json:"safetyStock"`
	ReorderPoint   decimal.Decimal    `gorm:"type:decimal(18,6);not null;default:0" json:"reorderPoint"`
	LeadTimeDays   int                `gorm:"not null;default:0" json:"leadTimeDays"`
}

// MaterialAliasKind classifies who knows the material by the alias.
type MaterialAliasKind string

const (
	AliasKindDepartment MaterialAliasKind = "department"
	AliasKindCustomer   MaterialAliasKind = "customer"
	AliasKindSupplier   MaterialAliasKind = "supplier"
)

// MaterialAlias maps an external code back to the canonical material.
type MaterialAlias struct {
	Base
	MaterialID uint              `gorm:"not null;index" json:"-"`
	Material   *Material         `gorm:"foreignKey:MaterialID" json:"-"`
	AliasKind  MaterialAliasKind `gorm:"type:varchar(20);not null" json:"aliasKind"`
	AliasCode  string            `gorm:"type:varchar(64);not null;index" json:"aliasCode"`
	OwnerCode  string            `gorm:"type:varchar(64)" json:"ownerCode,omitempty"`
	OwnerName  string            `gorm:"type:varchar(200)" json:"ownerName,omitempty"`
}

// BOMStatus is the review state of a bill of materials.
type BOMStatus string

const (
	BOMStatusDraft         BOMStatus = "draft"
	BOMStatusPendingReview BOMStatus = "pending_review"
	BOMStatusApproved      BOMStatus = "approved"
	BOMStatusRejected      BOMStatus = "rejected"
)

// BOM is a versioned component tree for a parent material. Only
// approved BOMs participate in demand computation.
type BOM struct {
	Base
	Code             string        `gorm:"type:varchar(64);not null;index" json:"code"`
	ParentMaterialID uint          `gorm:"not null;index" json:"-"`
	ParentMaterial   *Material     `gorm:"foreignKey:ParentMaterialID" json:"-"`
	Version          string        `gorm:"type:varchar(20);not null;default:'A'" json:"version"`
	Status           BOMStatus     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Remark           string        `gorm:"type:text" json:"remark,omitempty"`
	ReviewRemarks    ReviewRemarks `gorm:"type:jsonb" json:"reviewRemarks,omitempty"`
	Items            []BOMItem     `gorm:"foreignKey:BOMID" json:"items,omitempty"`
}

// BOMItem is one component line of a BOM.
type BOMItem struct {
	Base
	BOMID               uint            `gorm:"not null;index" json:"-"`
	ComponentMaterialID uint            `gorm:"not null;index" json:"-"`
	ComponentMaterial   *Material       `gorm:"foreignKey:ComponentMaterialID" json:"-"`
	Quantity            decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"quantity"`
	ScrapRate           decimal.Decimal `gorm:"type:decimal(8,6);not null;default:0" json:"scrapRate"`
	Unit                string          `gorm:"type:varchar(20)" json:"unit,omitempty"`
	LeadTimeDays        int             `gorm:"not null;default:0" json:"leadTimeDays"`
	OperationName       string          `gorm:"type:varchar(100)" json:"operationName,omitempty"`
	Level               int             `gorm:"not null;default:1" json:"level"`
	Sequence            int             `gorm:"not null;default:0" json:"sequence"`
}

// InventoryStatus is the availability state of a quantity bucket.
type InventoryStatus string

const (
	InventoryStatusInStock     InventoryStatus = "in_stock"
	InventoryStatusOutStock    InventoryStatus = "out_stock"
	InventoryStatusAvailable   InventoryStatus = "available"
	InventoryStatusQuarantined InventoryStatus = "quarantined"
)

// DefaultBatchNo is the bucket used for main-warehouse quantities of
// materials created before batch management was enabled.
const DefaultBatchNo = "DEFAULT"

// MaterialBatch is a main-warehouse quantity bucket keyed by
// (tenant, material, batch_no).
type MaterialBatch struct {
	Base
	MaterialID       uint            `gorm:"not null;index:idx_batches_material" json:"-"`
	Material         *Material       `gorm:"foreignKey:MaterialID" json:"-"`
	BatchNo          string          `gorm:"type:varchar(64);not null;index:idx_batches_material" json:"batchNo"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"quantity"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"reservedQuantity"`
	Status           InventoryStatus `gorm:"type:varchar(20);not null;default:'in_stock';index" json:"status"`
	ProductionDate   *time.Time      `gorm:"type:date" json:"productionDate,omitempty"`
	ExpiryDate       *time.Time      `gorm:"type:date" json:"expiryDate,omitempty"`
}

// Available is the quantity not held by reservations.
func (b *MaterialBatch) Available() decimal.Decimal {
	return b.Quantity.Sub(b.ReservedQuantity)
}

// LineSideInventory is a shop-floor quantity bucket keyed by
// (tenant, warehouse, material, batch_no). It carries source-document
// traceability for replenishments.
type LineSideInventory struct {
	Base
	WarehouseID      uint            `gorm:"not null;index:idx_lineside_bucket" json:"-"`
	MaterialID       uint            `gorm:"not null;index:idx_lineside_bucket" json:"-"`
	Material         *Material       `gorm:"foreignKey:MaterialID" json:"-"`
	BatchNo          string          `gorm:"type:varchar(64);not null;index:idx_lineside_bucket" json:"batchNo"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"quantity"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"reservedQuantity"`
	Status           InventoryStatus `gorm:"type:varchar(20);not null;default:'in_stock';index" json:"status"`
	SourceType       string          `gorm:"type:varchar(50)" json:"sourceType,omitempty"`
	SourceDocID      *uint           `gorm:"column:source_doc_id" json:"-"`
	SourceDocCode    string          `gorm:"type:varchar(64)" json:"sourceDocCode,omitempty"`
}

// Available is the quantity not held by reservations.
func (l *LineSideInventory) Available() decimal.Decimal {
	return l.Quantity.Sub(l.ReservedQuantity)
}
