package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository handles the two bucket families: main-warehouse
// material batches and line-side inventory.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// DB exposes the underlying handle so services can wrap multi-bucket
// movements in one transaction.
func (r *InventoryRepository) DB() *gorm.DB {
	return r.db
}

func (r *InventoryRepository) CreateBatch(ctx context.Context, tx *gorm.DB, batch *domain.MaterialBatch) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(batch).Error
}

func (r *InventoryRepository) SaveBatch(ctx context.Context, tx *gorm.DB, batch *domain.MaterialBatch) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Save(batch).Error
}

// GetBatchForUpdate loads one batch bucket with a row lock, creating
// nothing. Returns gorm.ErrRecordNotFound when the bucket is absent.
func (r *InventoryRepository) GetBatchForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, materialID uint, batchNo string) (*domain.MaterialBatch, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var batch domain.MaterialBatch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND material_id = ? AND batch_no = ?", tenantID, materialID, batchNo).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatchesForUpdate loads all in-stock buckets of a material ordered
// by ascending id, each row locked. Ascending id is the FIFO order for
// consumption.
func (r *InventoryRepository) ListBatchesForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, materialID uint) ([]domain.MaterialBatch, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var batches []domain.MaterialBatch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND material_id = ? AND status = ?", tenantID, materialID, domain.InventoryStatusInStock).
		Order("id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *InventoryRepository) ListBatches(ctx context.Context, materialID uint, skip, limit int) ([]domain.MaterialBatch, int64, error) {
	var batches []domain.MaterialBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.MaterialBatch{})
	query = ApplyTenantScope(ctx, query)
	if materialID != 0 {
		query = query.Where("material_id = ?", materialID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("id ASC").Find(&batches).Error
	return batches, total, err
}

// SumAvailable totals quantity minus reservations over the in-stock
// buckets of a material.
func (r *InventoryRepository) SumAvailable(ctx context.Context, materialID uint) (string, error) {
	var total *string
	query := r.db.WithContext(ctx).Model(&domain.MaterialBatch{}).
		Select("SUM(quantity - reserved_quantity)").
		Where("material_id = ? AND status = ?", materialID, domain.InventoryStatusInStock)
	query = ApplyTenantScope(ctx, query)
	if err := query.Scan(&total).Error; err != nil {
		return "0", err
	}
	if total == nil {
		return "0", nil
	}
	return *total, nil
}

func (r *InventoryRepository) CreateLineSide(ctx context.Context, tx *gorm.DB, inv *domain.LineSideInventory) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(inv).Error
}

func (r *InventoryRepository) SaveLineSide(ctx context.Context, tx *gorm.DB, inv *domain.LineSideInventory) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Save(inv).Error
}

// GetLineSideForUpdate loads one line-side bucket with a row lock.
func (r *InventoryRepository) GetLineSideForUpdate(ctx context.Context, tx *gorm.DB, tenantID, warehouseID, materialID uint, batchNo string) (*domain.LineSideInventory, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var inv domain.LineSideInventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND warehouse_id = ? AND material_id = ? AND batch_no = ?", tenantID, warehouseID, materialID, batchNo).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListLineSideForUpdate loads the in-stock line-side buckets of one
// warehouse+material in FIFO order, rows locked.
func (r *InventoryRepository) ListLineSideForUpdate(ctx context.Context, tx *gorm.DB, tenantID, warehouseID, materialID uint) ([]domain.LineSideInventory, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var invs []domain.LineSideInventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND warehouse_id = ? AND material_id = ? AND status = ?", tenantID, warehouseID, materialID, domain.InventoryStatusInStock).
		Order("id ASC").
		Find(&invs).Error
	return invs, err
}

func (r *InventoryRepository) ListLineSide(ctx context.Context, warehouseID, materialID uint, skip, limit int) ([]domain.LineSideInventory, int64, error) {
	var invs []domain.LineSideInventory
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.LineSideInventory{})
	query = ApplyTenantScope(ctx, query)
	if warehouseID != 0 {
		query = query.Where("warehouse_id = ?", warehouseID)
	}
	if materialID != 0 {
		query = query.Where("material_id = ?", materialID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("id ASC").Find(&invs).Error
	return invs, total, err
}

// SumAvailableBulk totals availability per material for a batch of
// materials in one query. Materials without stock map to no entry.
func (r *InventoryRepository) SumAvailableBulk(ctx context.Context, materialIDs []uint) (map[uint]string, error) {
	type row struct {
		MaterialID uint
		Total      string
	}
	var rows []row
	query := r.db.WithContext(ctx).Model(&domain.MaterialBatch{}).
		Select("material_id, COALESCE(SUM(quantity - reserved_quantity), 0) AS total").
		Where("material_id IN ? AND status = ?", materialIDs, domain.InventoryStatusInStock).
		Group("material_id")
	query = ApplyTenantScope(ctx, query)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]string, len(rows))
	for _, r := range rows {
		result[r.MaterialID] = r.Total
	}
	return result, nil
}
