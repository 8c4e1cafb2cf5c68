package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) DB() *gorm.DB {
	return r.db
}

func (r *PurchaseRepository) CreateRequisition(ctx context.Context, tx *gorm.DB, req *domain.PurchaseRequisition) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(req).Error
}

func (r *PurchaseRepository) UpdateRequisition(ctx context.Context, req *domain.PurchaseRequisition) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *PurchaseRepository) GetRequisitionByUUID(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error) {
	var req domain.PurchaseRequisition
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *PurchaseRepository) ListRequisitions(ctx context.Context, skip, limit int, status domain.PurchaseDocStatus) ([]domain.PurchaseRequisition, int64, error) {
	var reqs []domain.PurchaseRequisition
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.PurchaseRequisition{})
	query = ApplyTenantScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Items").Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&reqs).Error
	return reqs, total, err
}

func (r *PurchaseRepository) CreateOrder(ctx context.Context, tx *gorm.DB, order *domain.PurchaseOrder) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(order).Error
}

func (r *PurchaseRepository) UpdateOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *PurchaseRepository) GetOrderByUUID(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *PurchaseRepository) ListOrders(ctx context.Context, skip, limit int, status domain.PurchaseDocStatus) ([]domain.PurchaseOrder, int64, error) {
	var orders []domain.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.PurchaseOrder{})
	query = ApplyTenantScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Items").Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&orders).Error
	return orders, total, err
}
