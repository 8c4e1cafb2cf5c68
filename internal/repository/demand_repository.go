package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DemandRepository struct {
	db *gorm.DB
}

func NewDemandRepository(db *gorm.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

func (r *DemandRepository) Create(ctx context.Context, demand *domain.Demand) error {
	return r.db.WithContext(ctx).Create(demand).Error
}

func (r *DemandRepository) Update(ctx context.Context, demand *domain.Demand) error {
	return r.db.WithContext(ctx).Save(demand).Error
}

func (r *DemandRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("demand_id = ?", id).Delete(&domain.DemandItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Demand{}, "id = ?", id).Error
	})
}

func (r *DemandRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Demand, error) {
	var demand domain.Demand
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&demand).Error; err != nil {
		return nil, err
	}
	return &demand, nil
}

// GetByUUIDs loads demands with items for a computation run. Missing
// uuids are detected by the caller comparing lengths.
func (r *DemandRepository) GetByUUIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Demand, error) {
	var demands []domain.Demand
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid IN ?", ids)
	query = ApplyTenantScope(ctx, query)
	err := query.Find(&demands).Error
	return demands, err
}

// GetForUpdate locks demand rows for the push-to-computation marking so
// two concurrent runs cannot claim the same demand.
func (r *DemandRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, ids []uuid.UUID) ([]domain.Demand, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var demands []domain.Demand
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND uuid IN ?", tenantID, ids).
		Find(&demands).Error
	return demands, err
}

func (r *DemandRepository) List(ctx context.Context, skip, limit int, demandType domain.DemandType, reviewStatus domain.ReviewStatus, pushed *bool) ([]domain.Demand, int64, error) {
	var demands []domain.Demand
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Demand{})
	query = ApplyTenantScope(ctx, query)

	if demandType != "" {
		query = query.Where("demand_type = ?", demandType)
	}
	if reviewStatus != "" {
		query = query.Where("review_status = ?", reviewStatus)
	}
	if pushed != nil {
		query = query.Where("pushed_to_computation = ?", *pushed)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Items").Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&demands).Error
	return demands, total, err
}

// MarkPushed flags demands as consumed by a computation inside the
// run's transaction.
func (r *DemandRepository) MarkPushed(ctx context.Context, tx *gorm.DB, demandIDs []uint, computationID uint) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Model(&domain.Demand{}).
		Where("id IN ?", demandIDs).
		Updates(map[string]interface{}{
			"pushed_to_computation": true,
			"computation_id":        computationID,
		}).Error
}

// UpdateItemDelivery persists delivered/remaining quantities and the
// derived delivery status of one item.
func (r *DemandRepository) UpdateItemDelivery(ctx context.Context, item *domain.DemandItem) error {
	return r.db.WithContext(ctx).Model(item).
		Updates(map[string]interface{}{
			"delivered_quantity": item.DeliveredQuantity,
			"remaining_quantity": item.RemainingQuantity,
			"delivery_status":    item.DeliveryStatus,
		}).Error
}

func (r *DemandRepository) GetItemByUUID(ctx context.Context, id uuid.UUID) (*domain.DemandItem, error) {
	var item domain.DemandItem
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
