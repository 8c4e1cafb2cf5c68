package repository

import (
	"context"
	"time"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComputationRepository struct {
	db *gorm.DB
}

func NewComputationRepository(db *gorm.DB) *ComputationRepository {
	return &ComputationRepository{db: db}
}

// DB exposes the handle so the computation service can run the whole
// pipeline in one transaction.
func (r *ComputationRepository) DB() *gorm.DB {
	return r.db
}

func (r *ComputationRepository) Create(ctx context.Context, tx *gorm.DB, computation *domain.DemandComputation) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(computation).Error
}

func (r *ComputationRepository) Update(ctx context.Context, tx *gorm.DB, computation *domain.DemandComputation) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Save(computation).Error
}

func (r *ComputationRepository) CreateItems(ctx context.Context, tx *gorm.DB, items []domain.DemandComputationItem) error {
	if len(items) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(&items).Error
}

func (r *ComputationRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.DemandComputation, error) {
	var computation domain.DemandComputation
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&computation).Error; err != nil {
		return nil, err
	}
	return &computation, nil
}

func (r *ComputationRepository) GetByID(ctx context.Context, id uint) (*domain.DemandComputation, error) {
	var computation domain.DemandComputation
	query := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&computation).Error; err != nil {
		return nil, err
	}
	return &computation, nil
}

func (r *ComputationRepository) List(ctx context.Context, skip, limit int, computationType domain.ComputationType, status domain.ComputationStatus) ([]domain.DemandComputation, int64, error) {
	var computations []domain.DemandComputation
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.DemandComputation{})
	query = ApplyTenantScope(ctx, query)

	if computationType != "" {
		query = query.Where("computation_type = ?", computationType)
	}
	if status != "" {
		query = query.Where("computation_status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&computations).Error
	return computations, total, err
}

// ExpireStaleRunning marks computations stuck in running longer than
// the cutoff as failed. Crash recovery only: a live run holds its
// transaction, so its row is not yet visible as running.
func (r *ComputationRepository) ExpireStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.DemandComputation{}).
		Where("computation_status = ? AND started_at < ?", domain.ComputationStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"computation_status": domain.ComputationStatusFailed,
			"error_message":      "computation expired: exceeded maximum running time",
		})
	return result.RowsAffected, result.Error
}

// PurgeTenant physically removes all computation data of one tenant.
// Soft delete is bypassed on purpose.
func (r *ComputationRepository) PurgeTenant(ctx context.Context, tenantID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.DemandComputationItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("tenant_id = ?", tenantID).Delete(&domain.DemandComputation{}).Error
	})
}
