package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimingRepository handles document node timings.
type TimingRepository struct {
	db *gorm.DB
}

func NewTimingRepository(db *gorm.DB) *TimingRepository {
	return &TimingRepository{db: db}
}

func (r *TimingRepository) Create(ctx context.Context, timing *domain.DocumentNodeTiming) error {
	return r.db.WithContext(ctx).Create(timing).Error
}

func (r *TimingRepository) Update(ctx context.Context, timing *domain.DocumentNodeTiming) error {
	return r.db.WithContext(ctx).Save(timing).Error
}

// GetForUpdate loads one timing node with a row lock so start/end are
// idempotent under concurrent calls.
func (r *TimingRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, docType domain.DocumentType, docID uint, nodeCode string) (*domain.DocumentNodeTiming, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var timing domain.DocumentNodeTiming
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND document_type = ? AND document_id = ? AND node_code = ?", tenantID, docType, docID, nodeCode).
		First(&timing).Error
	if err != nil {
		return nil, err
	}
	return &timing, nil
}

func (r *TimingRepository) DB() *gorm.DB {
	return r.db
}

// ListByDocument returns all timing nodes of one document.
func (r *TimingRepository) ListByDocument(ctx context.Context, tenantID uint, docType domain.DocumentType, docID uint) ([]domain.DocumentNodeTiming, error) {
	var timings []domain.DocumentNodeTiming
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ? AND document_id = ?", tenantID, docType, docID).
		Order("id ASC").
		Find(&timings).Error
	return timings, err
}
