package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"gorm.io/gorm"
)

// RelationRepository handles the append-only document relation graph.
type RelationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// Create appends one edge. There is no update or delete: corrections
// are new edges with kind reversal.
func (r *RelationRepository) Create(ctx context.Context, tx *gorm.DB, relation *domain.DocumentRelation) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(relation).Error
}

// Exists reports whether the exact edge is already recorded.
func (r *RelationRepository) Exists(ctx context.Context, tenantID uint, edge *domain.DocumentRelation) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.DocumentRelation{}).
		Where("tenant_id = ? AND source_type = ? AND source_id = ? AND target_type = ? AND target_id = ? AND kind = ?",
			tenantID, edge.SourceType, edge.SourceID, edge.TargetType, edge.TargetID, edge.Kind).
		Count(&count).Error
	return count > 0, err
}

// ListDownstream returns edges whose source is the given document.
func (r *RelationRepository) ListDownstream(ctx context.Context, tenantID uint, docType domain.DocumentType, docID uint) ([]domain.DocumentRelation, error) {
	var relations []domain.DocumentRelation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantID, docType, docID).
		Order("id ASC").
		Find(&relations).Error
	return relations, err
}

// ListUpstream returns edges whose target is the given document.
func (r *RelationRepository) ListUpstream(ctx context.Context, tenantID uint, docType domain.DocumentType, docID uint) ([]domain.DocumentRelation, error) {
	var relations []domain.DocumentRelation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND target_type = ? AND target_id = ?", tenantID, docType, docID).
		Order("id ASC").
		Find(&relations).Error
	return relations, err
}

// ListByTenant streams all edges of a tenant for graph traversals.
func (r *RelationRepository) ListByTenant(ctx context.Context, tenantID uint) ([]domain.DocumentRelation, error) {
	var relations []domain.DocumentRelation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&relations).Error
	return relations, err
}
