package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

func (r *BOMRepository) Create(ctx context.Context, bom *domain.BOM) error {
	return r.db.WithContext(ctx).Create(bom).Error
}

func (r *BOMRepository) Update(ctx context.Context, bom *domain.BOM) error {
	return r.db.WithContext(ctx).Save(bom).Error
}

func (r *BOMRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bom_id = ?", id).Delete(&domain.BOMItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.BOM{}, "id = ?", id).Error
	})
}

func (r *BOMRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.BOM, error) {
	var bom domain.BOM
	query := r.db.WithContext(ctx).Preload("Items").Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&bom).Error; err != nil {
		return nil, err
	}
	return &bom, nil
}

func (r *BOMRepository) GetByID(ctx context.Context, id uint) (*domain.BOM, error) {
	var bom domain.BOM
	query := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&bom).Error; err != nil {
		return nil, err
	}
	return &bom, nil
}

// GetApprovedByParent returns the approved BOM of a parent material.
// With multiple approved versions the newest one wins.
func (r *BOMRepository) GetApprovedByParent(ctx context.Context, parentMaterialID uint) (*domain.BOM, error) {
	var bom domain.BOM
	query := r.db.WithContext(ctx).Preload("Items").
		Where("parent_material_id = ? AND status = ?", parentMaterialID, domain.BOMStatusApproved)
	query = ApplyTenantScope(ctx, query)
	if err := query.Order("version DESC, id DESC").First(&bom).Error; err != nil {
		return nil, err
	}
	return &bom, nil
}

// GetApprovedByParents batch-loads approved BOMs for a set of parents.
// Parents without an approved BOM are simply absent from the map.
func (r *BOMRepository) GetApprovedByParents(ctx context.Context, parentMaterialIDs []uint) (map[uint]*domain.BOM, error) {
	var boms []domain.BOM
	query := r.db.WithContext(ctx).Preload("Items").
		Where("parent_material_id IN ? AND status = ?", parentMaterialIDs, domain.BOMStatusApproved)
	query = ApplyTenantScope(ctx, query)
	if err := query.Order("parent_material_id ASC, version DESC, id DESC").Find(&boms).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]*domain.BOM, len(boms))
	for i := range boms {
		if _, seen := result[boms[i].ParentMaterialID]; !seen {
			result[boms[i].ParentMaterialID] = &boms[i]
		}
	}
	return result, nil
}

func (r *BOMRepository) List(ctx context.Context, skip, limit int, parentMaterialID uint, status domain.BOMStatus) ([]domain.BOM, int64, error) {
	var boms []domain.BOM
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.BOM{})
	query = ApplyTenantScope(ctx, query)

	if parentMaterialID != 0 {
		query = query.Where("parent_material_id = ?", parentMaterialID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Items").Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&boms).Error
	return boms, total, err
}

// ListByComponent finds BOMs that reference a material as a component.
// Used by the save-time cycle check.
func (r *BOMRepository) ListByComponent(ctx context.Context, componentMaterialID uint) ([]domain.BOM, error) {
	var boms []domain.BOM
	query := r.db.WithContext(ctx).
		Joins("JOIN bom_items ON bom_items.bom_id = boms.id AND bom_items.deleted_at IS NULL").
		Where("bom_items.component_material_id = ?", componentMaterialID)
	query = ApplyTenantScopeWithAlias(ctx, query, "boms")
	err := query.Find(&boms).Error
	return boms, err
}

// ComponentEdges returns parent->component material id pairs across the
// tenant's non-rejected BOMs. Feeds the cycle check without loading
// whole documents.
func (r *BOMRepository) ComponentEdges(ctx context.Context) (map[uint][]uint, error) {
	type edge struct {
		ParentMaterialID    uint
		ComponentMaterialID uint
	}
	var edges []edge
	query := r.db.WithContext(ctx).Model(&domain.BOMItem{}).
		Select("boms.parent_material_id, bom_items.component_material_id").
		Joins("JOIN boms ON boms.id = bom_items.bom_id AND boms.deleted_at IS NULL").
		Where("boms.status <> ?", domain.BOMStatusRejected)
	query = ApplyTenantScopeWithAlias(ctx, query, "boms")
	if err := query.Scan(&edges).Error; err != nil {
		return nil, err
	}
	result := make(map[uint][]uint)
	for _, e := range edges {
		result[e.ParentMaterialID] = append(result[e.ParentMaterialID], e.ComponentMaterialID)
	}
	return result, nil
}
