package repository

import (
	"context"
	"strings"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

func (r *MaterialRepository) Create(ctx context.Context, material *domain.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *MaterialRepository) Update(ctx context.Context, material *domain.Material) error {
	return r.db.WithContext(ctx).Save(material).Error
}

func (r *MaterialRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.Material{}, "id = ?", id).Error
}

func (r *MaterialRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Material, error) {
	var material domain.Material
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *MaterialRepository) GetByID(ctx context.Context, id uint) (*domain.Material, error) {
	var material domain.Material
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *MaterialRepository) GetByMainCode(ctx context.Context, mainCode string) (*domain.Material, error) {
	var material domain.Material
	query := r.db.WithContext(ctx).Where("main_code = ?", mainCode)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

// GetByIDs loads a batch of materials keyed by internal id.
func (r *MaterialRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Material, error) {
	var materials []domain.Material
	query := r.db.WithContext(ctx).Where("id IN ?", ids)
	query = ApplyTenantScope(ctx, query)
	if err := query.Find(&materials).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]*domain.Material, len(materials))
	for i := range materials {
		result[materials[i].ID] = &materials[i]
	}
	return result, nil
}

func (r *MaterialRepository) List(ctx context.Context, skip, limit int, search string, materialType domain.MaterialType) ([]domain.Material, int64, error) {
	var materials []domain.Material
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Material{})
	query = ApplyTenantScope(ctx, query)

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(main_code) LIKE ? OR LOWER(name) LIKE ?", searchPattern, searchPattern)
	}
	if materialType != "" {
		query = query.Where("material_type = ?", materialType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("main_code ASC").Find(&materials).Error
	return materials, total, err
}

// ListCursor pages through materials by ascending internal id for bulk
// consumers that outgrow offset pagination.
func (r *MaterialRepository) ListCursor(ctx context.Context, afterID uint, limit int) ([]domain.Material, error) {
	var materials []domain.Material
	query := r.db.WithContext(ctx).Where("id > ?", afterID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("id ASC").Limit(ClampPageSize(limit)).Find(&materials).Error
	return materials, err
}

func (r *MaterialRepository) ExistsByMainCode(ctx context.Context, mainCode string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Material{}).Where("main_code = ?", mainCode)
	query = ApplyTenantScope(ctx, query)
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *MaterialRepository) CreateAlias(ctx context.Context, alias *domain.MaterialAlias) error {
	return r.db.WithContext(ctx).Create(alias).Error
}

func (r *MaterialRepository) DeleteAlias(ctx context.Context, id uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	return query.Delete(&domain.MaterialAlias{}).Error
}

func (r *MaterialRepository) ListAliases(ctx context.Context, materialID uint) ([]domain.MaterialAlias, error) {
	var aliases []domain.MaterialAlias
	query := r.db.WithContext(ctx).Where("material_id = ?", materialID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("alias_kind ASC, alias_code ASC").Find(&aliases).Error
	return aliases, err
}

// ResolveAlias finds the materials known by an external code, optionally
// narrowed to one alias kind.
func (r *MaterialRepository) ResolveAlias(ctx context.Context, aliasCode string, kind domain.MaterialAliasKind) ([]domain.MaterialAlias, error) {
	var aliases []domain.MaterialAlias
	query := r.db.WithContext(ctx).Preload("Material").Where("alias_code = ?", aliasCode)
	if kind != "" {
		query = query.Where("alias_kind = ?", kind)
	}
	query = ApplyTenantScope(ctx, query)
	err := query.Find(&aliases).Error
	return aliases, err
}

// AliasExists reports whether the same kind+code pair is already bound
// for the owner.
func (r *MaterialRepository) AliasExists(ctx context.Context, materialID uint, kind domain.MaterialAliasKind, aliasCode, ownerCode string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.MaterialAlias{}).
		Where("material_id = ? AND alias_kind = ? AND alias_code = ? AND owner_code = ?", materialID, kind, aliasCode, ownerCode)
	query = ApplyTenantScope(ctx, query)
	err := query.Count(&count).Error
	return count > 0, err
}
