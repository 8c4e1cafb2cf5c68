package service

import (
	"context"
	"errors"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaterialService manages the material master and its aliases.
type MaterialService struct {
	repo    *repository.MaterialRepository
	codeGen *CodeGeneratorService
	logger  *zap.Logger
}

// NewMaterialService creates a new MaterialService
func NewMaterialService(repo *repository.MaterialRepository, codeGen *CodeGeneratorService, logger *zap.Logger) *MaterialService {
	return &MaterialService{
		repo:    repo,
		codeGen: codeGen,
		logger:  logger,
	}
}

// Create validates and persists a material. The main code is generated
// from the MATERIAL rule when the request leaves it empty.
func (s *MaterialService) Create(ctx context.Context, req *domain.CreateMaterialRequest) (*domain.Material, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	if !req.MaterialType.IsValid() {
		return nil, domain.NewValidationf("invalid material type: %s", req.MaterialType)
	}
	if !req.SourceType.IsValid() {
		return nil, domain.NewValidationf("invalid source type: %s", req.SourceType)
	}
	if err := req.SourceConfig.Validate(req.SourceType); err != nil {
		return nil, err
	}
	if req.BatchManaged && req.SerialManaged {
		return nil, domain.NewValidation("material cannot be both batch managed and serial managed")
	}

	mainCode := req.MainCode
	if mainCode == "" {
		code, err := s.codeGen.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: RuleCodeMaterial})
		if err != nil {
			return nil, err
		}
		mainCode = code
	} else {
		exists, err := s.repo.ExistsByMainCode(ctx, mainCode)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.NewBusinessLogic("material code already exists: " + mainCode)
		}
	}

	precision := 2
	if req.UnitPrecision != nil {
		precision = *req.UnitPrecision
	}

	material := &domain.Material{
		MainCode:       mainCode,
		Name:           req.Name,
		MaterialType:   req.MaterialType,
		BaseUnit:       req.BaseUnit,
		UnitPrecision:  precision,
		BatchManaged:   req.BatchManaged,
		SerialManaged:  req.SerialManaged,
		VariantManaged: req.VariantManaged,
		BatchRuleCode:  req.BatchRuleCode,
		SerialRuleCode: req.SerialRuleCode,
		SourceType:     req.SourceType,
		SourceConfig:   req.SourceConfig,
		SafetyStock:    req.SafetyStock,
		ReorderPoint:   req.ReorderPoint,
		LeadTimeDays:   req.LeadTimeDays,
	}
	material.TenantID = user.TenantID
	material.CreatedBy = user.UserID
	material.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, material); err != nil {
		return nil, err
	}

	s.logger.Info("material created",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("main_code", material.MainCode),
		zap.String("source_type", string(material.SourceType)))

	return material, nil
}

// CreateBulk imports many materials. Rows succeed or fail
// independently; the result carries per-row errors.
func (s *MaterialService) CreateBulk(ctx context.Context, reqs []domain.CreateMaterialRequest) (*domain.BatchResult, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrNoTenant
	}

	result := &domain.BatchResult{Errors: []domain.BatchError{}}
	for i := range reqs {
		material, err := s.Create(ctx, &reqs[i])
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, batchError(i, err))
			continue
		}
		result.SuccessCount++
		result.UUIDs = append(result.UUIDs, material.UUID)
	}
	return result, nil
}

// UpdateBulk applies many material updates with per-row errors.
func (s *MaterialService) UpdateBulk(ctx context.Context, reqs []domain.BulkUpdateMaterialRequest) (*domain.BatchResult, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrNoTenant
	}

	result := &domain.BatchResult{Errors: []domain.BatchError{}}
	for i := range reqs {
		material, err := s.Update(ctx, reqs[i].MaterialUUID, &reqs[i].Update)
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, batchError(i, err))
			continue
		}
		result.SuccessCount++
		result.UUIDs = append(result.UUIDs, material.UUID)
	}
	return result, nil
}

// DeleteBulk removes many materials with per-row errors.
func (s *MaterialService) DeleteBulk(ctx context.Context, ids []uuid.UUID) (*domain.BatchResult, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrNoTenant
	}

	result := &domain.BatchResult{Errors: []domain.BatchError{}}
	for i, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, batchError(i, err))
			continue
		}
		result.SuccessCount++
		result.UUIDs = append(result.UUIDs, id)
	}
	return result, nil
}

// Export streams materials in fixed-size pages keyed by internal id,
// for consumers that outgrow offset pagination.
func (s *MaterialService) Export(ctx context.Context, afterID uint, limit int) (*domain.CursorPage, error) {
	materials, err := s.repo.ListCursor(ctx, afterID, limit)
	if err != nil {
		return nil, err
	}

	page := &domain.CursorPage{Data: materials}
	if len(materials) > 0 {
		page.NextCursor = materials[len(materials)-1].ID
		page.HasMore = len(materials) == repository.ClampPageSize(limit)
	}
	return page, nil
}

// Update changes mutable fields. MainCode, MaterialType and SourceType
// are immutable once documents may reference them.
func (s *MaterialService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateMaterialRequest) (*domain.Material, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	material, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}

	if err := req.SourceConfig.Validate(material.SourceType); err != nil {
		return nil, err
	}

	material.Name = req.Name
	material.BaseUnit = req.BaseUnit
	material.SourceConfig = req.SourceConfig
	material.SafetyStock = req.SafetyStock
	material.ReorderPoint = req.ReorderPoint
	material.LeadTimeDays = req.LeadTimeDays
	material.UpdatedBy = user.UserID
	material.UpdatedByName = user.DisplayName

	if err := s.repo.Update(ctx, material); err != nil {
		return nil, err
	}

	return material, nil
}

func (s *MaterialService) Get(ctx context.Context, id uuid.UUID) (*domain.Material, error) {
	material, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	return material, nil
}

func (s *MaterialService) GetByMainCode(ctx context.Context, mainCode string) (*domain.Material, error) {
	material, err := s.repo.GetByMainCode(ctx, mainCode)
	if err != nil {
		return nil, translateNotFound(err, "material "+mainCode)
	}
	return material, nil
}

func (s *MaterialService) List(ctx context.Context, skip, limit int, search string, materialType domain.MaterialType) ([]domain.Material, int64, error) {
	if materialType != "" && !materialType.IsValid() {
		return nil, 0, domain.NewValidationf("invalid material type: %s", materialType)
	}
	return s.repo.List(ctx, skip, limit, search, materialType)
}

func (s *MaterialService) Delete(ctx context.Context, id uuid.UUID) error {
	material, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return translateNotFound(err, "material")
	}
	return s.repo.Delete(ctx, material.ID)
}

// AddAlias registers an external code for a material. Duplicate
// kind+code+owner bindings are rejected.
func (s *MaterialService) AddAlias(ctx context.Context, materialID uuid.UUID, req *domain.CreateMaterialAliasRequest) (*domain.MaterialAlias, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	material, err := s.repo.GetByUUID(ctx, materialID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}

	exists, err := s.repo.AliasExists(ctx, material.ID, req.AliasKind, req.AliasCode, req.OwnerCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewBusinessLogic("alias already registered for this material")
	}

	alias := &domain.MaterialAlias{
		MaterialID: material.ID,
		AliasKind:  req.AliasKind,
		AliasCode:  req.AliasCode,
		OwnerCode:  req.OwnerCode,
		OwnerName:  req.OwnerName,
	}
	alias.TenantID = user.TenantID
	alias.CreatedBy = user.UserID
	alias.CreatedByName = user.DisplayName

	if err := s.repo.CreateAlias(ctx, alias); err != nil {
		return nil, err
	}

	return alias, nil
}

func (s *MaterialService) ListAliases(ctx context.Context, materialID uuid.UUID) ([]domain.MaterialAlias, error) {
	material, err := s.repo.GetByUUID(ctx, materialID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	return s.repo.ListAliases(ctx, material.ID)
}

func (s *MaterialService) RemoveAlias(ctx context.Context, aliasID uuid.UUID) error {
	return s.repo.DeleteAlias(ctx, aliasID)
}

// ResolveAlias maps an external code to the materials it names. An
// alias code may legitimately resolve to several materials across
// different owners.
func (s *MaterialService) ResolveAlias(ctx context.Context, aliasCode string, kind domain.MaterialAliasKind) ([]domain.MaterialAlias, error) {
	aliases, err := s.repo.ResolveAlias(ctx, aliasCode, kind)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if len(aliases) == 0 {
		return nil, domain.NewNotFound("alias " + aliasCode)
	}
	return aliases, nil
}
