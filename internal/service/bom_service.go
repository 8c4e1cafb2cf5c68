package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExplodedRequirement is one leaf-level line of a BOM explosion. The
// quantity is per unit of the root parent, scrap already applied, and
// LeadTimeOffsetDays accumulates the lead times along the path.
type ExplodedRequirement struct {
	MaterialID         uint               `json:"-"`
	MaterialCode       string             `json:"materialCode"`
	SourceType         domain.MaterialSourceType `json:"sourceType"`
	Quantity           decimal.Decimal    `json:"quantity"`
	Level              int                `json:"level"`
	LeadTimeOffsetDays int                `json:"leadTimeOffsetDays"`
}

// BOMService manages bills of materials: review lifecycle, cycle
// checking and multi-level explosion.
type BOMService struct {
	repo         *repository.BOMRepository
	materialRepo *repository.MaterialRepository
	codeGen      *CodeGeneratorService
	planning     *config.PlanningConfig
	logger       *zap.Logger
}

// NewBOMService creates a new BOMService
func NewBOMService(
	repo *repository.BOMRepository,
	materialRepo *repository.MaterialRepository,
	codeGen *CodeGeneratorService,
	planning *config.PlanningConfig,
	logger *zap.Logger,
) *BOMService {
	return &BOMService{
		repo:         repo,
		materialRepo: materialRepo,
		codeGen:      codeGen,
		planning:     planning,
		logger:       logger,
	}
}

// Create validates a draft BOM and persists it. The cycle check runs at
// save time so approved data can never contain a loop.
func (s *BOMService) Create(ctx context.Context, req *domain.CreateBOMRequest) (*domain.BOM, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	parent, err := s.materialRepo.GetByUUID(ctx, req.ParentMaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "parent material")
	}
	if parent.SourceType == domain.SourceTypeBuy {
		return nil, domain.NewBusinessLogic("buy materials cannot carry a BOM")
	}

	items := make([]domain.BOMItem, 0, len(req.Items))
	componentIDs := make([]uint, 0, len(req.Items))
	seen := make(map[uint]bool)
	for i, line := range req.Items {
		component, err := s.materialRepo.GetByUUID(ctx, line.ComponentMaterialUUID)
		if err != nil {
			return nil, translateNotFound(err, fmt.Sprintf("component material (item %d)", i))
		}
		if component.ID == parent.ID {
			return nil, domain.NewComputationFailed(domain.ComputationFailureBOMCycle,
				"material cannot be a component of itself").WithDetail("material", parent.MainCode)
		}
		if seen[component.ID] {
			return nil, domain.NewValidationf("duplicate component %s", component.MainCode)
		}
		seen[component.ID] = true
		if !line.Quantity.IsPositive() {
			return nil, domain.NewValidationf("component %s quantity must be positive", component.MainCode)
		}
		if line.ScrapRate.IsNegative() || line.ScrapRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, domain.NewValidationf("component %s scrap rate must be in [0, 1)", component.MainCode)
		}

		unit := line.Unit
		if unit == "" {
			unit = component.BaseUnit
		}
		item := domain.BOMItem{
			ComponentMaterialID: component.ID,
			Quantity:            line.Quantity,
			ScrapRate:           line.ScrapRate,
			Unit:                unit,
			LeadTimeDays:        line.LeadTimeDays,
			OperationName:       line.OperationName,
			Level:               1,
			Sequence:            line.Sequence,
		}
		item.TenantID = user.TenantID
		items = append(items, item)
		componentIDs = append(componentIDs, component.ID)
	}

	if err := s.checkNoCycle(ctx, parent.ID, componentIDs); err != nil {
		return nil, err
	}

	code, err := s.codeGen.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: RuleCodeBOM})
	if err != nil {
		return nil, err
	}

	version := req.Version
	if version == "" {
		version = "A"
	}

	bom := &domain.BOM{
		Code:             code,
		ParentMaterialID: parent.ID,
		Version:          version,
		Status:           domain.BOMStatusDraft,
		Remark:           req.Remark,
		Items:            items,
	}
	bom.TenantID = user.TenantID
	bom.CreatedBy = user.UserID
	bom.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, bom); err != nil {
		return nil, err
	}

	s.logger.Info("bom created",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("code", bom.Code),
		zap.String("parent", parent.MainCode),
		zap.Int("components", len(items)))

	return bom, nil
}

func (s *BOMService) Get(ctx context.Context, id uuid.UUID) (*domain.BOM, error) {
	bom, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "bom")
	}
	return bom, nil
}

func (s *BOMService) List(ctx context.Context, skip, limit int, parentMaterialUUID uuid.UUID, status domain.BOMStatus) ([]domain.BOM, int64, error) {
	var parentID uint
	if parentMaterialUUID != uuid.Nil {
		parent, err := s.materialRepo.GetByUUID(ctx, parentMaterialUUID)
		if err != nil {
			return nil, 0, translateNotFound(err, "parent material")
		}
		parentID = parent.ID
	}
	return s.repo.List(ctx, skip, limit, parentID, status)
}

// Submit moves a draft or rejected BOM to pending review.
func (s *BOMService) Submit(ctx context.Context, id uuid.UUID) (*domain.BOM, error) {
	return s.transition(ctx, id, "submit", func(bom *domain.BOM) error {
		if bom.Status != domain.BOMStatusDraft && bom.Status != domain.BOMStatusRejected {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot submit bom in status %s", bom.Status))
		}
		bom.Status = domain.BOMStatusPendingReview
		return nil
	}, "")
}

// Approve marks a pending BOM approved, making it eligible for
// computation and backflush.
func (s *BOMService) Approve(ctx context.Context, id uuid.UUID, remark string) (*domain.BOM, error) {
	return s.transition(ctx, id, "approve", func(bom *domain.BOM) error {
		if bom.Status != domain.BOMStatusPendingReview {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot approve bom in status %s", bom.Status))
		}
		bom.Status = domain.BOMStatusApproved
		return nil
	}, remark)
}

// Reject sends a pending BOM back with a remark.
func (s *BOMService) Reject(ctx context.Context, id uuid.UUID, remark string) (*domain.BOM, error) {
	return s.transition(ctx, id, "reject", func(bom *domain.BOM) error {
		if bom.Status != domain.BOMStatusPendingReview {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot reject bom in status %s", bom.Status))
		}
		bom.Status = domain.BOMStatusRejected
		return nil
	}, remark)
}

func (s *BOMService) transition(ctx context.Context, id uuid.UUID, action string, apply func(*domain.BOM) error, remark string) (*domain.BOM, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	bom, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "bom")
	}

	if err := apply(bom); err != nil {
		return nil, err
	}

	bom.ReviewRemarks = append(bom.ReviewRemarks, domain.ReviewRemark{
		Action:     action,
		Remark:     remark,
		ActorID:    user.UserID,
		ActorName:  user.DisplayName,
		RecordedAt: time.Now(),
	})
	bom.UpdatedBy = user.UserID
	bom.UpdatedByName = user.DisplayName

	if err := s.repo.Update(ctx, bom); err != nil {
		return nil, err
	}

	s.logger.Info("bom transitioned",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("code", bom.Code),
		zap.String("action", action),
		zap.String("status", string(bom.Status)))

	return bom, nil
}

// Delete removes a BOM that never reached approval.
func (s *BOMService) Delete(ctx context.Context, id uuid.UUID) error {
	bom, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return translateNotFound(err, "bom")
	}
	if bom.Status == domain.BOMStatusApproved {
		return domain.NewBusinessLogic("approved boms cannot be deleted")
	}
	return s.repo.Delete(ctx, bom.ID)
}

// checkNoCycle verifies that adding parent->components edges keeps the
// tenant's BOM graph acyclic. BFS from each new component back toward
// the parent.
func (s *BOMService) checkNoCycle(ctx context.Context, parentID uint, componentIDs []uint) error {
	edges, err := s.repo.ComponentEdges(ctx)
	if err != nil {
		return err
	}
	edges[parentID] = append(edges[parentID], componentIDs...)

	visited := map[uint]bool{}
	queue := append([]uint{}, componentIDs...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == parentID {
			return domain.NewComputationFailed(domain.ComputationFailureBOMCycle,
				"bom would introduce a component cycle")
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		queue = append(queue, edges[current]...)
	}
	return nil
}

// Explode resolves the full component tree of a material for one unit
// of demand, scaled by quantity. Phantom components are flattened: the
// phantom itself never appears in the result, its children do, with
// quantities multiplied through and no lead time contribution.
func (s *BOMService) Explode(ctx context.Context, materialID uuid.UUID, quantity decimal.Decimal) ([]ExplodedRequirement, error) {
	material, err := s.materialRepo.GetByUUID(ctx, materialID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	if !quantity.IsPositive() {
		return nil, domain.NewValidation("explosion quantity must be positive")
	}
	return s.explode(ctx, material, quantity)
}

func (s *BOMService) explode(ctx context.Context, material *domain.Material, quantity decimal.Decimal) ([]ExplodedRequirement, error) {
	acc := map[uint]*ExplodedRequirement{}
	err := s.explodeInto(ctx, material, quantity, 1, 0, acc)
	if err != nil {
		return nil, err
	}
	result := make([]ExplodedRequirement, 0, len(acc))
	for _, req := range acc {
		result = append(result, *req)
	}
	return result, nil
}

func (s *BOMService) explodeInto(ctx context.Context, material *domain.Material, quantity decimal.Decimal, level, leadOffset int, acc map[uint]*ExplodedRequirement) error {
	if level > s.planning.MaxBOMDepth {
		return domain.NewComputationFailed(domain.ComputationFailureBOMCycle,
			"bom explosion exceeded maximum depth").WithDetail("material", material.MainCode)
	}

	bom, err := s.repo.GetApprovedByParent(ctx, material.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Leaf: no approved BOM means the material itself is procured
			// or produced without components.
			return nil
		}
		return err
	}

	one := decimal.NewFromInt(1)
	for i := range bom.Items {
		item := &bom.Items[i]
		component, err := s.materialRepo.GetByID(ctx, item.ComponentMaterialID)
		if err != nil {
			return translateNotFound(err, "component material")
		}

		// Gross-up by scrap: need qty/(1-scrap) of input per unit kept.
		required := quantity.Mul(item.Quantity)
		if item.ScrapRate.IsPositive() {
			required = required.Div(one.Sub(item.ScrapRate))
		}
		childOffset := leadOffset + item.LeadTimeDays

		if component.SourceType == domain.SourceTypePhantom {
			// Phantoms dissolve into their children at the same level
			// and carry no lead time of their own.
			if err := s.explodeInto(ctx, component, required, level+1, childOffset, acc); err != nil {
				return err
			}
			continue
		}

		if existing, ok := acc[component.ID]; ok {
			existing.Quantity = existing.Quantity.Add(required)
			if level > existing.Level {
				existing.Level = level
			}
			if childOffset > existing.LeadTimeOffsetDays {
				existing.LeadTimeOffsetDays = childOffset
			}
		} else {
			acc[component.ID] = &ExplodedRequirement{
				MaterialID:         component.ID,
				MaterialCode:       component.MainCode,
				SourceType:         component.SourceType,
				Quantity:           required,
				Level:              level,
				LeadTimeOffsetDays: childOffset,
			}
		}

		// Semi-finished Make components explode further so raw demand
		// aggregates to the leaves.
		if component.SourceType == domain.SourceTypeMake || component.SourceType == domain.SourceTypeConfigure {
			if err := s.explodeInto(ctx, component, required, level+1, childOffset, acc); err != nil {
				return err
			}
		}
	}
	return nil
}
