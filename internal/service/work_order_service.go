package service

import (
	"context"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allowedTransitions is the work order state machine. Freeze is a flag
// on top of it: while frozen every transition is rejected.
var allowedTransitions = map[domain.WorkOrderStatus][]domain.WorkOrderStatus{
	domain.WorkOrderStatusDraft:      {domain.WorkOrderStatusReleased, domain.WorkOrderStatusCancelled},
	domain.WorkOrderStatusReleased:   {domain.WorkOrderStatusInProgress, domain.WorkOrderStatusCancelled},
	domain.WorkOrderStatusInProgress: {domain.WorkOrderStatusCompleted, domain.WorkOrderStatusCancelled},
}

func transitionAllowed(from, to domain.WorkOrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WorkOrderService manages production and outsource work orders:
// lifecycle, freeze, reporting with backflush, scrap and the
// generation of orders from computation results.
type WorkOrderService struct {
	repo            *repository.WorkOrderRepository
	materialRepo    *repository.MaterialRepository
	computationRepo *repository.ComputationRepository
	boms            *BOMService
	inventory       *InventoryService
	codeGen         *CodeGeneratorService
	relations       *RelationService
	logger          *zap.Logger
}

// NewWorkOrderService creates a new WorkOrderService
func NewWorkOrderService(
	repo *repository.WorkOrderRepository,
	materialRepo *repository.MaterialRepository,
	computationRepo *repository.ComputationRepository,
	boms *BOMService,
	inventory *InventoryService,
	codeGen *CodeGeneratorService,
	relations *RelationService,
	logger *zap.Logger,
) *WorkOrderService {
	return &WorkOrderService{
		repo:            repo,
		materialRepo:    materialRepo,
		computationRepo: computationRepo,
		boms:            boms,
		inventory:       inventory,
		codeGen:         codeGen,
		relations:       relations,
		logger:          logger,
	}
}

// Create persists one draft work order for a Make or Configure product.
func (s *WorkOrderService) Create(ctx context.Context, req *domain.CreateWorkOrderRequest) (*domain.WorkOrder, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	order, err := s.buildWorkOrder(ctx, user, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, nil, order); err != nil {
		return nil, err
	}

	s.logger.Info("work order created",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("code", order.Code),
		zap.String("product", order.ProductCode))

	return order, nil
}

// CreateBulk creates many draft work orders, tolerating per-row
// failures. Each row succeeds or fails independently.
func (s *WorkOrderService) CreateBulk(ctx context.Context, reqs []domain.CreateWorkOrderRequest) (*domain.BatchResult, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, ErrNoTenant
	}

	result := &domain.BatchResult{Errors: []domain.BatchError{}}
	for i := range reqs {
		order, err := s.Create(ctx, &reqs[i])
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, batchError(i, err))
			continue
		}
		result.SuccessCount++
		result.UUIDs = append(result.UUIDs, order.UUID)
	}
	return result, nil
}

func (s *WorkOrderService) buildWorkOrder(ctx context.Context, user *auth.UserContext, req *domain.CreateWorkOrderRequest) (*domain.WorkOrder, error) {
	product, err := s.materialRepo.GetByUUID(ctx, req.ProductUUID)
	if err != nil {
		return nil, translateNotFound(err, "product material")
	}
	if product.SourceType != domain.SourceTypeMake && product.SourceType != domain.SourceTypeConfigure {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("material %s with source type %s cannot be produced in-house", product.MainCode, product.SourceType))
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("work order quantity must be positive")
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.IsValid() {
		return nil, domain.NewValidationf("invalid priority: %s", priority)
	}

	code, err := s.codeGen.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: RuleCodeWorkOrder})
	if err != nil {
		return nil, err
	}

	order := &domain.WorkOrder{
		Code:             code,
		ProductID:        product.ID,
		ProductCode:      product.MainCode,
		Quantity:         req.Quantity,
		Priority:         priority,
		Status:           domain.WorkOrderStatusDraft,
		PlannedStartDate: req.PlannedStartDate,
		PlannedEndDate:   req.PlannedEndDate,
		Remark:           req.Remark,
	}
	order.TenantID = user.TenantID
	order.CreatedBy = user.UserID
	order.CreatedByName = user.DisplayName
	return order, nil
}

func (s *WorkOrderService) Get(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	order, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "work order")
	}
	return order, nil
}

func (s *WorkOrderService) List(ctx context.Context, skip, limit int, status domain.WorkOrderStatus) ([]domain.WorkOrder, int64, error) {
	return s.repo.List(ctx, skip, limit, status, 0)
}

// Transition moves a work order along the state machine under a row
// lock, stamping actual dates on start and completion.
func (s *WorkOrderService) Transition(ctx context.Context, id uuid.UUID, target domain.WorkOrderStatus) (*domain.WorkOrder, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	var result *domain.WorkOrder
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "work order")
		}
		if order.IsFrozen {
			return domain.NewBusinessLogic("work order is frozen: " + order.FreezeReason)
		}
		if !transitionAllowed(order.Status, target) {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot transition work order from %s to %s", order.Status, target))
		}

		now := time.Now()
		order.Status = target
		switch target {
		case domain.WorkOrderStatusInProgress:
			if order.ActualStartDate == nil {
				order.ActualStartDate = &now
			}
		case domain.WorkOrderStatusCompleted:
			order.ActualEndDate = &now
		}
		order.UpdatedBy = user.UserID
		order.UpdatedByName = user.DisplayName

		if err := tx.Save(order).Error; err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order transitioned",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("code", result.Code),
		zap.String("status", string(result.Status)))

	return result, nil
}

// Freeze blocks all transitions on a work order until unfrozen.
func (s *WorkOrderService) Freeze(ctx context.Context, id uuid.UUID, reason string) (*domain.WorkOrder, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	var result *domain.WorkOrder
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "work order")
		}
		if order.IsFrozen {
			return domain.NewBusinessLogic("work order is already frozen")
		}
		if order.Status == domain.WorkOrderStatusCompleted || order.Status == domain.WorkOrderStatusCancelled {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot freeze work order in status %s", order.Status))
		}

		now := time.Now()
		order.IsFrozen = true
		order.FreezeReason = reason
		order.FrozenBy = user.UserID
		order.FrozenAt = &now
		order.UpdatedBy = user.UserID
		order.UpdatedByName = user.DisplayName

		if err := tx.Save(order).Error; err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unfreeze lifts the freeze; the order resumes in its prior status.
func (s *WorkOrderService) Unfreeze(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	var result *domain.WorkOrder
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "work order")
		}
		if !order.IsFrozen {
			return domain.NewBusinessLogic("work order is not frozen")
		}

		order.IsFrozen = false
		order.FreezeReason = ""
		order.FrozenBy = ""
		order.FrozenAt = nil
		order.UpdatedBy = user.UserID
		order.UpdatedByName = user.DisplayName

		if err := tx.Save(order).Error; err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Report posts a production report. With backflush enabled, component
// stock is consumed FIFO through the product's approved BOM and the
// finished quantity is received into the main warehouse, all in one
// transaction.
func (s *WorkOrderService) Report(ctx context.Context, id uuid.UUID, req *domain.ReportWorkRequest) (*domain.WorkOrderReport, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.ReportQuantity.IsPositive() {
		return nil, domain.NewValidation("report quantity must be positive")
	}
	qualified := req.QualifiedQuantity
	unqualified := req.UnqualifiedQuantity
	if qualified.IsZero() && unqualified.IsZero() {
		qualified = req.ReportQuantity
	}
	if !qualified.Add(unqualified).Equal(req.ReportQuantity) {
		return nil, domain.NewValidation("qualified plus unqualified must equal the report quantity")
	}

	var report *domain.WorkOrderReport
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "work order")
		}
		if order.IsFrozen {
			return domain.NewBusinessLogic("work order is frozen: " + order.FreezeReason)
		}
		if order.Status != domain.WorkOrderStatusInProgress {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot report on work order in status %s", order.Status))
		}
		if order.CompletedQuantity.Add(req.ReportQuantity).GreaterThan(order.Quantity) {
			return domain.NewBusinessLogic("report would exceed the work order quantity")
		}

		product, err := s.materialRepo.GetByID(ctx, order.ProductID)
		if err != nil {
			return translateNotFound(err, "product material")
		}

		if req.Backflush {
			exploded, err := s.boms.explode(ctx, product, qualified)
			if err != nil {
				return err
			}
			for _, dep := range exploded {
				// Only direct consumables leave stock; further Make
				// levels are covered by their own work orders.
				if dep.Level != 1 {
					continue
				}
				component, err := s.materialRepo.GetByID(ctx, dep.MaterialID)
				if err != nil {
					return translateNotFound(err, "component material")
				}
				if err := s.inventory.DecreaseTx(ctx, tx, component, "", dep.Quantity); err != nil {
					return err
				}
			}
			// Receive the qualified output into the main warehouse.
			if qualified.IsPositive() {
				if err := s.inventory.IncreaseTx(ctx, tx, product, "", qualified); err != nil {
					return err
				}
			}
		}

		order.CompletedQuantity = order.CompletedQuantity.Add(req.ReportQuantity)
		order.QualifiedQuantity = order.QualifiedQuantity.Add(qualified)
		order.UnqualifiedQuantity = order.UnqualifiedQuantity.Add(unqualified)
		order.UpdatedBy = user.UserID
		order.UpdatedByName = user.DisplayName
		if err := tx.Save(order).Error; err != nil {
			return err
		}

		report = &domain.WorkOrderReport{
			WorkOrderID:         order.ID,
			ReportQuantity:      req.ReportQuantity,
			QualifiedQuantity:   qualified,
			UnqualifiedQuantity: unqualified,
			Backflushed:         req.Backflush,
			ReportedAt:          time.Now(),
			Remark:              req.Remark,
		}
		report.TenantID = user.TenantID
		report.CreatedBy = user.UserID
		report.CreatedByName = user.DisplayName
		return s.repo.CreateReport(ctx, tx, report)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order reported",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("quantity", req.ReportQuantity.String()),
		zap.Bool("backflush", req.Backflush))

	return report, nil
}


// RecordScrap files a scrap or defect record against a work order.
// Let-through disposition needs explicit approval afterwards.
func (s *WorkOrderService) RecordScrap(ctx context.Context, id uuid.UUID, req *domain.ScrapRequest) (*domain.ScrapRecord, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("scrap quantity must be positive")
	}

	order, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "work order")
	}
	if order.Status != domain.WorkOrderStatusInProgress {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("cannot record scrap on work order in status %s", order.Status))
	}

	record := &domain.ScrapRecord{
		WorkOrderID: order.ID,
		MaterialID:  order.ProductID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		DefectCode:  req.DefectCode,
		Status:      domain.ScrapStatusPending,
		RecordedAt:  time.Now(),
	}
	record.TenantID = user.TenantID
	record.CreatedBy = user.UserID
	record.CreatedByName = user.DisplayName

	if err := s.repo.CreateScrapRecord(ctx, nil, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ReviewScrap approves, rejects or lets a pending scrap record through.
func (s *WorkOrderService) ReviewScrap(ctx context.Context, scrapID uuid.UUID, target domain.ScrapRecordStatus) (*domain.ScrapRecord, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if target != domain.ScrapStatusApproved && target != domain.ScrapStatusRejected && target != domain.ScrapStatusLetThrough {
		return nil, domain.NewValidationf("invalid scrap disposition: %s", target)
	}

	record, err := s.repo.GetScrapRecordByUUID(ctx, scrapID)
	if err != nil {
		return nil, translateNotFound(err, "scrap record")
	}
	if record.Status != domain.ScrapStatusPending {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("scrap record already dispositioned as %s", record.Status))
	}

	record.Status = target
	record.UpdatedBy = user.UserID
	record.UpdatedByName = user.DisplayName
	if err := s.repo.UpdateScrapRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *WorkOrderService) ListReports(ctx context.Context, id uuid.UUID) ([]domain.WorkOrderReport, error) {
	order, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "work order")
	}
	return s.repo.ListReports(ctx, order.ID)
}

func (s *WorkOrderService) ListScrap(ctx context.Context, id uuid.UUID) ([]domain.ScrapRecord, error) {
	order, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "work order")
	}
	return s.repo.ListScrapRecords(ctx, order.ID)
}

// GenerateFromComputation turns the net requirements of a completed
// computation into draft documents: work orders for Make/Configure,
// outsource work orders for Outsource, and relation edges for each.
// Buy lines are handled by the purchase service.
func (s *WorkOrderService) GenerateFromComputation(ctx context.Context, computationID uuid.UUID) (*domain.BatchResult, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	computation, err := s.computationRepo.GetByUUID(ctx, computationID)
	if err != nil {
		return nil, translateNotFound(err, "computation")
	}
	if computation.ComputationStatus != domain.ComputationStatusCompleted {
		return nil, domain.NewBusinessLogic("only completed computations can generate documents")
	}

	result := &domain.BatchResult{Errors: []domain.BatchError{}}
	for i := range computation.Items {
		item := &computation.Items[i]
		if !item.SuggestedWorkOrderQuantity.IsPositive() {
			continue
		}

		err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			switch item.SourceType {
			case domain.SourceTypeMake, domain.SourceTypeConfigure:
				return s.generateWorkOrder(ctx, tx, user, computation, item)
			case domain.SourceTypeOutsource:
				return s.generateOutsourceOrder(ctx, tx, user, computation, item)
			default:
				return nil
			}
		})
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, batchError(i, err))
			continue
		}
		result.SuccessCount++
	}

	s.logger.Info("documents generated from computation",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("computation_code", computation.ComputationCode),
		zap.Int("created", result.SuccessCount),
		zap.Int("failed", result.FailureCount))

	return result, nil
}

func (s *WorkOrderService) generateWorkOrder(ctx context.Context, tx *gorm.DB, user *auth.UserContext, computation *domain.DemandComputation, item *domain.DemandComputationItem) error {
	code, err := s.codeGen.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{RuleCode: RuleCodeWorkOrder})
	if err != nil {
		return err
	}

	order := &domain.WorkOrder{
		Code:          code,
		ProductID:     item.MaterialID,
		ProductCode:   item.MaterialCode,
		Quantity:      item.SuggestedWorkOrderQuantity,
		Priority:      domain.PriorityNormal,
		Status:        domain.WorkOrderStatusDraft,
		ComputationID: &computation.ID,
	}
	order.TenantID = user.TenantID
	order.CreatedBy = user.UserID
	order.CreatedByName = user.DisplayName
	if err := s.repo.Create(ctx, tx, order); err != nil {
		return err
	}

	return s.relations.RecordTx(ctx, tx, &domain.DocumentRelation{
		SourceType: domain.DocTypeDemandComputation,
		SourceID:   computation.ID,
		TargetType: domain.DocTypeWorkOrder,
		TargetID:   order.ID,
		Kind:       domain.RelationKindGenerated,
	})
}

func (s *WorkOrderService) generateOutsourceOrder(ctx context.Context, tx *gorm.DB, user *auth.UserContext, computation *domain.DemandComputation, item *domain.DemandComputationItem) error {
	material, err := s.materialRepo.GetByID(ctx, item.MaterialID)
	if err != nil {
		return translateNotFound(err, "material "+item.MaterialCode)
	}
	if material.SourceConfig.OutsourceOperation == "" || material.SourceConfig.DefaultSupplierCode == "" {
		return domain.NewComputationFailed(domain.ComputationFailureMissingRule,
			"outsource material lacks operation or supplier").WithDetail("material", material.MainCode)
	}

	code, err := s.codeGen.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{RuleCode: RuleCodeOutsourceWorkOrder})
	if err != nil {
		return err
	}

	order := &domain.OutsourceWorkOrder{
		Code:               code,
		ProductID:          material.ID,
		ProductCode:        material.MainCode,
		Quantity:           item.SuggestedWorkOrderQuantity,
		Priority:           domain.PriorityNormal,
		Status:             domain.WorkOrderStatusDraft,
		SupplierCode:       material.SourceConfig.DefaultSupplierCode,
		SupplierName:       material.SourceConfig.DefaultSupplierName,
		OutsourceOperation: material.SourceConfig.OutsourceOperation,
		ComputationID:      &computation.ID,
	}
	order.TenantID = user.TenantID
	order.CreatedBy = user.UserID
	order.CreatedByName = user.DisplayName
	if err := s.repo.CreateOutsource(ctx, tx, order); err != nil {
		return err
	}

	return s.relations.RecordTx(ctx, tx, &domain.DocumentRelation{
		SourceType: domain.DocTypeDemandComputation,
		SourceID:   computation.ID,
		TargetType: domain.DocTypeOutsourceWorkOrder,
		TargetID:   order.ID,
		Kind:       domain.RelationKindGenerated,
	})
}

func (s *WorkOrderService) GetOutsource(ctx context.Context, id uuid.UUID) (*domain.OutsourceWorkOrder, error) {
	order, err := s.repo.GetOutsourceByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "outsource work order")
	}
	return order, nil
}

func (s *WorkOrderService) ListOutsource(ctx context.Context, skip, limit int, status domain.WorkOrderStatus) ([]domain.OutsourceWorkOrder, int64, error) {
	return s.repo.ListOutsource(ctx, skip, limit, status)
}

// IssueToOutsource moves component stock out to the supplier of an
// outsource work order.
func (s *WorkOrderService) IssueToOutsource(ctx context.Context, id uuid.UUID, req *domain.OutsourceMovementRequest) (*domain.OutsourceIssue, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("issue quantity must be positive")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}

	var issue *domain.OutsourceIssue
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOutsourceByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "outsource work order")
		}
		if order.IsFrozen {
			return domain.NewBusinessLogic("outsource work order is frozen: " + order.FreezeReason)
		}
		if order.Status != domain.WorkOrderStatusReleased && order.Status != domain.WorkOrderStatusInProgress {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot issue against outsource work order in status %s", order.Status))
		}

		if err := s.inventory.DecreaseTx(ctx, tx, material, req.BatchNo, req.Quantity); err != nil {
			return err
		}

		if order.Status == domain.WorkOrderStatusReleased {
			order.Status = domain.WorkOrderStatusInProgress
			if err := tx.Save(order).Error; err != nil {
				return err
			}
		}

		issue = &domain.OutsourceIssue{
			OutsourceWorkOrderID: order.ID,
			MaterialID:           material.ID,
			MaterialCode:         material.MainCode,
			BatchNo:              req.BatchNo,
			Quantity:             req.Quantity,
			IssuedAt:             time.Now(),
		}
		issue.TenantID = user.TenantID
		issue.CreatedBy = user.UserID
		issue.CreatedByName = user.DisplayName
		return s.repo.CreateOutsourceIssue(ctx, tx, issue)
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// ReceiveFromOutsource books finished goods back from the supplier and
// advances the completed quantities.
func (s *WorkOrderService) ReceiveFromOutsource(ctx context.Context, id uuid.UUID, req *domain.OutsourceMovementRequest) (*domain.OutsourceReceipt, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("receipt quantity must be positive")
	}
	qualified := req.QualifiedQuantity
	if qualified.IsZero() {
		qualified = req.Quantity
	}
	if qualified.GreaterThan(req.Quantity) {
		return nil, domain.NewValidation("qualified quantity cannot exceed receipt quantity")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}

	var receipt *domain.OutsourceReceipt
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.GetOutsourceByUUIDForUpdate(ctx, tx, user.TenantID, id)
		if err != nil {
			return translateNotFound(err, "outsource work order")
		}
		if order.IsFrozen {
			return domain.NewBusinessLogic("outsource work order is frozen: " + order.FreezeReason)
		}
		if order.Status != domain.WorkOrderStatusInProgress {
			return domain.NewBusinessLogic(
				fmt.Sprintf("cannot receive against outsource work order in status %s", order.Status))
		}
		if order.CompletedQuantity.Add(req.Quantity).GreaterThan(order.Quantity) {
			return domain.NewBusinessLogic("receipt would exceed the outsource work order quantity")
		}

		if qualified.IsPositive() {
			if err := s.inventory.IncreaseTx(ctx, tx, material, req.BatchNo, qualified); err != nil {
				return err
			}
		}

		order.CompletedQuantity = order.CompletedQuantity.Add(req.Quantity)
		order.QualifiedQuantity = order.QualifiedQuantity.Add(qualified)
		order.UnqualifiedQuantity = order.UnqualifiedQuantity.Add(req.Quantity.Sub(qualified))
		if order.CompletedQuantity.Equal(order.Quantity) {
			order.Status = domain.WorkOrderStatusCompleted
		}
		order.UpdatedBy = user.UserID
		order.UpdatedByName = user.DisplayName
		if err := tx.Save(order).Error; err != nil {
			return err
		}

		receipt = &domain.OutsourceReceipt{
			OutsourceWorkOrderID: order.ID,
			MaterialID:           material.ID,
			MaterialCode:         material.MainCode,
			BatchNo:              req.BatchNo,
			Quantity:             req.Quantity,
			QualifiedQuantity:    qualified,
			ReceivedAt:           time.Now(),
		}
		receipt.TenantID = user.TenantID
		receipt.CreatedBy = user.UserID
		receipt.CreatedByName = user.DisplayName
		return s.repo.CreateOutsourceReceipt(ctx, tx, receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
