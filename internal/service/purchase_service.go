package service

import (
	"context"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PurchaseService handles the procurement tail of planning: Buy
// suggestions become requisitions, and approved requisitions are
// pushed into supplier purchase orders.
type PurchaseService struct {
	repo            *repository.PurchaseRepository
	computationRepo *repository.ComputationRepository
	codeGen         *CodeGeneratorService
	relations       *RelationService
	timings         *TimingService
	logger          *zap.Logger
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	repo *repository.PurchaseRepository,
	computationRepo *repository.ComputationRepository,
	codeGen *CodeGeneratorService,
	relations *RelationService,
	timings *TimingService,
	logger *zap.Logger,
) *PurchaseService {
	return &PurchaseService{
		repo:            repo,
		computationRepo: computationRepo,
		codeGen:         codeGen,
		relations:       relations,
		timings:         timings,
		logger:          logger,
	}
}

// GenerateFromComputation collects the Buy suggestions of a completed
// computation into one draft requisition linked back to it.
func (s *PurchaseService) GenerateFromComputation(ctx context.Context, computationID uuid.UUID) (*domain.PurchaseRequisition, error) {
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

	var items []domain.PurchaseRequisitionItem
	for i := range computation.Items {
		item := &computation.Items[i]
		if item.SourceType != domain.SourceTypeBuy || !item.SuggestedPurchaseOrderQuantity.IsPositive() {
			continue
		}
		line := domain.PurchaseRequisitionItem{
			MaterialID:   item.MaterialID,
			MaterialCode: item.MaterialCode,
			Quantity:     item.SuggestedPurchaseOrderQuantity,
		}
		line.TenantID = user.TenantID
		items = append(items, line)
	}
	if len(items) == 0 {
		return nil, domain.NewBusinessLogic("computation has no purchase suggestions")
	}

	var requisition *domain.PurchaseRequisition
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.codeGen.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{RuleCode: RuleCodePurchaseRequisition})
		if err != nil {
			return err
		}

		requisition = &domain.PurchaseRequisition{
			Code:          code,
			Status:        domain.PurchaseStatusDraft,
			ComputationID: &computation.ID,
			Items:         items,
		}
		requisition.TenantID = user.TenantID
		requisition.CreatedBy = user.UserID
		requisition.CreatedByName = user.DisplayName
		if err := s.repo.CreateRequisition(ctx, tx, requisition); err != nil {
			return err
		}

		return s.relations.RecordTx(ctx, tx, &domain.DocumentRelation{
			SourceType: domain.DocTypeDemandComputation,
			SourceID:   computation.ID,
			TargetType: domain.DocTypePurchaseRequisition,
			TargetID:   requisition.ID,
			Kind:       domain.RelationKindGenerated,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase requisition generated",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("code", requisition.Code),
		zap.Int("items", len(items)))

	return requisition, nil
}

func (s *PurchaseService) GetRequisition(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error) {
	requisition, err := s.repo.GetRequisitionByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "purchase requisition")
	}
	return requisition, nil
}

func (s *PurchaseService) ListRequisitions(ctx context.Context, skip, limit int, status domain.PurchaseDocStatus) ([]domain.PurchaseRequisition, int64, error) {
	return s.repo.ListRequisitions(ctx, skip, limit, status)
}

// SubmitRequisition sends a draft requisition for approval.
func (s *PurchaseService) SubmitRequisition(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error) {
	return s.transitionRequisition(ctx, id, domain.PurchaseStatusDraft, domain.PurchaseStatusSubmitted)
}

// ApproveRequisition approves a submitted requisition, making it
// eligible for pushing to a purchase order.
func (s *PurchaseService) ApproveRequisition(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error) {
	return s.transitionRequisition(ctx, id, domain.PurchaseStatusSubmitted, domain.PurchaseStatusApproved)
}

// RejectRequisition sends a submitted requisition back to draft.
func (s *PurchaseService) RejectRequisition(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error) {
	return s.transitionRequisition(ctx, id, domain.PurchaseStatusSubmitted, domain.PurchaseStatusRejected)
}

func (s *PurchaseService) transitionRequisition(ctx context.Context, id uuid.UUID, from, to domain.PurchaseDocStatus) (*domain.PurchaseRequisition, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	requisition, err := s.repo.GetRequisitionByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "purchase requisition")
	}
	if requisition.Status != from {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("cannot move requisition from %s to %s", requisition.Status, to))
	}

	requisition.Status = to
	requisition.UpdatedBy = user.UserID
	requisition.UpdatedByName = user.DisplayName
	if err := s.repo.UpdateRequisition(ctx, requisition); err != nil {
		return nil, err
	}
	return requisition, nil
}

// PushRequisition turns an approved requisition into a purchase order
// for one supplier and closes the requisition. Item prices come from
// the material master.
func (s *PurchaseService) PushRequisition(ctx context.Context, id uuid.UUID, supplierCode, supplierName string) (*domain.PurchaseOrder, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	requisition, err := s.repo.GetRequisitionByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "purchase requisition")
	}
	if requisition.Status != domain.PurchaseStatusApproved {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("cannot push requisition in status %s", requisition.Status))
	}

	var order *domain.PurchaseOrder
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.codeGen.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{RuleCode: RuleCodePurchaseOrder})
		if err != nil {
			return err
		}

		now := time.Now()
		items := make([]domain.PurchaseOrderItem, 0, len(requisition.Items))
		for _, line := range requisition.Items {
			// Prices are negotiated with the supplier afterwards.
			item := domain.PurchaseOrderItem{
				MaterialID:   line.MaterialID,
				MaterialCode: line.MaterialCode,
				Quantity:     line.Quantity,
				UnitPrice:    decimal.Zero,
				ItemAmount:   decimal.Zero,
				RequiredDate: line.RequiredDate,
			}
			item.TenantID = user.TenantID
			items = append(items, item)
		}

		order = &domain.PurchaseOrder{
			Code:          code,
			SupplierCode:  supplierCode,
			SupplierName:  supplierName,
			Status:        domain.PurchaseStatusDraft,
			OrderDate:     &now,
			TotalAmount:   decimal.Zero,
			ComputationID: requisition.ComputationID,
			Items:         items,
		}
		order.TenantID = user.TenantID
		order.CreatedBy = user.UserID
		order.CreatedByName = user.DisplayName
		if err := s.repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}

		requisition.Status = domain.PurchaseStatusClosed
		requisition.UpdatedBy = user.UserID
		requisition.UpdatedByName = user.DisplayName
		if err := tx.Save(requisition).Error; err != nil {
			return err
		}

		return s.relations.RecordTx(ctx, tx, &domain.DocumentRelation{
			SourceType: domain.DocTypePurchaseRequisition,
			SourceID:   requisition.ID,
			TargetType: domain.DocTypePurchaseOrder,
			TargetID:   order.ID,
			Kind:       domain.RelationKindPushed,
		})
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.timings.Start(ctx, &domain.NodeTimingRequest{
		DocumentType: domain.DocTypePurchaseOrder,
		DocumentID:   order.ID,
		NodeCode:     "created",
	}); err != nil {
		s.logger.Warn("failed to stamp purchase order timing node", zap.Error(err))
	}

	s.logger.Info("purchase requisition pushed",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("requisition_code", requisition.Code),
		zap.String("order_code", order.Code))

	return order, nil
}

func (s *PurchaseService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, error) {
	order, err := s.repo.GetOrderByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "purchase order")
	}
	return order, nil
}

func (s *PurchaseService) ListOrders(ctx context.Context, skip, limit int, status domain.PurchaseDocStatus) ([]domain.PurchaseOrder, int64, error) {
	return s.repo.ListOrders(ctx, skip, limit, status)
}
