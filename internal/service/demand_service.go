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
)

// DemandService manages the unified demand model and its review
// lifecycle. Totals are derived from items on every write.
type DemandService struct {
	repo         *repository.DemandRepository
	materialRepo *repository.MaterialRepository
	codeGen      *CodeGeneratorService
	logger       *zap.Logger
}

// NewDemandService creates a new DemandService
func NewDemandService(
	repo *repository.DemandRepository,
	materialRepo *repository.MaterialRepository,
	codeGen *CodeGeneratorService,
	logger *zap.Logger,
) *DemandService {
	return &DemandService{
		repo:         repo,
		materialRepo: materialRepo,
		codeGen:      codeGen,
		logger:       logger,
	}
}

// Create validates and persists a demand in pending review.
func (s *DemandService) Create(ctx context.Context, req *domain.CreateDemandRequest) (*domain.Demand, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	if !req.DemandType.IsValid() {
		return nil, domain.NewValidationf("invalid demand type: %s", req.DemandType)
	}
	if !req.BusinessMode.IsValid() {
		return nil, domain.NewValidationf("invalid business mode: %s", req.BusinessMode)
	}
	if req.DemandType == domain.DemandTypeSalesForecast && req.ForecastPeriod == "" {
		return nil, domain.NewValidation("sales forecasts require a forecast period")
	}
	if req.DemandType == domain.DemandTypeSalesOrder && req.DeliveryDate == nil {
		return nil, domain.NewValidation("sales orders require a delivery date")
	}
	if req.DemandType == domain.DemandTypeSalesOrder && req.OrderDate == nil {
		return nil, domain.NewValidation("sales orders require an order date")
	}
	if req.BusinessMode == domain.BusinessModeMTO && (req.CustomerCode == "" || req.CustomerName == "") {
		return nil, domain.NewValidation("make-to-order demands require a customer")
	}

	items := make([]domain.DemandItem, 0, len(req.Items))
	totalQuantity := decimal.Zero
	totalAmount := decimal.Zero
	for i, line := range req.Items {
		material, err := s.materialRepo.GetByUUID(ctx, line.MaterialUUID)
		if err != nil {
			return nil, translateNotFound(err, fmt.Sprintf("material (item %d)", i))
		}
		if !line.RequiredQuantity.IsPositive() {
			return nil, domain.NewValidationf("item %d quantity must be positive", i)
		}

		itemAmount := line.RequiredQuantity.Mul(line.UnitPrice).Round(2)
		item := domain.DemandItem{
			MaterialID:        material.ID,
			MaterialCode:      material.MainCode,
			RequiredQuantity:  line.RequiredQuantity,
			RemainingQuantity: line.RequiredQuantity,
			ForecastDate:      line.ForecastDate,
			DeliveryDate:      line.DeliveryDate,
			UnitPrice:         line.UnitPrice,
			ItemAmount:        itemAmount,
			DeliveryStatus:    domain.DeliveryStatusPending,
		}
		item.TenantID = user.TenantID
		items = append(items, item)

		totalQuantity = totalQuantity.Add(line.RequiredQuantity)
		totalAmount = totalAmount.Add(itemAmount)
	}

	code, err := s.codeGen.Generate(ctx, &domain.GenerateCodeRequest{
		RuleCode:  RuleCodeDemand,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}

	demand := &domain.Demand{
		DemandCode:     code,
		DemandType:     req.DemandType,
		BusinessMode:   req.BusinessMode,
		CustomerCode:   req.CustomerCode,
		CustomerName:   req.CustomerName,
		OrderDate:      req.OrderDate,
		DeliveryDate:   req.DeliveryDate,
		ForecastPeriod: req.ForecastPeriod,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TotalQuantity:  totalQuantity,
		TotalAmount:    totalAmount,
		ReviewStatus:   domain.ReviewStatusPending,
		Remark:         req.Remark,
		Items:          items,
	}
	demand.TenantID = user.TenantID
	demand.CreatedBy = user.UserID
	demand.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, demand); err != nil {
		return nil, err
	}

	s.logger.Info("demand created",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("demand_code", demand.DemandCode),
		zap.String("demand_type", string(demand.DemandType)),
		zap.Int("items", len(items)))

	return demand, nil
}

func (s *DemandService) Get(ctx context.Context, id uuid.UUID) (*domain.Demand, error) {
	demand, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "demand")
	}
	return demand, nil
}

func (s *DemandService) List(ctx context.Context, skip, limit int, demandType domain.DemandType, reviewStatus domain.ReviewStatus, pushed *bool) ([]domain.Demand, int64, error) {
	return s.repo.List(ctx, skip, limit, demandType, reviewStatus, pushed)
}

// Approve marks a pending demand approved, making it eligible for
// computation.
func (s *DemandService) Approve(ctx context.Context, id uuid.UUID, remark string) (*domain.Demand, error) {
	return s.review(ctx, id, "approve", domain.ReviewStatusApproved, remark)
}

// Reject sends a pending demand back with a remark.
func (s *DemandService) Reject(ctx context.Context, id uuid.UUID, remark string) (*domain.Demand, error) {
	return s.review(ctx, id, "reject", domain.ReviewStatusRejected, remark)
}

func (s *DemandService) review(ctx context.Context, id uuid.UUID, action string, target domain.ReviewStatus, remark string) (*domain.Demand, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	demand, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "demand")
	}

	if demand.ReviewStatus != domain.ReviewStatusPending {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("cannot %s demand in status %s", action, demand.ReviewStatus))
	}
	if demand.PushedToComputation {
		return nil, domain.NewBusinessLogic("demand has already been pushed to computation")
	}

	demand.ReviewStatus = target
	demand.ReviewRemarks = append(demand.ReviewRemarks, domain.ReviewRemark{
		Action:     action,
		Remark:     remark,
		ActorID:    user.UserID,
		ActorName:  user.DisplayName,
		RecordedAt: time.Now(),
	})
	demand.UpdatedBy = user.UserID
	demand.UpdatedByName = user.DisplayName

	if err := s.repo.Update(ctx, demand); err != nil {
		return nil, err
	}

	s.logger.Info("demand reviewed",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("demand_code", demand.DemandCode),
		zap.String("action", action))

	return demand, nil
}

// Reopen returns a rejected demand to pending review after edits.
func (s *DemandService) Reopen(ctx context.Context, id uuid.UUID) (*domain.Demand, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	demand, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "demand")
	}
	if demand.ReviewStatus != domain.ReviewStatusRejected {
		return nil, domain.NewBusinessLogic(
			fmt.Sprintf("cannot reopen demand in status %s", demand.ReviewStatus))
	}

	demand.ReviewStatus = domain.ReviewStatusPending
	demand.ReviewRemarks = append(demand.ReviewRemarks, domain.ReviewRemark{
		Action:     "reopen",
		ActorID:    user.UserID,
		ActorName:  user.DisplayName,
		RecordedAt: time.Now(),
	})
	demand.UpdatedBy = user.UserID
	demand.UpdatedByName = user.DisplayName

	if err := s.repo.Update(ctx, demand); err != nil {
		return nil, err
	}
	return demand, nil
}

// Delete removes a demand that was never pushed to computation.
func (s *DemandService) Delete(ctx context.Context, id uuid.UUID) error {
	demand, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return translateNotFound(err, "demand")
	}
	if demand.PushedToComputation {
		return domain.NewBusinessLogic("pushed demands cannot be deleted")
	}
	return s.repo.Delete(ctx, demand.ID)
}

// RecordDelivery posts a delivered quantity against one demand item and
// recomputes its remaining quantity and status.
func (s *DemandService) RecordDelivery(ctx context.Context, itemID uuid.UUID, quantity decimal.Decimal) (*domain.DemandItem, error) {
	if !quantity.IsPositive() {
		return nil, domain.NewValidation("delivered quantity must be positive")
	}

	item, err := s.repo.GetItemByUUID(ctx, itemID)
	if err != nil {
		return nil, translateNotFound(err, "demand item")
	}

	item.DeliveredQuantity = item.DeliveredQuantity.Add(quantity)
	remaining := item.RequiredQuantity.Sub(item.DeliveredQuantity)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	item.RemainingQuantity = remaining

	switch {
	case remaining.IsZero():
		item.DeliveryStatus = domain.DeliveryStatusDelivered
	case item.DeliveredQuantity.IsPositive():
		item.DeliveryStatus = domain.DeliveryStatusPartial
	default:
		item.DeliveryStatus = domain.DeliveryStatusPending
	}

	if err := s.repo.UpdateItemDelivery(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
