package service

import (
	"context"
	"errors"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InventoryService implements stock movements over the batch buckets.
// All decreases are FIFO by ascending bucket id and all-or-nothing: a
// shortfall rolls the whole movement back.
type InventoryService struct {
	repo         *repository.InventoryRepository
	materialRepo *repository.MaterialRepository
	logger       *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(repo *repository.InventoryRepository, materialRepo *repository.MaterialRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		repo:         repo,
		materialRepo: materialRepo,
		logger:       logger,
	}
}

// resolveBatchNo picks the bucket key for a movement. Non-batch-managed
// materials always use the shared default bucket.
func resolveBatchNo(material *domain.Material, batchNo string) string {
	if !material.BatchManaged {
		return domain.DefaultBatchNo
	}
	if batchNo == "" {
		return domain.DefaultBatchNo
	}
	return batchNo
}

// Increase adds quantity to a main-warehouse bucket, creating the
// bucket on first receipt.
func (s *InventoryService) Increase(ctx context.Context, req *domain.StockMovementRequest) (*domain.MaterialBatch, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("increase quantity must be positive")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	batchNo := resolveBatchNo(material, req.BatchNo)

	var result *domain.MaterialBatch
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, batchNo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			batch = &domain.MaterialBatch{
				MaterialID: material.ID,
				BatchNo:    batchNo,
				Quantity:   req.Quantity,
				Status:     domain.InventoryStatusInStock,
			}
			batch.TenantID = user.TenantID
			batch.CreatedBy = user.UserID
			batch.CreatedByName = user.DisplayName
			result = batch
			return s.repo.CreateBatch(ctx, tx, batch)
		}
		if err != nil {
			return err
		}
		batch.Quantity = batch.Quantity.Add(req.Quantity)
		batch.Status = domain.InventoryStatusInStock
		batch.UpdatedBy = user.UserID
		batch.UpdatedByName = user.DisplayName
		result = batch
		return s.repo.SaveBatch(ctx, tx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory increased",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("material", material.MainCode),
		zap.String("batch_no", batchNo),
		zap.String("quantity", req.Quantity.String()))

	return result, nil
}

// IncreaseTx adds quantity to a bucket inside an enclosing transaction,
// used by report receipts and outsource receipts.
func (s *InventoryService) IncreaseTx(ctx context.Context, tx *gorm.DB, material *domain.Material, batchNo string, quantity decimal.Decimal) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	resolved := resolveBatchNo(material, batchNo)

	batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, resolved)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		batch = &domain.MaterialBatch{
			MaterialID: material.ID,
			BatchNo:    resolved,
			Quantity:   quantity,
			Status:     domain.InventoryStatusInStock,
		}
		batch.TenantID = user.TenantID
		batch.CreatedBy = user.UserID
		batch.CreatedByName = user.DisplayName
		return s.repo.CreateBatch(ctx, tx, batch)
	}
	if err != nil {
		return err
	}
	batch.Quantity = batch.Quantity.Add(quantity)
	batch.Status = domain.InventoryStatusInStock
	batch.UpdatedBy = user.UserID
	batch.UpdatedByName = user.DisplayName
	return s.repo.SaveBatch(ctx, tx, batch)
}

// Decrease removes quantity from a material's buckets. A named batch
// consumes from that bucket only; otherwise consumption walks buckets
// FIFO. Insufficient total stock fails the whole movement.
func (s *InventoryService) Decrease(ctx context.Context, req *domain.StockMovementRequest) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return domain.NewValidation("decrease quantity must be positive")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return translateNotFound(err, "material")
	}

	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.decreaseTx(ctx, tx, user, material, req.BatchNo, req.Quantity)
	})
	if err != nil {
		return err
	}

	s.logger.Info("inventory decreased",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("material", material.MainCode),
		zap.String("quantity", req.Quantity.String()))

	return nil
}

// DecreaseTx is the FIFO decrement joined to an enclosing transaction,
// used by backflush and outsource issue.
func (s *InventoryService) DecreaseTx(ctx context.Context, tx *gorm.DB, material *domain.Material, batchNo string, quantity decimal.Decimal) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	return s.decreaseTx(ctx, tx, user, material, batchNo, quantity)
}

func (s *InventoryService) decreaseTx(ctx context.Context, tx *gorm.DB, user *auth.UserContext, material *domain.Material, batchNo string, quantity decimal.Decimal) error {
	if material.BatchManaged && batchNo != "" {
		batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, batchNo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewInsufficientStock(material.MainCode, quantity.String(), "0")
		}
		if err != nil {
			return err
		}
		if batch.Available().LessThan(quantity) {
			return domain.NewInsufficientStock(material.MainCode, quantity.String(), batch.Available().String())
		}
		batch.Quantity = batch.Quantity.Sub(quantity)
		if batch.Quantity.IsZero() {
			batch.Status = domain.InventoryStatusOutStock
		}
		batch.UpdatedBy = user.UserID
		batch.UpdatedByName = user.DisplayName
		return s.repo.SaveBatch(ctx, tx, batch)
	}

	batches, err := s.repo.ListBatchesForUpdate(ctx, tx, user.TenantID, material.ID)
	if err != nil {
		return err
	}

	available := decimal.Zero
	for i := range batches {
		available = available.Add(batches[i].Available())
	}
	if available.LessThan(quantity) {
		return domain.NewInsufficientStock(material.MainCode, quantity.String(), available.String())
	}

	remaining := quantity
	for i := range batches {
		if remaining.IsZero() {
			break
		}
		batch := &batches[i]
		take := decimal.Min(batch.Available(), remaining)
		if !take.IsPositive() {
			continue
		}
		batch.Quantity = batch.Quantity.Sub(take)
		if batch.Quantity.IsZero() {
			batch.Status = domain.InventoryStatusOutStock
		}
		batch.UpdatedBy = user.UserID
		batch.UpdatedByName = user.DisplayName
		if err := s.repo.SaveBatch(ctx, tx, batch); err != nil {
			return err
		}
		remaining = remaining.Sub(take)
	}
	return nil
}

// Reserve earmarks quantity so later movements cannot consume it. A
// named batch reserves that bucket only; otherwise the reservation
// walks buckets FIFO. Reserving beyond available stock fails the whole
// reservation.
func (s *InventoryService) Reserve(ctx context.Context, req *domain.StockMovementRequest) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return domain.NewValidation("reserve quantity must be positive")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return translateNotFound(err, "material")
	}

	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if material.BatchManaged && req.BatchNo != "" {
			batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, req.BatchNo)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewInsufficientStock(material.MainCode, req.Quantity.String(), "0")
			}
			if err != nil {
				return err
			}
			if batch.Available().LessThan(req.Quantity) {
				return domain.NewInsufficientStock(material.MainCode, req.Quantity.String(), batch.Available().String())
			}
			batch.ReservedQuantity = batch.ReservedQuantity.Add(req.Quantity)
			batch.UpdatedBy = user.UserID
			batch.UpdatedByName = user.DisplayName
			return s.repo.SaveBatch(ctx, tx, batch)
		}

		batches, err := s.repo.ListBatchesForUpdate(ctx, tx, user.TenantID, material.ID)
		if err != nil {
			return err
		}

		available := decimal.Zero
		for i := range batches {
			available = available.Add(batches[i].Available())
		}
		if available.LessThan(req.Quantity) {
			return domain.NewInsufficientStock(material.MainCode, req.Quantity.String(), available.String())
		}

		remaining := req.Quantity
		for i := range batches {
			if remaining.IsZero() {
				break
			}
			batch := &batches[i]
			take := decimal.Min(batch.Available(), remaining)
			if !take.IsPositive() {
				continue
			}
			batch.ReservedQuantity = batch.ReservedQuantity.Add(take)
			batch.UpdatedBy = user.UserID
			batch.UpdatedByName = user.DisplayName
			if err := s.repo.SaveBatch(ctx, tx, batch); err != nil {
				return err
			}
			remaining = remaining.Sub(take)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("inventory reserved",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("material", material.MainCode),
		zap.String("quantity", req.Quantity.String()))

	return nil
}

// Release returns reserved quantity to the available pool. Releasing
// more than is currently reserved is refused.
func (s *InventoryService) Release(ctx context.Context, req *domain.StockMovementRequest) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return domain.NewValidation("release quantity must be positive")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return translateNotFound(err, "material")
	}

	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if material.BatchManaged && req.BatchNo != "" {
			batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, req.BatchNo)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewBusinessLogic("release exceeds reserved quantity")
			}
			if err != nil {
				return err
			}
			if batch.ReservedQuantity.LessThan(req.Quantity) {
				return domain.NewBusinessLogic("release exceeds reserved quantity")
			}
			batch.ReservedQuantity = batch.ReservedQuantity.Sub(req.Quantity)
			batch.UpdatedBy = user.UserID
			batch.UpdatedByName = user.DisplayName
			return s.repo.SaveBatch(ctx, tx, batch)
		}

		batches, err := s.repo.ListBatchesForUpdate(ctx, tx, user.TenantID, material.ID)
		if err != nil {
			return err
		}

		reserved := decimal.Zero
		for i := range batches {
			reserved = reserved.Add(batches[i].ReservedQuantity)
		}
		if reserved.LessThan(req.Quantity) {
			return domain.NewBusinessLogic("release exceeds reserved quantity")
		}

		remaining := req.Quantity
		for i := range batches {
			if remaining.IsZero() {
				break
			}
			batch := &batches[i]
			give := decimal.Min(batch.ReservedQuantity, remaining)
			if !give.IsPositive() {
				continue
			}
			batch.ReservedQuantity = batch.ReservedQuantity.Sub(give)
			batch.UpdatedBy = user.UserID
			batch.UpdatedByName = user.DisplayName
			if err := s.repo.SaveBatch(ctx, tx, batch); err != nil {
				return err
			}
			remaining = remaining.Sub(give)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("inventory released",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("material", material.MainCode),
		zap.String("quantity", req.Quantity.String()))

	return nil
}

// Adjust sets the absolute quantity of one bucket from a stocktaking
// result, creating the bucket when counting finds untracked stock.
func (s *InventoryService) Adjust(ctx context.Context, req *domain.AdjustInventoryRequest) (*domain.MaterialBatch, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if req.Quantity.IsNegative() {
		return nil, domain.NewValidation("adjusted quantity cannot be negative")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	batchNo := resolveBatchNo(material, req.BatchNo)

	var result *domain.MaterialBatch
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.repo.GetBatchForUpdate(ctx, tx, user.TenantID, material.ID, batchNo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			batch = &domain.MaterialBatch{
				MaterialID: material.ID,
				BatchNo:    batchNo,
				Quantity:   req.Quantity,
				Status:     domain.InventoryStatusInStock,
			}
			batch.TenantID = user.TenantID
			batch.CreatedBy = user.UserID
			batch.CreatedByName = user.DisplayName
			result = batch
			return s.repo.CreateBatch(ctx, tx, batch)
		}
		if err != nil {
			return err
		}
		batch.Quantity = req.Quantity
		if batch.Quantity.IsZero() {
			batch.Status = domain.InventoryStatusOutStock
		} else {
			batch.Status = domain.InventoryStatusInStock
		}
		batch.UpdatedBy = user.UserID
		batch.UpdatedByName = user.DisplayName
		result = batch
		return s.repo.SaveBatch(ctx, tx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory adjusted",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("material", material.MainCode),
		zap.String("batch_no", batchNo),
		zap.String("quantity", req.Quantity.String()),
		zap.String("stocktaking", req.StocktakingCode))

	return result, nil
}

// GetAvailable returns the total unreserved quantity of a material
// across its in-stock buckets.
func (s *InventoryService) GetAvailable(ctx context.Context, materialUUID uuid.UUID) (decimal.Decimal, error) {
	material, err := s.materialRepo.GetByUUID(ctx, materialUUID)
	if err != nil {
		return decimal.Zero, translateNotFound(err, "material")
	}
	return s.availableByID(ctx, material.ID)
}

// AvailableByMaterialID is the id-keyed availability lookup used by the
// computation engine.
func (s *InventoryService) AvailableByMaterialID(ctx context.Context, materialID uint) (decimal.Decimal, error) {
	return s.availableByID(ctx, materialID)
}

func (s *InventoryService) availableByID(ctx context.Context, materialID uint) (decimal.Decimal, error) {
	raw, err := s.repo.SumAvailable(ctx, materialID)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.NewComputationFailed(domain.ComputationFailureInventoryInconsistent,
			"unreadable inventory total").WithCause(err)
	}
	return total, nil
}

// AvailableBulk resolves availability for a set of materials in one
// round trip. Materials without stock come back as zero.
func (s *InventoryService) AvailableBulk(ctx context.Context, materialIDs []uint) (map[uint]decimal.Decimal, error) {
	raw, err := s.repo.SumAvailableBulk(ctx, materialIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]decimal.Decimal, len(materialIDs))
	for _, id := range materialIDs {
		result[id] = decimal.Zero
	}
	for id, v := range raw {
		total, err := decimal.NewFromString(v)
		if err != nil {
			return nil, domain.NewComputationFailed(domain.ComputationFailureInventoryInconsistent,
				"unreadable inventory total").WithCause(err)
		}
		result[id] = total
	}
	return result, nil
}

func (s *InventoryService) ListBatches(ctx context.Context, materialUUID uuid.UUID, skip, limit int) ([]domain.MaterialBatch, int64, error) {
	var materialID uint
	if materialUUID != uuid.Nil {
		material, err := s.materialRepo.GetByUUID(ctx, materialUUID)
		if err != nil {
			return nil, 0, translateNotFound(err, "material")
		}
		materialID = material.ID
	}
	return s.repo.ListBatches(ctx, materialID, skip, limit)
}

// TransferToLineSide moves stock from the main warehouse into a
// line-side bucket, keeping the source document trace.
func (s *InventoryService) TransferToLineSide(ctx context.Context, req *domain.StockMovementRequest) (*domain.LineSideInventory, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return nil, domain.NewValidation("transfer quantity must be positive")
	}
	if req.WarehouseID == nil || *req.WarehouseID == 0 {
		return nil, domain.NewValidation("line-side transfers require a warehouse")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return nil, translateNotFound(err, "material")
	}
	batchNo := resolveBatchNo(material, req.BatchNo)

	var result *domain.LineSideInventory
	err = s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.decreaseTx(ctx, tx, user, material, req.BatchNo, req.Quantity); err != nil {
			return err
		}

		inv, err := s.repo.GetLineSideForUpdate(ctx, tx, user.TenantID, *req.WarehouseID, material.ID, batchNo)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			inv = &domain.LineSideInventory{
				WarehouseID:   *req.WarehouseID,
				MaterialID:    material.ID,
				BatchNo:       batchNo,
				Quantity:      req.Quantity,
				Status:        domain.InventoryStatusInStock,
				SourceType:    req.SourceType,
				SourceDocID:   req.SourceDocID,
				SourceDocCode: req.SourceDocCode,
			}
			inv.TenantID = user.TenantID
			inv.CreatedBy = user.UserID
			inv.CreatedByName = user.DisplayName
			result = inv
			return s.repo.CreateLineSide(ctx, tx, inv)
		}
		if err != nil {
			return err
		}
		inv.Quantity = inv.Quantity.Add(req.Quantity)
		inv.Status = domain.InventoryStatusInStock
		inv.UpdatedBy = user.UserID
		inv.UpdatedByName = user.DisplayName
		result = inv
		return s.repo.SaveLineSide(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ConsumeLineSide removes quantity from line-side buckets FIFO, for
// shop-floor consumption postings.
func (s *InventoryService) ConsumeLineSide(ctx context.Context, req *domain.StockMovementRequest) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	if !req.Quantity.IsPositive() {
		return domain.NewValidation("consume quantity must be positive")
	}
	if req.WarehouseID == nil || *req.WarehouseID == 0 {
		return domain.NewValidation("line-side consumption requires a warehouse")
	}

	material, err := s.materialRepo.GetByUUID(ctx, req.MaterialUUID)
	if err != nil {
		return translateNotFound(err, "material")
	}

	return s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invs, err := s.repo.ListLineSideForUpdate(ctx, tx, user.TenantID, *req.WarehouseID, material.ID)
		if err != nil {
			return err
		}

		available := decimal.Zero
		for i := range invs {
			available = available.Add(invs[i].Available())
		}
		if available.LessThan(req.Quantity) {
			return domain.NewInsufficientStock(material.MainCode, req.Quantity.String(), available.String())
		}

		remaining := req.Quantity
		for i := range invs {
			if remaining.IsZero() {
				break
			}
			inv := &invs[i]
			take := decimal.Min(inv.Available(), remaining)
			if !take.IsPositive() {
				continue
			}
			inv.Quantity = inv.Quantity.Sub(take)
			if inv.Quantity.IsZero() {
				inv.Status = domain.InventoryStatusOutStock
			}
			inv.UpdatedBy = user.UserID
			inv.UpdatedByName = user.DisplayName
			if err := s.repo.SaveLineSide(ctx, tx, inv); err != nil {
				return err
			}
			remaining = remaining.Sub(take)
		}
		return nil
	})
}

func (s *InventoryService) ListLineSide(ctx context.Context, warehouseID uint, skip, limit int) ([]domain.LineSideInventory, int64, error) {
	return s.repo.ListLineSide(ctx, warehouseID, 0, skip, limit)
}
