package repository

import (
	"context"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) DB() *gorm.DB {
	return r.db
}

func (r *WorkOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *domain.WorkOrder) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(order).Error
}

func (r *WorkOrderRepository) Update(ctx context.Context, order *domain.WorkOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *WorkOrderRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByUUIDForUpdate locks the work order row for a state transition.
func (r *WorkOrderRepository) GetByUUIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, id uuid.UUID) (*domain.WorkOrder, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var order domain.WorkOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND uuid = ?", tenantID, id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *WorkOrderRepository) List(ctx context.Context, skip, limit int, status domain.WorkOrderStatus, productID uint) ([]domain.WorkOrder, int64, error) {
	var orders []domain.WorkOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.WorkOrder{})
	query = ApplyTenantScope(ctx, query)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if productID != 0 {
		query = query.Where("product_id = ?", productID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&orders).Error
	return orders, total, err
}

func (r *WorkOrderRepository) CreateReport(ctx context.Context, tx *gorm.DB, report *domain.WorkOrderReport) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(report).Error
}

func (r *WorkOrderRepository) ListReports(ctx context.Context, workOrderID uint) ([]domain.WorkOrderReport, error) {
	var reports []domain.WorkOrderReport
	query := r.db.WithContext(ctx).Where("work_order_id = ?", workOrderID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("reported_at ASC").Find(&reports).Error
	return reports, err
}

func (r *WorkOrderRepository) CreateScrapRecord(ctx context.Context, tx *gorm.DB, record *domain.ScrapRecord) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(record).Error
}

func (r *WorkOrderRepository) GetScrapRecordByUUID(ctx context.Context, id uuid.UUID) (*domain.ScrapRecord, error) {
	var record domain.ScrapRecord
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *WorkOrderRepository) UpdateScrapRecord(ctx context.Context, record *domain.ScrapRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *WorkOrderRepository) ListScrapRecords(ctx context.Context, workOrderID uint) ([]domain.ScrapRecord, error) {
	var records []domain.ScrapRecord
	query := r.db.WithContext(ctx).Where("work_order_id = ?", workOrderID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("recorded_at ASC").Find(&records).Error
	return records, err
}

func (r *WorkOrderRepository) CreateOutsource(ctx context.Context, tx *gorm.DB, order *domain.OutsourceWorkOrder) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(order).Error
}

func (r *WorkOrderRepository) UpdateOutsource(ctx context.Context, order *domain.OutsourceWorkOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *WorkOrderRepository) GetOutsourceByUUID(ctx context.Context, id uuid.UUID) (*domain.OutsourceWorkOrder, error) {
	var order domain.OutsourceWorkOrder
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOutsourceByUUIDForUpdate locks the outsource order row for a
// transition or movement.
func (r *WorkOrderRepository) GetOutsourceByUUIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID uint, id uuid.UUID) (*domain.OutsourceWorkOrder, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	var order domain.OutsourceWorkOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND uuid = ?", tenantID, id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *WorkOrderRepository) ListOutsource(ctx context.Context, skip, limit int, status domain.WorkOrderStatus) ([]domain.OutsourceWorkOrder, int64, error) {
	var orders []domain.OutsourceWorkOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.OutsourceWorkOrder{})
	query = ApplyTenantScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("created_at DESC").Find(&orders).Error
	return orders, total, err
}

func (r *WorkOrderRepository) CreateOutsourceIssue(ctx context.Context, tx *gorm.DB, issue *domain.OutsourceIssue) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(issue).Error
}

func (r *WorkOrderRepository) CreateOutsourceReceipt(ctx context.Context, tx *gorm.DB, receipt *domain.OutsourceReceipt) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(receipt).Error
}

func (r *WorkOrderRepository) ListOutsourceIssues(ctx context.Context, outsourceWorkOrderID uint) ([]domain.OutsourceIssue, error) {
	var issues []domain.OutsourceIssue
	query := r.db.WithContext(ctx).Where("outsource_work_order_id = ?", outsourceWorkOrderID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("issued_at ASC").Find(&issues).Error
	return issues, err
}

func (r *WorkOrderRepository) ListOutsourceReceipts(ctx context.Context, outsourceWorkOrderID uint) ([]domain.OutsourceReceipt, error) {
	var receipts []domain.OutsourceReceipt
	query := r.db.WithContext(ctx).Where("outsource_work_order_id = ?", outsourceWorkOrderID)
	query = ApplyTenantScope(ctx, query)
	err := query.Order("received_at ASC").Find(&receipts).Error
	return receipts, err
}
