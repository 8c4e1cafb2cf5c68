package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupWorkOrderTest(t *testing.T) (*gorm.DB, *service.WorkOrderService, context.Context) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "WORK_ORDER", "WO{SEQ:4}")
	seedRule(t, ctx, db, "OUTSOURCE_WORK_ORDER", "OWO{SEQ:4}")
	seedRule(t, ctx, db, "BOM", "BOM{SEQ:4}")
	return db, createWorkOrderService(db), ctx
}

func createDraftWorkOrder(t *testing.T, ctx context.Context, svc *service.WorkOrderService, product *domain.Material, quantity int64) *domain.WorkOrder {
	t.Helper()
	order, err := svc.Create(ctx, &domain.CreateWorkOrderRequest{
		ProductUUID: product.UUID,
		Quantity:    decimal.NewFromInt(quantity),
	})
	require.NoError(t, err)
	return order
}

func startWorkOrder(t *testing.T, ctx context.Context, svc *service.WorkOrderService, order *domain.WorkOrder) *domain.WorkOrder {
	t.Helper()
	_, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusReleased)
	require.NoError(t, err)
	started, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusInProgress)
	require.NoError(t, err)
	return started
}

func TestWorkOrderService_Create(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-300", domain.SourceTypeMake, nil)

	order := createDraftWorkOrder(t, ctx, svc, product, 10)
	assert.Equal(t, "WO0001", order.Code)
	assert.Equal(t, domain.WorkOrderStatusDraft, order.Status)
	assert.Equal(t, domain.PriorityNormal, order.Priority, "priority defaults to normal")
	assert.Equal(t, "FIN-300", order.ProductCode)
}

func TestWorkOrderService_Create_BuyProductRefused(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	raw := seedMaterial(t, ctx, db, "RAW-300", domain.SourceTypeBuy, nil)

	_, err := svc.Create(ctx, &domain.CreateWorkOrderRequest{
		ProductUUID: raw.UUID,
		Quantity:    decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestWorkOrderService_Create_Validation(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-301", domain.SourceTypeMake, nil)

	_, err := svc.Create(ctx, &domain.CreateWorkOrderRequest{
		ProductUUID: product.UUID,
		Quantity:    decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	_, err = svc.Create(ctx, &domain.CreateWorkOrderRequest{
		ProductUUID: product.UUID,
		Quantity:    decimal.NewFromInt(1),
		Priority:    "whenever",
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestWorkOrderService_CreateBulk_PartialFailure(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-302", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-302", domain.SourceTypeBuy, nil)

	result, err := svc.CreateBulk(ctx, []domain.CreateWorkOrderRequest{
		{ProductUUID: product.UUID, Quantity: decimal.NewFromInt(5)},
		{ProductUUID: raw.UUID, Quantity: decimal.NewFromInt(5)},
		{ProductUUID: product.UUID, Quantity: decimal.NewFromInt(7)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, string(domain.ErrCodeBusinessLogic), result.Errors[0].Code)
	assert.Len(t, result.UUIDs, 2)
}

func TestWorkOrderService_TransitionChain(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-303", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)

	// Draft cannot jump straight to in_progress.
	_, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusInProgress)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	released, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusReleased)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusReleased, released.Status)
	assert.Nil(t, released.ActualStartDate)

	started, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, started.ActualStartDate)

	completed, err := svc.Transition(ctx, order.UUID, domain.WorkOrderStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed.ActualEndDate)

	// Terminal states have no outgoing transitions.
	_, err = svc.Transition(ctx, order.UUID, domain.WorkOrderStatusCancelled)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestWorkOrderService_FreezeBlocksEverything(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-304", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)
	startWorkOrder(t, ctx, svc, order)

	frozen, err := svc.Freeze(ctx, order.UUID, "quality hold")
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen)
	assert.Equal(t, "quality hold", frozen.FreezeReason)

	_, err = svc.Freeze(ctx, order.UUID, "again")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	_, err = svc.Transition(ctx, order.UUID, domain.WorkOrderStatusCompleted)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{ReportQuantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	thawed, err := svc.Unfreeze(ctx, order.UUID)
	require.NoError(t, err)
	assert.False(t, thawed.IsFrozen)
	assert.Equal(t, domain.WorkOrderStatusInProgress, thawed.Status, "prior status survives the freeze")

	_, err = svc.Transition(ctx, order.UUID, domain.WorkOrderStatusCompleted)
	require.NoError(t, err)
}

func TestWorkOrderService_Report_Validation(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-305", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)

	// Reporting needs an in_progress order.
	_, err := svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{ReportQuantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	startWorkOrder(t, ctx, svc, order)

	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{ReportQuantity: decimal.NewFromInt(11)})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{
		ReportQuantity:      decimal.NewFromInt(5),
		QualifiedQuantity:   decimal.NewFromInt(3),
		UnqualifiedQuantity: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestWorkOrderService_Report_AccumulatesAndDefaultsQualified(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-306", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)
	startWorkOrder(t, ctx, svc, order)

	report, err := svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{ReportQuantity: decimal.NewFromInt(4)})
	require.NoError(t, err)
	assert.True(t, report.QualifiedQuantity.Equal(decimal.NewFromInt(4)), "qualified defaults to the full report")

	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{
		ReportQuantity:      decimal.NewFromInt(6),
		QualifiedQuantity:   decimal.NewFromInt(5),
		UnqualifiedQuantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	refreshed, err := svc.Get(ctx, order.UUID)
	require.NoError(t, err)
	assert.True(t, refreshed.CompletedQuantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, refreshed.QualifiedQuantity.Equal(decimal.NewFromInt(9)))
	assert.True(t, refreshed.UnqualifiedQuantity.Equal(decimal.NewFromInt(1)))

	// The order is now fully reported.
	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{ReportQuantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	reports, err := svc.ListReports(ctx, order.UUID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestWorkOrderService_Report_Backflush(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-307", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-307", domain.SourceTypeBuy, nil)

	bomSvc := createBOMService(db)
	bom, err := bomSvc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: product.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(2)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, bomSvc, bom)

	inventory := createInventoryService(db)
	_, err = inventory.Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: raw.UUID,
		Quantity:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	order := createDraftWorkOrder(t, ctx, svc, product, 10)
	startWorkOrder(t, ctx, svc, order)

	report, err := svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{
		ReportQuantity: decimal.NewFromInt(5),
		Backflush:      true,
	})
	require.NoError(t, err)
	assert.True(t, report.Backflushed)

	rawAvailable, err := inventory.GetAvailable(ctx, raw.UUID)
	require.NoError(t, err)
	assert.True(t, rawAvailable.Equal(decimal.NewFromInt(90)), "5 qualified consumed 10 raw, got %s", rawAvailable)

	productAvailable, err := inventory.GetAvailable(ctx, product.UUID)
	require.NoError(t, err)
	assert.True(t, productAvailable.Equal(decimal.NewFromInt(5)))
}

func TestWorkOrderService_Report_BackflushInsufficientStockRollsBack(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-308", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-308", domain.SourceTypeBuy, nil)

	bomSvc := createBOMService(db)
	bom, err := bomSvc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: product.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(2)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, bomSvc, bom)

	inventory := createInventoryService(db)
	_, err = inventory.Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: raw.UUID,
		Quantity:     decimal.NewFromInt(3),
	})
	require.NoError(t, err)

	order := createDraftWorkOrder(t, ctx, svc, product, 10)
	startWorkOrder(t, ctx, svc, order)

	_, err = svc.Report(ctx, order.UUID, &domain.ReportWorkRequest{
		ReportQuantity: decimal.NewFromInt(5),
		Backflush:      true,
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInsufficientStock))

	// The whole report rolled back: quantities and stock are untouched.
	refreshed, err := svc.Get(ctx, order.UUID)
	require.NoError(t, err)
	assert.True(t, refreshed.CompletedQuantity.IsZero())

	rawAvailable, err := inventory.GetAvailable(ctx, raw.UUID)
	require.NoError(t, err)
	assert.True(t, rawAvailable.Equal(decimal.NewFromInt(3)))
}

func TestWorkOrderService_ScrapFlow(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-309", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)

	_, err := svc.RecordScrap(ctx, order.UUID, &domain.ScrapRequest{
		Quantity: decimal.NewFromInt(1),
		Reason:   "surface defect",
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic), "scrap needs an in_progress order")

	startWorkOrder(t, ctx, svc, order)

	record, err := svc.RecordScrap(ctx, order.UUID, &domain.ScrapRequest{
		Quantity:   decimal.NewFromInt(2),
		Reason:     "surface defect",
		DefectCode: "D-14",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScrapStatusPending, record.Status)

	_, err = svc.ReviewScrap(ctx, record.UUID, "shredded")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	reviewed, err := svc.ReviewScrap(ctx, record.UUID, domain.ScrapStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.ScrapStatusApproved, reviewed.Status)

	// Dispositioned records are final.
	_, err = svc.ReviewScrap(ctx, record.UUID, domain.ScrapStatusRejected)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	records, err := svc.ListScrap(ctx, order.UUID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWorkOrderService_GenerateFromComputation(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-310", domain.SourceTypeMake, nil)
	outsourced := seedMaterial(t, ctx, db, "SEMI-310", domain.SourceTypeOutsource, nil)

	now := time.Now()
	computation := &domain.DemandComputation{
		ComputationCode:   "MRP0001",
		ComputationType:   domain.ComputationTypeMRP,
		ComputationStatus: domain.ComputationStatusCompleted,
		StartedAt:         &now,
		CompletedAt:       &now,
	}
	computation.TenantID = 1
	require.NoError(t, db.Create(computation).Error)

	items := []domain.DemandComputationItem{
		{
			ComputationID:              computation.ID,
			MaterialID:                 product.ID,
			MaterialCode:               product.MainCode,
			SourceType:                 domain.SourceTypeMake,
			NetRequirement:             decimal.NewFromInt(40),
			SuggestedWorkOrderQuantity: decimal.NewFromInt(40),
		},
		{
			ComputationID:              computation.ID,
			MaterialID:                 outsourced.ID,
			MaterialCode:               outsourced.MainCode,
			SourceType:                 domain.SourceTypeOutsource,
			NetRequirement:             decimal.NewFromInt(15),
			SuggestedWorkOrderQuantity: decimal.NewFromInt(15),
		},
	}
	for i := range items {
		items[i].TenantID = 1
		require.NoError(t, db.Create(&items[i]).Error)
	}

	result, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)

	orders, _, err := svc.List(ctx, 0, 50, domain.WorkOrderStatusDraft)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, orders[0].ComputationID)

	outsourceOrders, _, err := svc.ListOutsource(ctx, 0, 50, domain.WorkOrderStatusDraft)
	require.NoError(t, err)
	require.Len(t, outsourceOrders, 1)
	assert.Equal(t, "SUP-001", outsourceOrders[0].SupplierCode)
	assert.Equal(t, "plating", outsourceOrders[0].OutsourceOperation)

	// Every generated document is linked back to the computation.
	edges, err := createRelationService(db).Downstream(ctx, domain.DocTypeDemandComputation, computation.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestWorkOrderService_GenerateFromComputation_RequiresCompleted(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)

	now := time.Now()
	computation := &domain.DemandComputation{
		ComputationCode:   "MRP0002",
		ComputationType:   domain.ComputationTypeMRP,
		ComputationStatus: domain.ComputationStatusRunning,
		StartedAt:         &now,
	}
	computation.TenantID = 1
	require.NoError(t, db.Create(computation).Error)

	_, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestWorkOrderService_OutsourceIssueAndReceive(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	outsourced := seedMaterial(t, ctx, db, "SEMI-320", domain.SourceTypeOutsource, nil)
	raw := seedMaterial(t, ctx, db, "RAW-320", domain.SourceTypeBuy, nil)

	inventory := createInventoryService(db)
	_, err := inventory.Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: raw.UUID,
		Quantity:     decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	order := &domain.OutsourceWorkOrder{
		Code:               "OWO0001",
		ProductID:          outsourced.ID,
		ProductCode:        outsourced.MainCode,
		Quantity:           decimal.NewFromInt(20),
		Priority:           domain.PriorityNormal,
		Status:             domain.WorkOrderStatusReleased,
		SupplierCode:       "SUP-001",
		SupplierName:       "Test Supplier",
		OutsourceOperation: "plating",
	}
	order.TenantID = 1
	require.NoError(t, db.Create(order).Error)

	issue, err := svc.IssueToOutsource(ctx, order.UUID, &domain.OutsourceMovementRequest{
		MaterialUUID: raw.UUID,
		Quantity:     decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "RAW-320", issue.MaterialCode)

	// Issuing starts the order and consumes supplier-bound stock.
	refreshed, err := svc.GetOutsource(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusInProgress, refreshed.Status)

	rawAvailable, err := inventory.GetAvailable(ctx, raw.UUID)
	require.NoError(t, err)
	assert.True(t, rawAvailable.Equal(decimal.NewFromInt(30)))

	receipt, err := svc.ReceiveFromOutsource(ctx, order.UUID, &domain.OutsourceMovementRequest{
		MaterialUUID:      outsourced.UUID,
		Quantity:          decimal.NewFromInt(20),
		QualifiedQuantity: decimal.NewFromInt(18),
	})
	require.NoError(t, err)
	assert.True(t, receipt.QualifiedQuantity.Equal(decimal.NewFromInt(18)))

	// A full receipt completes the order; only qualified parts hit stock.
	refreshed, err = svc.GetOutsource(ctx, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCompleted, refreshed.Status)
	assert.True(t, refreshed.UnqualifiedQuantity.Equal(decimal.NewFromInt(2)))

	received, err := inventory.GetAvailable(ctx, outsourced.UUID)
	require.NoError(t, err)
	assert.True(t, received.Equal(decimal.NewFromInt(18)))
}

func TestWorkOrderService_TenantIsolation(t *testing.T) {
	db, svc, ctx := setupWorkOrderTest(t)
	product := seedMaterial(t, ctx, db, "FIN-330", domain.SourceTypeMake, nil)
	order := createDraftWorkOrder(t, ctx, svc, product, 10)

	_, err := svc.Get(testContextForTenant(2), order.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}
