package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupComputationTest(t *testing.T) (*gorm.DB, *service.ComputationService, context.Context) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "DEMAND", "DM{SEQ:4}")
	seedRule(t, ctx, db, "COMPUTATION", "MRP{SEQ:4}")
	seedRule(t, ctx, db, "BOM", "BOM{SEQ:4}")
	return db, createComputationService(db), ctx
}

// seedApprovedDemand creates a single-item sales order demand and moves
// it through review.
func seedApprovedDemand(t *testing.T, ctx context.Context, db *gorm.DB, material *domain.Material, quantity decimal.Decimal) *domain.Demand {
	t.Helper()

	svc := createDemandService(db)
	ordered := time.Now()
	delivery := time.Now().AddDate(0, 0, 7)
	demand, err := svc.Create(ctx, &domain.CreateDemandRequest{
		DemandType:   domain.DemandTypeSalesOrder,
		BusinessMode: domain.BusinessModeMTO,
		CustomerCode: "CUST-01",
		CustomerName: "Acme",
		OrderDate:    &ordered,
		DeliveryDate: &delivery,
		Items: []domain.CreateDemandItemRequest{
			{MaterialUUID: material.UUID, RequiredQuantity: quantity},
		},
	})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, demand.UUID, "")
	require.NoError(t, err)
	return approved
}

func TestComputationService_Compute_NetsAgainstInventory(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-100", domain.SourceTypeMake, nil)

	_, err := createInventoryService(db).Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: product.UUID,
		Quantity:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(100))

	computation, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ComputationStatusCompleted, computation.ComputationStatus)
	assert.Equal(t, domain.BusinessModeMTO, computation.BusinessMode)
	require.Len(t, computation.Items, 1)

	item := computation.Items[0]
	assert.Equal(t, "FIN-100", item.MaterialCode)
	assert.True(t, item.GrossRequirement.Equal(decimal.NewFromInt(100)))
	assert.True(t, item.AvailableInventory.Equal(decimal.NewFromInt(30)))
	assert.True(t, item.NetRequirement.Equal(decimal.NewFromInt(70)), "got %s", item.NetRequirement)
	assert.True(t, item.SuggestedWorkOrderQuantity.Equal(decimal.NewFromInt(70)))
	assert.True(t, item.SuggestedPurchaseOrderQuantity.IsZero())

	// Planned receipts are scheduled supply, an input to netting; the
	// suggestion itself must not be echoed back as supply or total
	// planned coverage double-counts the net requirement.
	assert.True(t, item.PlannedReceipt.IsZero())
	assert.True(t, item.SuggestedWorkOrderQuantity.Add(item.PlannedReceipt).Equal(item.NetRequirement))

	// A completed run gets its created node stamped.
	nodes, err := createTimingService(db).List(ctx, domain.DocTypeDemandComputation, computation.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "created", nodes[0].NodeCode)
	assert.NotNil(t, nodes[0].StartTime)
}

func TestComputationService_Compute_DependentBuyRequirement(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-101", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-101", domain.SourceTypeBuy, nil)

	bomSvc := createBOMService(db)
	bom, err := bomSvc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: product.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(3)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, bomSvc, bom)

	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(10))

	computation, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)
	require.Len(t, computation.Items, 2)

	byCode := map[string]domain.DemandComputationItem{}
	for _, item := range computation.Items {
		byCode[item.MaterialCode] = item
	}

	assert.True(t, byCode["FIN-101"].SuggestedWorkOrderQuantity.Equal(decimal.NewFromInt(10)))

	rawItem := byCode["RAW-101"]
	assert.True(t, rawItem.GrossRequirement.Equal(decimal.NewFromInt(30)))
	assert.True(t, rawItem.SuggestedPurchaseOrderQuantity.Equal(decimal.NewFromInt(30)))
	assert.True(t, rawItem.SuggestedWorkOrderQuantity.IsZero())
}

func TestComputationService_Compute_SafetyStockRaisesNet(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-102", domain.SourceTypeMake, func(req *domain.CreateMaterialRequest) {
		req.SafetyStock = decimal.NewFromInt(20)
	})

	_, err := createInventoryService(db).Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: product.UUID,
		Quantity:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(100))

	computation, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)
	require.Len(t, computation.Items, 1)

	// 100 + 20 safety - 30 on hand = 90.
	assert.True(t, computation.Items[0].NetRequirement.Equal(decimal.NewFromInt(90)), "got %s", computation.Items[0].NetRequirement)
}

func TestComputationService_Compute_MergesDemandsForSameMaterial(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-107", domain.SourceTypeMake, nil)

	_, err := createInventoryService(db).Increase(ctx, &domain.StockMovementRequest{
		MaterialUUID: product.UUID,
		Quantity:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	first := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(50))
	second := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(50))

	computation, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{first.UUID, second.UUID},
	})
	require.NoError(t, err)

	// Both demands consolidate into one item per material.
	require.Len(t, computation.Items, 1)
	item := computation.Items[0]
	assert.True(t, item.GrossRequirement.Equal(decimal.NewFromInt(100)))
	assert.True(t, item.AvailableInventory.Equal(decimal.NewFromInt(30)))
	assert.True(t, item.NetRequirement.Equal(decimal.NewFromInt(70)))

	demandSvc := createDemandService(db)
	for _, id := range []uuid.UUID{first.UUID, second.UUID} {
		demand, err := demandSvc.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, demand.PushedToComputation)
	}
}

func TestComputationService_Compute_UnapprovedDemandRecordsFailure(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-103", domain.SourceTypeMake, nil)

	ordered := time.Now()
	delivery := time.Now().AddDate(0, 0, 7)
	demand, err := createDemandService(db).Create(ctx, &domain.CreateDemandRequest{
		DemandType:   domain.DemandTypeSalesOrder,
		BusinessMode: domain.BusinessModeMTO,
		CustomerCode: "CUST-01",
		CustomerName: "Acme",
		OrderDate:    &ordered,
		DeliveryDate: &delivery,
		Items: []domain.CreateDemandItemRequest{
			{MaterialUUID: product.UUID, RequiredQuantity: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)

	_, err = svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	// The failed attempt stays visible.
	runs, _, err := svc.List(ctx, 0, 50, "", domain.ComputationStatusFailed)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, strings.HasPrefix(runs[0].ComputationCode, "FAILED-"))
	assert.NotEmpty(t, runs[0].ErrorMessage)
}

func TestComputationService_Compute_PushedDemandNeedsRecomputeFlag(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-104", domain.SourceTypeMake, nil)
	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(10))

	_, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)

	_, err = svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	_, err = svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
		AllowRecompute:  true,
	})
	require.NoError(t, err)
}

func TestComputationService_Compute_MixedBusinessModesRefused(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-105", domain.SourceTypeMake, nil)

	mto := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(10))

	demandSvc := createDemandService(db)
	mts, err := demandSvc.Create(ctx, &domain.CreateDemandRequest{
		DemandType:     domain.DemandTypeSalesForecast,
		BusinessMode:   domain.BusinessModeMTS,
		ForecastPeriod: "2026-09",
		Items: []domain.CreateDemandItemRequest{
			{MaterialUUID: product.UUID, RequiredQuantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	_, err = demandSvc.Approve(ctx, mts.UUID, "")
	require.NoError(t, err)

	_, err = svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{mto.UUID, mts.UUID},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestComputationService_Compute_MarksDemandPushedAndRecordsRelation(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-106", domain.SourceTypeMake, nil)
	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(10))

	computation, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)

	refreshed, err := createDemandService(db).Get(ctx, demand.UUID)
	require.NoError(t, err)
	assert.True(t, refreshed.PushedToComputation)

	edges, err := createRelationService(db).Downstream(ctx, domain.DocTypeDemand, demand.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.DocTypeDemandComputation, edges[0].TargetType)
	assert.Equal(t, computation.ID, edges[0].TargetID)
	assert.Equal(t, domain.RelationKindPushed, edges[0].Kind)
}

func TestComputationService_Compute_UnknownDemand(t *testing.T) {
	_, svc, ctx := setupComputationTest(t)

	_, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestComputationService_ExpireStale(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)

	started := time.Now().Add(-2 * time.Hour)
	stale := &domain.DemandComputation{
		ComputationCode:   "MRP9999",
		ComputationType:   domain.ComputationTypeMRP,
		ComputationStatus: domain.ComputationStatusRunning,
		StartedAt:         &started,
	}
	stale.TenantID = 1
	require.NoError(t, db.Create(stale).Error)

	n, err := svc.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	refreshed, err := svc.Get(ctx, stale.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComputationStatusFailed, refreshed.ComputationStatus)
}

func TestComputationRepository_PurgeTenant(t *testing.T) {
	db, svc, ctx := setupComputationTest(t)
	product := seedMaterial(t, ctx, db, "FIN-130", domain.SourceTypeMake, nil)
	demand := seedApprovedDemand(t, ctx, db, product, decimal.NewFromInt(10))

	_, err := svc.Compute(ctx, &domain.ComputeRequest{
		ComputationType: domain.ComputationTypeMRP,
		DemandUUIDs:     []uuid.UUID{demand.UUID},
	})
	require.NoError(t, err)

	require.NoError(t, repository.NewComputationRepository(db).PurgeTenant(ctx, 1))

	_, total, err := svc.List(ctx, 0, 20, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	var itemCount int64
	require.NoError(t, db.Unscoped().Model(&domain.DemandComputationItem{}).Count(&itemCount).Error)
	assert.Equal(t, int64(0), itemCount)
}
