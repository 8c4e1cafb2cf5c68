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

func setupPurchaseTest(t *testing.T) (*gorm.DB, *service.PurchaseService, context.Context) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "PURCHASE_REQUISITION", "PR{SEQ:4}")
	seedRule(t, ctx, db, "PURCHASE_ORDER", "PO{SEQ:4}")
	return db, createPurchaseService(db), ctx
}

// seedCompletedComputation inserts a finished run with one Buy
// suggestion and one Make suggestion.
func seedCompletedComputation(t *testing.T, ctx context.Context, db *gorm.DB) (*domain.DemandComputation, *domain.Material) {
	t.Helper()

	raw := seedMaterial(t, ctx, db, "RAW-500", domain.SourceTypeBuy, nil)
	product := seedMaterial(t, ctx, db, "FIN-500", domain.SourceTypeMake, nil)

	now := time.Now()
	computation := &domain.DemandComputation{
		ComputationCode:   "MRP0500",
		ComputationType:   domain.ComputationTypeMRP,
		ComputationStatus: domain.ComputationStatusCompleted,
		StartedAt:         &now,
		CompletedAt:       &now,
	}
	computation.TenantID = 1
	require.NoError(t, db.Create(computation).Error)

	items := []domain.DemandComputationItem{
		{
			ComputationID:                  computation.ID,
			MaterialID:                     raw.ID,
			MaterialCode:                   raw.MainCode,
			SourceType:                     domain.SourceTypeBuy,
			NetRequirement:                 decimal.NewFromInt(60),
			SuggestedPurchaseOrderQuantity: decimal.NewFromInt(60),
		},
		{
			ComputationID:              computation.ID,
			MaterialID:                 product.ID,
			MaterialCode:               product.MainCode,
			SourceType:                 domain.SourceTypeMake,
			NetRequirement:             decimal.NewFromInt(10),
			SuggestedWorkOrderQuantity: decimal.NewFromInt(10),
		},
	}
	for i := range items {
		items[i].TenantID = 1
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return computation, raw
}

func TestPurchaseService_GenerateFromComputation(t *testing.T) {
	db, svc, ctx := setupPurchaseTest(t)
	computation, raw := seedCompletedComputation(t, ctx, db)

	requisition, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.NoError(t, err)
	assert.Equal(t, "PR0001", requisition.Code)
	assert.Equal(t, domain.PurchaseStatusDraft, requisition.Status)

	// Only the Buy suggestion becomes a requisition line.
	require.Len(t, requisition.Items, 1)
	assert.Equal(t, raw.MainCode, requisition.Items[0].MaterialCode)
	assert.True(t, requisition.Items[0].Quantity.Equal(decimal.NewFromInt(60)))

	edges, err := createRelationService(db).Downstream(ctx, domain.DocTypeDemandComputation, computation.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.DocTypePurchaseRequisition, edges[0].TargetType)
}

func TestPurchaseService_GenerateFromComputation_NoBuySuggestions(t *testing.T) {
	db, svc, ctx := setupPurchaseTest(t)
	product := seedMaterial(t, ctx, db, "FIN-501", domain.SourceTypeMake, nil)

	now := time.Now()
	computation := &domain.DemandComputation{
		ComputationCode:   "MRP0501",
		ComputationType:   domain.ComputationTypeMRP,
		ComputationStatus: domain.ComputationStatusCompleted,
		StartedAt:         &now,
		CompletedAt:       &now,
	}
	computation.TenantID = 1
	require.NoError(t, db.Create(computation).Error)

	item := domain.DemandComputationItem{
		ComputationID:              computation.ID,
		MaterialID:                 product.ID,
		MaterialCode:               product.MainCode,
		SourceType:                 domain.SourceTypeMake,
		SuggestedWorkOrderQuantity: decimal.NewFromInt(10),
	}
	item.TenantID = 1
	require.NoError(t, db.Create(&item).Error)

	_, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestPurchaseService_RequisitionReviewAndPush(t *testing.T) {
	db, svc, ctx := setupPurchaseTest(t)
	computation, raw := seedCompletedComputation(t, ctx, db)

	requisition, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.NoError(t, err)

	// A draft cannot be approved before submission.
	_, err = svc.ApproveRequisition(ctx, requisition.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	// A draft cannot be pushed either.
	_, err = svc.PushRequisition(ctx, requisition.UUID, "SUP-001", "Test Supplier")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	submitted, err := svc.SubmitRequisition(ctx, requisition.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusSubmitted, submitted.Status)

	approved, err := svc.ApproveRequisition(ctx, requisition.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusApproved, approved.Status)

	order, err := svc.PushRequisition(ctx, requisition.UUID, "SUP-001", "Test Supplier")
	require.NoError(t, err)
	assert.Equal(t, "PO0001", order.Code)
	assert.Equal(t, "SUP-001", order.SupplierCode)
	require.Len(t, order.Items, 1)
	assert.Equal(t, raw.MainCode, order.Items[0].MaterialCode)

	// Pushing closes the requisition and links the order to it.
	refreshed, err := svc.GetRequisition(ctx, requisition.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusClosed, refreshed.Status)

	edges, err := createRelationService(db).Downstream(ctx, domain.DocTypePurchaseRequisition, requisition.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, domain.DocTypePurchaseOrder, edges[0].TargetType)
	assert.Equal(t, domain.RelationKindPushed, edges[0].Kind)

	nodes, err := createTimingService(db).List(ctx, domain.DocTypePurchaseOrder, order.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "created", nodes[0].NodeCode)
}

func TestPurchaseService_RejectRequisition(t *testing.T) {
	db, svc, ctx := setupPurchaseTest(t)
	computation, _ := seedCompletedComputation(t, ctx, db)

	requisition, err := svc.GenerateFromComputation(ctx, computation.UUID)
	require.NoError(t, err)

	_, err = svc.SubmitRequisition(ctx, requisition.UUID)
	require.NoError(t, err)
	rejected, err := svc.RejectRequisition(ctx, requisition.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusRejected, rejected.Status)
}
