package service_test

import (
	"context"
	"testing"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupBOMTest(t *testing.T) (*gorm.DB, *service.BOMService, context.Context) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "BOM", "BOM{SEQ:4}")
	return db, createBOMService(db), ctx
}

func approveBOM(t *testing.T, ctx context.Context, svc *service.BOMService, bom *domain.BOM) *domain.BOM {
	t.Helper()
	_, err := svc.Submit(ctx, bom.UUID)
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, bom.UUID, "ok")
	require.NoError(t, err)
	return approved
}

func TestBOMService_Create(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-001", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-001", domain.SourceTypeBuy, nil)

	bom, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(2), ScrapRate: decimal.NewFromFloat(0.1)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "BOM0001", bom.Code)
	assert.Equal(t, "A", bom.Version)
	assert.Equal(t, domain.BOMStatusDraft, bom.Status)
	require.Len(t, bom.Items, 1)
	assert.Equal(t, "pcs", bom.Items[0].Unit, "unit defaults to the component base unit")
}

func TestBOMService_Create_BuyParentRefused(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "RAW-002", domain.SourceTypeBuy, nil)
	component := seedMaterial(t, ctx, db, "RAW-003", domain.SourceTypeBuy, nil)

	_, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestBOMService_Create_SelfComponentRefused(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-002", domain.SourceTypeMake, nil)

	_, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: parent.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.Error(t, err)
	kind, ok := domain.FailureKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ComputationFailureBOMCycle, kind)
}

func TestBOMService_Create_DuplicateComponentRefused(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-003", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-004", domain.SourceTypeBuy, nil)

	_, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(1)},
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(3)},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestBOMService_Create_ScrapRateRange(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-004", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-005", domain.SourceTypeBuy, nil)

	_, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(1), ScrapRate: decimal.NewFromInt(1)},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestBOMService_Create_CycleRefused(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	a := seedMaterial(t, ctx, db, "SEMI-A", domain.SourceTypeMake, nil)
	b := seedMaterial(t, ctx, db, "SEMI-B", domain.SourceTypeMake, nil)

	_, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: a.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: b.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	// B -> A would close the loop A -> B -> A.
	_, err = svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: b.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: a.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.Error(t, err)
	kind, ok := domain.FailureKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ComputationFailureBOMCycle, kind)
}

func TestBOMService_ReviewFlow(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-005", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-006", domain.SourceTypeBuy, nil)

	bom, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	// Approval straight from draft is refused.
	_, err = svc.Approve(ctx, bom.UUID, "")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	submitted, err := svc.Submit(ctx, bom.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.BOMStatusPendingReview, submitted.Status)

	rejected, err := svc.Reject(ctx, bom.UUID, "wrong quantity")
	require.NoError(t, err)
	assert.Equal(t, domain.BOMStatusRejected, rejected.Status)
	require.NotEmpty(t, rejected.ReviewRemarks)
	assert.Equal(t, "reject", rejected.ReviewRemarks[len(rejected.ReviewRemarks)-1].Action)

	// Rejected BOMs can be resubmitted.
	_, err = svc.Submit(ctx, bom.UUID)
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, bom.UUID, "looks right now")
	require.NoError(t, err)
	assert.Equal(t, domain.BOMStatusApproved, approved.Status)

	err = svc.Delete(ctx, bom.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestBOMService_Delete_Draft(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-006", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-007", domain.SourceTypeBuy, nil)

	bom, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, bom.UUID))
	_, err = svc.Get(ctx, bom.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestBOMService_Explode_ScrapGrossUp(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-010", domain.SourceTypeMake, nil)
	component := seedMaterial(t, ctx, db, "RAW-010", domain.SourceTypeBuy, nil)

	bom, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: component.UUID, Quantity: decimal.NewFromInt(2), ScrapRate: decimal.NewFromFloat(0.2)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, svc, bom)

	result, err := svc.Explode(ctx, parent.UUID, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, result, 1)

	// 10 * 2 / (1 - 0.2) = 25 inputs to keep 20 good parts.
	assert.Equal(t, "RAW-010", result[0].MaterialCode)
	assert.True(t, result[0].Quantity.Equal(decimal.NewFromInt(25)), "got %s", result[0].Quantity)
	assert.Equal(t, 1, result[0].Level)
}

func TestBOMService_Explode_PhantomFlattened(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-011", domain.SourceTypeMake, nil)
	phantom := seedMaterial(t, ctx, db, "PH-001", domain.SourceTypePhantom, nil)
	raw := seedMaterial(t, ctx, db, "RAW-011", domain.SourceTypeBuy, nil)

	phantomBOM, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: phantom.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(3)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, svc, phantomBOM)

	parentBOM, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: phantom.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, svc, parentBOM)

	result, err := svc.Explode(ctx, parent.UUID, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.Len(t, result, 1, "the phantom itself must not appear")
	assert.Equal(t, "RAW-011", result[0].MaterialCode)
	assert.True(t, result[0].Quantity.Equal(decimal.NewFromInt(6)))
}

func TestBOMService_Explode_AggregatesAcrossPaths(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-012", domain.SourceTypeMake, nil)
	semi := seedMaterial(t, ctx, db, "SEMI-012", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-012", domain.SourceTypeBuy, nil)

	semiBOM, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: semi.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(2)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, svc, semiBOM)

	parentBOM, err := svc.Create(ctx, &domain.CreateBOMRequest{
		ParentMaterialUUID: parent.UUID,
		Items: []domain.CreateBOMItemRequest{
			{ComponentMaterialUUID: semi.UUID, Quantity: decimal.NewFromInt(1)},
			{ComponentMaterialUUID: raw.UUID, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)
	approveBOM(t, ctx, svc, parentBOM)

	result, err := svc.Explode(ctx, parent.UUID, decimal.NewFromInt(1))
	require.NoError(t, err)

	byCode := map[string]service.ExplodedRequirement{}
	for _, r := range result {
		byCode[r.MaterialCode] = r
	}
	require.Len(t, byCode, 2)

	// Raw demand merges the direct line and the line through the
	// semi-finished component: 1 + 1*2 = 3.
	assert.True(t, byCode["RAW-012"].Quantity.Equal(decimal.NewFromInt(3)), "got %s", byCode["RAW-012"].Quantity)
	assert.Equal(t, 2, byCode["RAW-012"].Level, "deepest path wins")
	assert.True(t, byCode["SEMI-012"].Quantity.Equal(decimal.NewFromInt(1)))
}

func TestBOMService_Explode_DepthCap(t *testing.T) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "BOM", "BOM{SEQ:4}")

	planning := testPlanningConfig()
	planning.MaxBOMDepth = 2
	svc := createBOMServiceWithPlanning(db, planning)

	top := seedMaterial(t, ctx, db, "FIN-013", domain.SourceTypeMake, nil)
	mid := seedMaterial(t, ctx, db, "SEMI-013", domain.SourceTypeMake, nil)
	low := seedMaterial(t, ctx, db, "SEMI-014", domain.SourceTypeMake, nil)
	raw := seedMaterial(t, ctx, db, "RAW-013", domain.SourceTypeBuy, nil)

	for _, pair := range []struct {
		parent, child *domain.Material
	}{
		{low, raw},
		{mid, low},
		{top, mid},
	} {
		bom, err := svc.Create(ctx, &domain.CreateBOMRequest{
			ParentMaterialUUID: pair.parent.UUID,
			Items: []domain.CreateBOMItemRequest{
				{ComponentMaterialUUID: pair.child.UUID, Quantity: decimal.NewFromInt(1)},
			},
		})
		require.NoError(t, err)
		approveBOM(t, ctx, svc, bom)
	}

	_, err := svc.Explode(ctx, top.UUID, decimal.NewFromInt(1))
	require.Error(t, err)
	kind, ok := domain.FailureKind(err)
	require.True(t, ok)
	assert.Equal(t, domain.ComputationFailureBOMCycle, kind)
}

func TestBOMService_Explode_NoApprovedBOMIsLeaf(t *testing.T) {
	db, svc, ctx := setupBOMTest(t)
	parent := seedMaterial(t, ctx, db, "FIN-014", domain.SourceTypeMake, nil)

	result, err := svc.Explode(ctx, parent.UUID, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Empty(t, result)
}
