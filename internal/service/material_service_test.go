package service_test

import (
	"testing"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialService_Create(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()

	material, err := svc.Create(ctx, &domain.CreateMaterialRequest{
		MainCode:     "FIN-400",
		Name:         "Gearbox",
		MaterialType: domain.MaterialTypeFinished,
		BaseUnit:     "pcs",
		SourceType:   domain.SourceTypeMake,
		SafetyStock:  decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "FIN-400", material.MainCode)
	assert.Equal(t, 2, material.UnitPrecision, "precision defaults to 2")
	assert.True(t, material.SafetyStock.Equal(decimal.NewFromInt(5)))
	assert.NotEqual(t, uint(0), material.ID)
}

func TestMaterialService_Create_GeneratesCodeWhenEmpty(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "MATERIAL", "MAT{SEQ:5}")

	material, err := svc.Create(ctx, &domain.CreateMaterialRequest{
		Name:         "Unnamed part",
		MaterialType: domain.MaterialTypeRaw,
		BaseUnit:     "pcs",
		SourceType:   domain.SourceTypeBuy,
	})
	require.NoError(t, err)
	assert.Equal(t, "MAT00001", material.MainCode)
}

func TestMaterialService_Create_DuplicateCodeRefused(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()

	req := &domain.CreateMaterialRequest{
		MainCode:     "RAW-400",
		Name:         "Bolt",
		MaterialType: domain.MaterialTypeRaw,
		BaseUnit:     "pcs",
		SourceType:   domain.SourceTypeBuy,
	}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestMaterialService_Create_Validation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()

	cases := []struct {
		name string
		req  *domain.CreateMaterialRequest
	}{
		{
			name: "unknown material type",
			req: &domain.CreateMaterialRequest{
				MainCode:     "X-1",
				MaterialType: "imaginary",
				BaseUnit:     "pcs",
				SourceType:   domain.SourceTypeBuy,
			},
		},
		{
			name: "unknown source type",
			req: &domain.CreateMaterialRequest{
				MainCode:     "X-2",
				MaterialType: domain.MaterialTypeRaw,
				BaseUnit:     "pcs",
				SourceType:   "conjure",
			},
		},
		{
			name: "batch and serial together",
			req: &domain.CreateMaterialRequest{
				MainCode:      "X-3",
				MaterialType:  domain.MaterialTypeRaw,
				BaseUnit:      "pcs",
				SourceType:    domain.SourceTypeBuy,
				BatchManaged:  true,
				SerialManaged: true,
			},
		},
		{
			name: "outsource without supplier config",
			req: &domain.CreateMaterialRequest{
				MainCode:     "X-4",
				MaterialType: domain.MaterialTypeSemiFinished,
				BaseUnit:     "pcs",
				SourceType:   domain.SourceTypeOutsource,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
		})
	}
}

func TestMaterialService_Update(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	material := seedMaterial(t, ctx, db, "FIN-401", domain.SourceTypeMake, nil)

	updated, err := svc.Update(ctx, material.UUID, &domain.UpdateMaterialRequest{
		Name:         "Gearbox mk2",
		BaseUnit:     "pcs",
		SafetyStock:  decimal.NewFromInt(10),
		ReorderPoint: decimal.NewFromInt(3),
		LeadTimeDays: 14,
	})
	require.NoError(t, err)
	assert.Equal(t, "Gearbox mk2", updated.Name)
	assert.True(t, updated.SafetyStock.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 14, updated.LeadTimeDays)
	assert.Equal(t, "FIN-401", updated.MainCode, "main code is immutable")
}

func TestMaterialService_GetByMainCode(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	seedMaterial(t, ctx, db, "RAW-401", domain.SourceTypeBuy, nil)

	material, err := svc.GetByMainCode(ctx, "RAW-401")
	require.NoError(t, err)
	assert.Equal(t, "RAW-401", material.MainCode)

	_, err = svc.GetByMainCode(ctx, "RAW-MISSING")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestMaterialService_List_FiltersByType(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	seedMaterial(t, ctx, db, "RAW-402", domain.SourceTypeBuy, nil)
	seedMaterial(t, ctx, db, "FIN-402", domain.SourceTypeMake, nil)

	materials, total, err := svc.List(ctx, 0, 50, "", domain.MaterialTypeFinished)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, materials, 1)
	assert.Equal(t, "FIN-402", materials[0].MainCode)

	_, _, err = svc.List(ctx, 0, 50, "", "imaginary")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestMaterialService_Aliases(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	material := seedMaterial(t, ctx, db, "RAW-403", domain.SourceTypeBuy, nil)

	alias, err := svc.AddAlias(ctx, material.UUID, &domain.CreateMaterialAliasRequest{
		AliasKind: domain.AliasKindCustomer,
		AliasCode: "CUST-PART-9",
		OwnerCode: "CUST-01",
		OwnerName: "Acme",
	})
	require.NoError(t, err)
	assert.Equal(t, material.ID, alias.MaterialID)

	// The same binding cannot be registered twice.
	_, err = svc.AddAlias(ctx, material.UUID, &domain.CreateMaterialAliasRequest{
		AliasKind: domain.AliasKindCustomer,
		AliasCode: "CUST-PART-9",
		OwnerCode: "CUST-01",
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	// A different owner may reuse the code.
	_, err = svc.AddAlias(ctx, material.UUID, &domain.CreateMaterialAliasRequest{
		AliasKind: domain.AliasKindCustomer,
		AliasCode: "CUST-PART-9",
		OwnerCode: "CUST-02",
	})
	require.NoError(t, err)

	aliases, err := svc.ListAliases(ctx, material.UUID)
	require.NoError(t, err)
	assert.Len(t, aliases, 2)

	resolved, err := svc.ResolveAlias(ctx, "CUST-PART-9", domain.AliasKindCustomer)
	require.NoError(t, err)
	assert.Len(t, resolved, 2)

	_, err = svc.ResolveAlias(ctx, "NO-SUCH-CODE", domain.AliasKindCustomer)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))

	require.NoError(t, svc.RemoveAlias(ctx, alias.UUID))
	aliases, err = svc.ListAliases(ctx, material.UUID)
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
}

func TestMaterialService_Delete(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	material := seedMaterial(t, ctx, db, "RAW-404", domain.SourceTypeBuy, nil)

	require.NoError(t, svc.Delete(ctx, material.UUID))
	_, err := svc.Get(ctx, material.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestMaterialService_TenantIsolation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	material := seedMaterial(t, testContext(), db, "RAW-405", domain.SourceTypeBuy, nil)

	_, err := svc.Get(testContextForTenant(2), material.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestMaterialService_CreateBulk_PartialFailure(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	seedMaterial(t, ctx, db, "RAW-410", domain.SourceTypeBuy, nil)

	result, err := svc.CreateBulk(ctx, []domain.CreateMaterialRequest{
		{MainCode: "RAW-411", Name: "Washer", MaterialType: domain.MaterialTypeRaw, BaseUnit: "pcs", SourceType: domain.SourceTypeBuy},
		{MainCode: "RAW-410", Name: "Clash", MaterialType: domain.MaterialTypeRaw, BaseUnit: "pcs", SourceType: domain.SourceTypeBuy},
		{MainCode: "RAW-412", Name: "Spring", MaterialType: domain.MaterialTypeRaw, BaseUnit: "pcs", SourceType: domain.SourceTypeBuy},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, string(domain.ErrCodeBusinessLogic), result.Errors[0].Code)
	assert.Len(t, result.UUIDs, 2)
}

func TestMaterialService_UpdateBulk(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	material := seedMaterial(t, ctx, db, "RAW-413", domain.SourceTypeBuy, nil)

	result, err := svc.UpdateBulk(ctx, []domain.BulkUpdateMaterialRequest{
		{
			MaterialUUID: material.UUID,
			Update: domain.UpdateMaterialRequest{
				Name:         "Renamed",
				BaseUnit:     "pcs",
				LeadTimeDays: 7,
			},
		},
		{
			MaterialUUID: uuid.New(),
			Update:       domain.UpdateMaterialRequest{Name: "Ghost", BaseUnit: "pcs"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, string(domain.ErrCodeNotFound), result.Errors[0].Code)

	updated, err := svc.Get(ctx, material.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 7, updated.LeadTimeDays)
}

func TestMaterialService_DeleteBulk(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	a := seedMaterial(t, ctx, db, "RAW-414", domain.SourceTypeBuy, nil)
	b := seedMaterial(t, ctx, db, "RAW-415", domain.SourceTypeBuy, nil)

	result, err := svc.DeleteBulk(ctx, []uuid.UUID{a.UUID, uuid.New(), b.UUID})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)

	_, err = svc.Get(ctx, a.UUID)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestMaterialService_Export_CursorPaging(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createMaterialService(db)
	ctx := testContext()
	for _, code := range []string{"RAW-420", "RAW-421", "RAW-422"} {
		seedMaterial(t, ctx, db, code, domain.SourceTypeBuy, nil)
	}

	page, err := svc.Export(ctx, 0, 2)
	require.NoError(t, err)
	first, ok := page.Data.([]domain.Material)
	require.True(t, ok)
	require.Len(t, first, 2)
	assert.Equal(t, "RAW-420", first[0].MainCode)
	assert.Equal(t, "RAW-421", first[1].MainCode)
	assert.True(t, page.HasMore)
	assert.Equal(t, first[1].ID, page.NextCursor)

	page, err = svc.Export(ctx, page.NextCursor, 2)
	require.NoError(t, err)
	second, ok := page.Data.([]domain.Material)
	require.True(t, ok)
	require.Len(t, second, 1)
	assert.Equal(t, "RAW-422", second[0].MainCode)
	assert.False(t, page.HasMore)

	page, err = svc.Export(ctx, page.NextCursor, 2)
	require.NoError(t, err)
	third, ok := page.Data.([]domain.Material)
	require.True(t, ok)
	assert.Empty(t, third)
	assert.False(t, page.HasMore)
	assert.Equal(t, uint(0), page.NextCursor)
}
