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

func setupDemandTest(t *testing.T) (*gorm.DB, *service.DemandService, context.Context) {
	db := setupServiceTestDB(t)
	ctx := testContext()
	seedRule(t, ctx, db, "DEMAND", "DM{SEQ:4}")
	return db, createDemandService(db), ctx
}

func TestDemandService_Create_SalesOrder(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-200", domain.SourceTypeMake, nil)

	ordered := time.Now()
	delivery := time.Now().AddDate(0, 0, 14)
	demand, err := svc.Create(ctx, &domain.CreateDemandRequest{
		DemandType:   domain.DemandTypeSalesOrder,
		BusinessMode: domain.BusinessModeMTO,
		CustomerCode: "CUST-01",
		CustomerName: "Acme",
		OrderDate:    &ordered,
		DeliveryDate: &delivery,
		Items: []domain.CreateDemandItemRequest{
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromFloat(19.99)},
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(5.005)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "DM0001", demand.DemandCode)
	assert.Equal(t, domain.ReviewStatusPending, demand.ReviewStatus)
	require.Len(t, demand.Items, 2)

	// Line amounts round half-up to two decimals before summing.
	assert.True(t, demand.Items[0].ItemAmount.Equal(decimal.NewFromFloat(59.97)))
	assert.True(t, demand.Items[1].ItemAmount.Equal(decimal.NewFromFloat(10.01)), "got %s", demand.Items[1].ItemAmount)
	assert.True(t, demand.TotalQuantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, demand.TotalAmount.Equal(decimal.NewFromFloat(69.98)))
	assert.True(t, demand.Items[0].RemainingQuantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, domain.DeliveryStatusPending, demand.Items[0].DeliveryStatus)
}

func TestDemandService_Create_Validation(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-201", domain.SourceTypeMake, nil)
	ordered := time.Now()
	delivery := time.Now().AddDate(0, 0, 14)

	cases := []struct {
		name string
		req  *domain.CreateDemandRequest
	}{
		{
			name: "forecast without period",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesForecast,
				BusinessMode: domain.BusinessModeMTS,
				Items: []domain.CreateDemandItemRequest{
					{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
				},
			},
		},
		{
			name: "sales order without delivery date",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesOrder,
				BusinessMode: domain.BusinessModeMTO,
				CustomerCode: "CUST-01",
				CustomerName: "Acme",
				OrderDate:    &ordered,
				Items: []domain.CreateDemandItemRequest{
					{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
				},
			},
		},
		{
			name: "sales order without order date",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesOrder,
				BusinessMode: domain.BusinessModeMTO,
				CustomerCode: "CUST-01",
				CustomerName: "Acme",
				DeliveryDate: &delivery,
				Items: []domain.CreateDemandItemRequest{
					{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
				},
			},
		},
		{
			name: "make-to-order without customer",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesOrder,
				BusinessMode: domain.BusinessModeMTO,
				OrderDate:    &ordered,
				DeliveryDate: &delivery,
				Items: []domain.CreateDemandItemRequest{
					{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
				},
			},
		},
		{
			name: "unknown demand type",
			req: &domain.CreateDemandRequest{
				DemandType:   "wishlist",
				BusinessMode: domain.BusinessModeMTO,
			},
		},
		{
			name: "unknown business mode",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesOrder,
				BusinessMode: "JIT",
			},
		},
		{
			name: "nonpositive quantity",
			req: &domain.CreateDemandRequest{
				DemandType:   domain.DemandTypeSalesOrder,
				BusinessMode: domain.BusinessModeMTO,
				CustomerCode: "CUST-01",
				CustomerName: "Acme",
				OrderDate:    &ordered,
				DeliveryDate: &delivery,
				Items: []domain.CreateDemandItemRequest{
					{MaterialUUID: material.UUID, RequiredQuantity: decimal.Zero},
				},
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

func TestDemandService_ReviewFlow(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-202", domain.SourceTypeMake, nil)

	demand, err := svc.Create(ctx, &domain.CreateDemandRequest{
		DemandType:     domain.DemandTypeSalesForecast,
		BusinessMode:   domain.BusinessModeMTS,
		ForecastPeriod: "2026-09",
		Items: []domain.CreateDemandItemRequest{
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, demand.UUID, "numbers look off")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusRejected, rejected.ReviewStatus)
	require.NotEmpty(t, rejected.ReviewRemarks)
	assert.Equal(t, "reject", rejected.ReviewRemarks[len(rejected.ReviewRemarks)-1].Action)
	assert.Equal(t, "numbers look off", rejected.ReviewRemarks[len(rejected.ReviewRemarks)-1].Remark)

	// Only pending demands can be reviewed.
	_, err = svc.Approve(ctx, demand.UUID, "")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))

	reopened, err := svc.Reopen(ctx, demand.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusPending, reopened.ReviewStatus)

	approved, err := svc.Approve(ctx, demand.UUID, "revised")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusApproved, approved.ReviewStatus)

	// Reopen only applies to rejected demands.
	_, err = svc.Reopen(ctx, demand.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestDemandService_Delete_PushedRefused(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-203", domain.SourceTypeMake, nil)

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
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&domain.Demand{}).Where("id = ?", demand.ID).
		Update("pushed_to_computation", true).Error)

	err = svc.Delete(ctx, demand.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestDemandService_Delete(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-204", domain.SourceTypeMake, nil)

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
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(1)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, demand.UUID))
	_, err = svc.Get(ctx, demand.UUID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestDemandService_RecordDelivery(t *testing.T) {
	db, svc, ctx := setupDemandTest(t)
	material := seedMaterial(t, ctx, db, "FIN-205", domain.SourceTypeMake, nil)

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
			{MaterialUUID: material.UUID, RequiredQuantity: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	itemID := demand.Items[0].UUID

	item, err := svc.RecordDelivery(ctx, itemID, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPartial, item.DeliveryStatus)
	assert.True(t, item.RemainingQuantity.Equal(decimal.NewFromInt(6)))

	// Over-delivery clamps remaining at zero.
	item, err = svc.RecordDelivery(ctx, itemID, decimal.NewFromInt(9))
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDelivered, item.DeliveryStatus)
	assert.True(t, item.RemainingQuantity.IsZero())
	assert.True(t, item.DeliveredQuantity.Equal(decimal.NewFromInt(13)))

	_, err = svc.RecordDelivery(ctx, itemID, decimal.Zero)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}
