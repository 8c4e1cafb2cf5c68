package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/database"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupServiceTestDB opens a throwaway sqlite database with the full
// schema. A file in t.TempDir keeps all pooled connections on the same
// database and vanishes with the test.
func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mes_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")
	return db
}

func testPlanningConfig() *config.PlanningConfig {
	return &config.PlanningConfig{
		CounterLockTimeout:         5,
		MaxBOMDepth:                10,
		DefaultPlanningHorizonDays: 30,
		WorkingHoursPerDay:         8,
		WorkdayStartHour:           9,
	}
}

func testContext() context.Context {
	return testContextForTenant(1)
}

func testContextForTenant(tenantID uint) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		TenantID:    tenantID,
		UserID:      "user-1",
		DisplayName: "Test User",
	})
}

func createCodeGeneratorService(db *gorm.DB) *service.CodeGeneratorService {
	return service.NewCodeGeneratorService(repository.NewCodeRuleRepository(db), zap.NewNop())
}

func createMaterialService(db *gorm.DB) *service.MaterialService {
	return service.NewMaterialService(repository.NewMaterialRepository(db), createCodeGeneratorService(db), zap.NewNop())
}

func createInventoryService(db *gorm.DB) *service.InventoryService {
	return service.NewInventoryService(repository.NewInventoryRepository(db), repository.NewMaterialRepository(db), zap.NewNop())
}

func createBOMService(db *gorm.DB) *service.BOMService {
	return createBOMServiceWithPlanning(db, testPlanningConfig())
}

func createBOMServiceWithPlanning(db *gorm.DB, planning *config.PlanningConfig) *service.BOMService {
	return service.NewBOMService(
		repository.NewBOMRepository(db),
		repository.NewMaterialRepository(db),
		createCodeGeneratorService(db),
		planning,
		zap.NewNop(),
	)
}

func createDemandService(db *gorm.DB) *service.DemandService {
	return service.NewDemandService(
		repository.NewDemandRepository(db),
		repository.NewMaterialRepository(db),
		createCodeGeneratorService(db),
		zap.NewNop(),
	)
}

func createRelationService(db *gorm.DB) *service.RelationService {
	return service.NewRelationService(repository.NewRelationRepository(db), zap.NewNop())
}

func createTimingService(db *gorm.DB) *service.TimingService {
	return service.NewTimingService(repository.NewTimingRepository(db), testPlanningConfig(), zap.NewNop())
}

func createComputationService(db *gorm.DB) *service.ComputationService {
	return service.NewComputationService(
		repository.NewComputationRepository(db),
		repository.NewDemandRepository(db),
		repository.NewMaterialRepository(db),
		createInventoryService(db),
		createBOMService(db),
		createCodeGeneratorService(db),
		createRelationService(db),
		createTimingService(db),
		testPlanningConfig(),
		zap.NewNop(),
	)
}

func createPurchaseService(db *gorm.DB) *service.PurchaseService {
	return service.NewPurchaseService(
		repository.NewPurchaseRepository(db),
		repository.NewComputationRepository(db),
		createCodeGeneratorService(db),
		createRelationService(db),
		createTimingService(db),
		zap.NewNop(),
	)
}

func createWorkOrderService(db *gorm.DB) *service.WorkOrderService {
	return service.NewWorkOrderService(
		repository.NewWorkOrderRepository(db),
		repository.NewMaterialRepository(db),
		repository.NewComputationRepository(db),
		createBOMService(db),
		createInventoryService(db),
		createCodeGeneratorService(db),
		createRelationService(db),
		zap.NewNop(),
	)
}

// seedRule registers a code rule so document creation can mint codes.
func seedRule(t *testing.T, ctx context.Context, db *gorm.DB, ruleCode, template string) {
	t.Helper()
	_, err := createCodeGeneratorService(db).CreateRule(ctx, &domain.CreateCodeRuleRequest{
		RuleCode:   ruleCode,
		Name:       ruleCode,
		Template:   template,
		ResetCycle: domain.ResetCycleNone,
	})
	require.NoError(t, err)
}

// seedMaterial creates a material with sensible defaults; mutate tweaks
// the request before it is submitted.
func seedMaterial(t *testing.T, ctx context.Context, db *gorm.DB, mainCode string, sourceType domain.MaterialSourceType, mutate func(*domain.CreateMaterialRequest)) *domain.Material {
	t.Helper()

	req := &domain.CreateMaterialRequest{
		MainCode:     mainCode,
		Name:         "Material " + mainCode,
		MaterialType: domain.MaterialTypeRaw,
		BaseUnit:     "pcs",
		SourceType:   sourceType,
	}
	switch sourceType {
	case domain.SourceTypeMake, domain.SourceTypeConfigure:
		req.MaterialType = domain.MaterialTypeFinished
	case domain.SourceTypePhantom:
		req.MaterialType = domain.MaterialTypeSemiFinished
	case domain.SourceTypeOutsource:
		req.MaterialType = domain.MaterialTypeSemiFinished
		req.SourceConfig = domain.SourceConfig{
			OutsourceOperation:  "plating",
			DefaultSupplierCode: "SUP-001",
			DefaultSupplierName: "Test Supplier",
		}
	}
	if mutate != nil {
		mutate(req)
	}

	material, err := createMaterialService(db).Create(ctx, req)
	require.NoError(t, err)
	return material
}
