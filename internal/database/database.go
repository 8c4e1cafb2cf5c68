package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.ConnectionString()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// HealthCheck pings the database.
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// HealthCheckWithStats pings the database and returns connection pool statistics.
func HealthCheckWithStats(db *gorm.DB) (sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return sql.DBStats{}, fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return sql.DBStats{}, fmt.Errorf("database ping failed: %w", err)
	}
	return sqlDB.Stats(), nil
}

// AutoMigrate runs automatic migrations (for development only)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Material{},
		&domain.MaterialAlias{},
		&domain.BOM{},
		&domain.BOMItem{},
		&domain.MaterialBatch{},
		&domain.LineSideInventory{},
		&domain.Demand{},
		&domain.DemandItem{},
		&domain.DemandComputation{},
		&domain.DemandComputationItem{},
		&domain.WorkOrder{},
		&domain.WorkOrderReport{},
		&domain.ScrapRecord{},
		&domain.OutsourceWorkOrder{},
		&domain.OutsourceIssue{},
		&domain.OutsourceReceipt{},
		&domain.PurchaseRequisition{},
		&domain.PurchaseRequisitionItem{},
		&domain.PurchaseOrder{},
		&domain.PurchaseOrderItem{},
		&domain.DocumentRelation{},
		&domain.DocumentNodeTiming{},
		&domain.CodeRule{},
		&domain.CodeCounter{},
		&domain.IdempotencyKey{},
	)
}
