package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/database"
	"github.com/craftflow/mes-api/internal/http/handler"
	"github.com/craftflow/mes-api/internal/http/middleware"
	"github.com/craftflow/mes-api/internal/http/router"
	"github.com/craftflow/mes-api/internal/jobs"
	"github.com/craftflow/mes-api/internal/logger"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/craftflow/mes-api/internal/service"
	"go.uber.org/zap"
)

// @title CraftFlow MES API
// @version 1.0
// @description Manufacturing execution API for materials, BOMs, demand planning, and shop floor execution

// @contact.name API Support
// @contact.email support@craftflow.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Schema is managed with goose in deployed environments; local
	// development runs the gorm auto-migration instead.
	if cfg.App.Environment == "development" || cfg.App.Environment == "local" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		log.Info("Auto-migration completed")
	}

	// Repositories
	materialRepo := repository.NewMaterialRepository(db)
	bomRepo := repository.NewBOMRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	demandRepo := repository.NewDemandRepository(db)
	computationRepo := repository.NewComputationRepository(db)
	workOrderRepo := repository.NewWorkOrderRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	codeRuleRepo := repository.NewCodeRuleRepository(db)
	relationRepo := repository.NewRelationRepository(db)
	timingRepo := repository.NewTimingRepository(db)

	// Services
	codeGenService := service.NewCodeGeneratorService(codeRuleRepo, log)
	relationService := service.NewRelationService(relationRepo, log)
	timingService := service.NewTimingService(timingRepo, &cfg.Planning, log)
	materialService := service.NewMaterialService(materialRepo, codeGenService, log)
	bomService := service.NewBOMService(bomRepo, materialRepo, codeGenService, &cfg.Planning, log)
	inventoryService := service.NewInventoryService(inventoryRepo, materialRepo, log)
	demandService := service.NewDemandService(demandRepo, materialRepo, codeGenService, log)
	computationService := service.NewComputationService(
		computationRepo,
		demandRepo,
		materialRepo,
		inventoryService,
		bomService,
		codeGenService,
		relationService,
		timingService,
		&cfg.Planning,
		log,
	)
	workOrderService := service.NewWorkOrderService(
		workOrderRepo,
		materialRepo,
		computationRepo,
		bomService,
		inventoryService,
		codeGenService,
		relationService,
		log,
	)
	purchaseService := service.NewPurchaseService(purchaseRepo, computationRepo, codeGenService, relationService, timingService, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	materialHandler := handler.NewMaterialHandler(materialService, log)
	bomHandler := handler.NewBOMHandler(bomService, log)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, log)
	demandHandler := handler.NewDemandHandler(demandService, log)
	computationHandler := handler.NewComputationHandler(computationService, workOrderService, purchaseService, log)
	workOrderHandler := handler.NewWorkOrderHandler(workOrderService, log)
	outsourceHandler := handler.NewOutsourceHandler(workOrderService, log)
	purchaseHandler := handler.NewPurchaseHandler(purchaseService, log)
	codeRuleHandler := handler.NewCodeRuleHandler(codeGenService, log)
	relationHandler := handler.NewRelationHandler(relationService, log)
	timingHandler := handler.NewTimingHandler(timingService, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		rateLimiter,
		materialHandler,
		bomHandler,
		inventoryHandler,
		demandHandler,
		computationHandler,
		workOrderHandler,
		outsourceHandler,
		purchaseHandler,
		codeRuleHandler,
		relationHandler,
		timingHandler,
	)

	// Background maintenance jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterMaintenanceJobs(
			scheduler,
			codeRuleRepo,
			computationService,
			log,
			time.Duration(cfg.Jobs.IdempotencyRetentionHours)*time.Hour,
			time.Duration(cfg.Jobs.StaleComputationMinutes)*time.Minute,
		); err != nil {
			log.Error("Failed to register maintenance jobs", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started",
				zap.Int("idempotency_retention_hours", cfg.Jobs.IdempotencyRetentionHours),
				zap.Int("stale_computation_minutes", cfg.Jobs.StaleComputationMinutes),
			)
		}
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
