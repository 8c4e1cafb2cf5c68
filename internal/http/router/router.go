package router

import (
	"encoding/json"
	"net/http"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/database"
	"github.com/craftflow/mes-api/internal/http/handler"
	"github.com/craftflow/mes-api/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg                *config.Config
	logger             *zap.Logger
	db                 *gorm.DB
	authMiddleware     *auth.Middleware
	rateLimiter        *middleware.RateLimiter
	materialHandler    *handler.MaterialHandler
	bomHandler         *handler.BOMHandler
	inventoryHandler   *handler.InventoryHandler
	demandHandler      *handler.DemandHandler
	computationHandler *handler.ComputationHandler
	workOrderHandler   *handler.WorkOrderHandler
	outsourceHandler   *handler.OutsourceHandler
	purchaseHandler    *handler.PurchaseHandler
	codeRuleHandler    *handler.CodeRuleHandler
	relationHandler    *handler.RelationHandler
	timingHandler      *handler.TimingHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	materialHandler *handler.MaterialHandler,
	bomHandler *handler.BOMHandler,
	inventoryHandler *handler.InventoryHandler,
	demandHandler *handler.DemandHandler,
	computationHandler *handler.ComputationHandler,
	workOrderHandler *handler.WorkOrderHandler,
	outsourceHandler *handler.OutsourceHandler,
	purchaseHandler *handler.PurchaseHandler,
	codeRuleHandler *handler.CodeRuleHandler,
	relationHandler *handler.RelationHandler,
	timingHandler *handler.TimingHandler,
) *Router {
	return &Router{
		cfg:                cfg,
		logger:             logger,
		db:                 db,
		authMiddleware:     authMiddleware,
		rateLimiter:        rateLimiter,
		materialHandler:    materialHandler,
		bomHandler:         bomHandler,
		inventoryHandler:   inventoryHandler,
		demandHandler:      demandHandler,
		computationHandler: computationHandler,
		workOrderHandler:   workOrderHandler,
		outsourceHandler:   outsourceHandler,
		purchaseHandler:    purchaseHandler,
		codeRuleHandler:    codeRuleHandler,
		relationHandler:    relationHandler,
		timingHandler:      timingHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		status := "healthy"
		if !allHealthy {
			status = "unhealthy"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)

		// Materials
		r.Route("/materials", func(r chi.Router) {
			r.Get("/", rt.materialHandler.List)
			r.Post("/", rt.materialHandler.Create)
			r.Post("/bulk", rt.materialHandler.CreateBulk)
			r.Put("/bulk", rt.materialHandler.UpdateBulk)
			r.Post("/bulk-delete", rt.materialHandler.DeleteBulk)
			r.Get("/export", rt.materialHandler.Export)
			r.Get("/resolve", rt.materialHandler.ResolveAlias)
			r.Get("/by-code/{code}", rt.materialHandler.GetByMainCode)
			r.Get("/{id}", rt.materialHandler.Get)
			r.Put("/{id}", rt.materialHandler.Update)
			r.Delete("/{id}", rt.materialHandler.Delete)
			r.Get("/{id}/aliases", rt.materialHandler.ListAliases)
			r.Post("/{id}/aliases", rt.materialHandler.AddAlias)
			r.Delete("/{id}/aliases/{aliasId}", rt.materialHandler.RemoveAlias)
		})

		// Bills of material
		r.Route("/boms", func(r chi.Router) {
			r.Get("/", rt.bomHandler.List)
			r.Post("/", rt.bomHandler.Create)
			r.Get("/explode/{materialUuid}", rt.bomHandler.Explode)
			r.Get("/{id}", rt.bomHandler.Get)
			r.Delete("/{id}", rt.bomHandler.Delete)
			r.Post("/{id}/submit", rt.bomHandler.Submit)
			r.Post("/{id}/approve", rt.bomHandler.Approve)
			r.Post("/{id}/reject", rt.bomHandler.Reject)
		})

		// Inventory
		r.Route("/inventory", func(r chi.Router) {
			r.Post("/increase", rt.inventoryHandler.Increase)
			r.Post("/decrease", rt.inventoryHandler.Decrease)
			r.Post("/reserve", rt.inventoryHandler.Reserve)
			r.Post("/release", rt.inventoryHandler.Release)
			r.Post("/adjust", rt.inventoryHandler.Adjust)
			r.Get("/available/{materialUuid}", rt.inventoryHandler.Available)
			r.Get("/batches", rt.inventoryHandler.ListBatches)
			r.Route("/line-side", func(r chi.Router) {
				r.Get("/", rt.inventoryHandler.ListLineSide)
				r.Post("/transfer", rt.inventoryHandler.TransferToLineSide)
				r.Post("/consume", rt.inventoryHandler.ConsumeLineSide)
			})
		})

		// Demands
		r.Route("/demands", func(r chi.Router) {
			r.Get("/", rt.demandHandler.List)
			r.Post("/", rt.demandHandler.Create)
			r.Get("/{id}", rt.demandHandler.Get)
			r.Delete("/{id}", rt.demandHandler.Delete)
			r.Post("/{id}/approve", rt.demandHandler.Approve)
			r.Post("/{id}/reject", rt.demandHandler.Reject)
			r.Post("/{id}/reopen", rt.demandHandler.Reopen)
			r.Post("/items/{itemId}/deliver", rt.demandHandler.RecordDelivery)
		})

		// Demand computations
		r.Route("/computations", func(r chi.Router) {
			r.Get("/", rt.computationHandler.List)
			r.Post("/", rt.computationHandler.Compute)
			r.Get("/{id}", rt.computationHandler.Get)
			r.Post("/{id}/generate-work-orders", rt.computationHandler.GenerateWorkOrders)
			r.Post("/{id}/generate-requisition", rt.computationHandler.GenerateRequisition)
		})

		// Work orders
		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", rt.workOrderHandler.List)
			r.Post("/", rt.workOrderHandler.Create)
			r.Post("/bulk", rt.workOrderHandler.CreateBulk)
			r.Get("/{id}", rt.workOrderHandler.Get)

			// Lifecycle endpoints
			r.Post("/{id}/release", rt.workOrderHandler.Release)
			r.Post("/{id}/start", rt.workOrderHandler.Start)
			r.Post("/{id}/complete", rt.workOrderHandler.Complete)
			r.Post("/{id}/cancel", rt.workOrderHandler.Cancel)
			r.Post("/{id}/freeze", rt.workOrderHandler.Freeze)
			r.Post("/{id}/unfreeze", rt.workOrderHandler.Unfreeze)

			// Reporting and scrap
			r.Post("/{id}/report", rt.workOrderHandler.Report)
			r.Get("/{id}/reports", rt.workOrderHandler.ListReports)
			r.Post("/{id}/scrap", rt.workOrderHandler.RecordScrap)
			r.Get("/{id}/scrap", rt.workOrderHandler.ListScrap)
			r.Post("/{id}/scrap/{scrapId}/review", rt.workOrderHandler.ReviewScrap)
		})

		// Outsourced work orders
		r.Route("/outsource-work-orders", func(r chi.Router) {
			r.Get("/", rt.outsourceHandler.List)
			r.Get("/{id}", rt.outsourceHandler.Get)
			r.Post("/{id}/issue", rt.outsourceHandler.Issue)
			r.Post("/{id}/receive", rt.outsourceHandler.Receive)
		})

		// Purchase requisitions and orders
		r.Route("/purchase-requisitions", func(r chi.Router) {
			r.Get("/", rt.purchaseHandler.ListRequisitions)
			r.Get("/{id}", rt.purchaseHandler.GetRequisition)
			r.Post("/{id}/submit", rt.purchaseHandler.SubmitRequisition)
			r.Post("/{id}/approve", rt.purchaseHandler.ApproveRequisition)
			r.Post("/{id}/reject", rt.purchaseHandler.RejectRequisition)
			r.Post("/{id}/push", rt.purchaseHandler.PushRequisition)
		})
		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", rt.purchaseHandler.ListOrders)
			r.Get("/{id}", rt.purchaseHandler.GetOrder)
		})

		// Code rules
		r.Route("/code-rules", func(r chi.Router) {
			r.Get("/", rt.codeRuleHandler.List)
			r.Post("/", rt.codeRuleHandler.Create)
			r.Post("/generate", rt.codeRuleHandler.Generate)
			r.Post("/preview", rt.codeRuleHandler.Preview)
		})

		// Document relations
		r.Route("/relations", func(r chi.Router) {
			r.Post("/", rt.relationHandler.Record)
			r.Get("/{docType}/{docId}/downstream", rt.relationHandler.Downstream)
			r.Get("/{docType}/{docId}/upstream", rt.relationHandler.Upstream)
			r.Get("/{docType}/{docId}/chain", rt.relationHandler.TraceChain)
		})

		// Process node timings
		r.Route("/timings", func(r chi.Router) {
			r.Post("/start", rt.timingHandler.Start)
			r.Post("/end", rt.timingHandler.End)
			r.Get("/{docType}/{docId}", rt.timingHandler.List)
		})
	})

	return r
}
