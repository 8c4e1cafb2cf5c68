package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ComputationHandler struct {
	computations *service.ComputationService
	workOrders   *service.WorkOrderService
	purchases    *service.PurchaseService
	logger       *zap.Logger
}

func NewComputationHandler(
	computations *service.ComputationService,
	workOrders *service.WorkOrderService,
	purchases *service.PurchaseService,
	logger *zap.Logger,
) *ComputationHandler {
	return &ComputationHandler{
		computations: computations,
		workOrders:   workOrders,
		purchases:    purchases,
		logger:       logger,
	}
}

// Compute godoc
// @Summary Run a demand computation
// @Description Run MRP or LRP over approved demands in one transaction; any failure rolls everything back and records a failed run
// @Tags Computations
// @Accept json
// @Produce json
// @Param request body domain.ComputeRequest true "Computation parameters"
// @Success 201 {object} domain.Response{data=domain.DemandComputation}
// @Failure 409 {object} domain.Response "Demand not approved or already pushed"
// @Failure 422 {object} domain.Response "Computation failed"
// @Security BearerAuth
// @Router /computations [post]
func (h *ComputationHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req domain.ComputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	computation, err := h.computations.Compute(r.Context(), &req)
	if err != nil {
		h.logger.Warn("computation failed", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, computation)
}

// List godoc
// @Summary List computations
// @Tags Computations
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param computationType query string false "Filter by type" Enums(MRP, LRP)
// @Param status query string false "Filter by status" Enums(running, completed, failed)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /computations [get]
func (h *ComputationHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	computationType := domain.ComputationType(r.URL.Query().Get("computationType"))
	status := domain.ComputationStatus(r.URL.Query().Get("status"))

	computations, total, err := h.computations.List(r.Context(), skip, limit, computationType, status)
	if err != nil {
		h.logger.Error("failed to list computations", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(computations, total, skip, limit))
}

// Get godoc
// @Summary Get computation by UUID
// @Description Returns the computation with its per-material result items
// @Tags Computations
// @Produce json
// @Param id path string true "Computation UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.DemandComputation}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /computations/{id} [get]
func (h *ComputationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid computation id"))
		return
	}

	computation, err := h.computations.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, computation)
}

// GenerateWorkOrders godoc
// @Summary Generate execution documents from a computation
// @Description Create draft work orders and outsource work orders from the Make/Configure/Outsource suggestions of a completed computation
// @Tags Computations
// @Produce json
// @Param id path string true "Computation UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.BatchResult}
// @Failure 409 {object} domain.Response "Computation not completed"
// @Security BearerAuth
// @Router /computations/{id}/generate-work-orders [post]
func (h *ComputationHandler) GenerateWorkOrders(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid computation id"))
		return
	}

	result, err := h.workOrders.GenerateFromComputation(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// GenerateRequisition godoc
// @Summary Generate a purchase requisition from a computation
// @Description Collect the Buy suggestions of a completed computation into one draft requisition
// @Tags Computations
// @Produce json
// @Param id path string true "Computation UUID" format(uuid)
// @Success 201 {object} domain.Response{data=domain.PurchaseRequisition}
// @Failure 409 {object} domain.Response "Computation not completed or no purchase suggestions"
// @Security BearerAuth
// @Router /computations/{id}/generate-requisition [post]
func (h *ComputationHandler) GenerateRequisition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid computation id"))
		return
	}

	requisition, err := h.purchases.GenerateFromComputation(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, requisition)
}
