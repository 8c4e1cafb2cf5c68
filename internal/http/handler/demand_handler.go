package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DemandHandler struct {
	demands *service.DemandService
	logger  *zap.Logger
}

func NewDemandHandler(demands *service.DemandService, logger *zap.Logger) *DemandHandler {
	return &DemandHandler{demands: demands, logger: logger}
}

// Create godoc
// @Summary Create demand
// @Description Create a sales order or sales forecast demand in pending review
// @Tags Demands
// @Accept json
// @Produce json
// @Param request body domain.CreateDemandRequest true "Demand data"
// @Success 201 {object} domain.Response{data=domain.Demand}
// @Failure 400 {object} domain.Response
// @Security BearerAuth
// @Router /demands [post]
func (h *DemandHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDemandRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	demand, err := h.demands.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, demand)
}

// List godoc
// @Summary List demands
// @Tags Demands
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param demandType query string false "Filter by type" Enums(sales_order, sales_forecast)
// @Param reviewStatus query string false "Filter by review status" Enums(pending_review, approved, rejected)
// @Param pushed query bool false "Filter by pushed-to-computation flag"
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /demands [get]
func (h *DemandHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	demandType := domain.DemandType(r.URL.Query().Get("demandType"))
	reviewStatus := domain.ReviewStatus(r.URL.Query().Get("reviewStatus"))

	var pushed *bool
	if raw := r.URL.Query().Get("pushed"); raw != "" {
		v := raw == "true"
		pushed = &v
	}

	demands, total, err := h.demands.List(r.Context(), skip, limit, demandType, reviewStatus, pushed)
	if err != nil {
		h.logger.Error("failed to list demands", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(demands, total, skip, limit))
}

// Get godoc
// @Summary Get demand by UUID
// @Tags Demands
// @Produce json
// @Param id path string true "Demand UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.Demand}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /demands/{id} [get]
func (h *DemandHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand id"))
		return
	}

	demand, err := h.demands.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, demand)
}

// Approve godoc
// @Summary Approve demand
// @Description Approve a pending demand, making it eligible for computation
// @Tags Demands
// @Accept json
// @Produce json
// @Param id path string true "Demand UUID" format(uuid)
// @Param request body domain.ReviewRequest false "Review remark"
// @Success 200 {object} domain.Response{data=domain.Demand}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /demands/{id}/approve [post]
func (h *DemandHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand id"))
		return
	}

	var req domain.ReviewRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	demand, err := h.demands.Approve(r.Context(), id, req.Remark)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, demand)
}

// Reject godoc
// @Summary Reject demand
// @Tags Demands
// @Accept json
// @Produce json
// @Param id path string true "Demand UUID" format(uuid)
// @Param request body domain.ReviewRequest false "Review remark"
// @Success 200 {object} domain.Response{data=domain.Demand}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /demands/{id}/reject [post]
func (h *DemandHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand id"))
		return
	}

	var req domain.ReviewRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	demand, err := h.demands.Reject(r.Context(), id, req.Remark)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, demand)
}

// Reopen godoc
// @Summary Reopen rejected demand
// @Tags Demands
// @Produce json
// @Param id path string true "Demand UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.Demand}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /demands/{id}/reopen [post]
func (h *DemandHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand id"))
		return
	}

	demand, err := h.demands.Reopen(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, demand)
}

// Delete godoc
// @Summary Delete demand
// @Description Delete a demand that was never pushed to computation
// @Tags Demands
// @Produce json
// @Param id path string true "Demand UUID" format(uuid)
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /demands/{id} [delete]
func (h *DemandHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand id"))
		return
	}

	if err := h.demands.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

type recordDeliveryRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// RecordDelivery godoc
// @Summary Record delivery against a demand item
// @Tags Demands
// @Accept json
// @Produce json
// @Param itemId path string true "Demand item UUID" format(uuid)
// @Param request body handler.recordDeliveryRequest true "Delivered quantity"
// @Success 200 {object} domain.Response{data=domain.DemandItem}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /demands/items/{itemId}/deliver [post]
func (h *DemandHandler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid demand item id"))
		return
	}

	var req recordDeliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.demands.RecordDelivery(r.Context(), itemID, req.Quantity)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, item)
}
