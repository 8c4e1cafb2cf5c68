package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WorkOrderHandler struct {
	workOrders *service.WorkOrderService
	logger     *zap.Logger
}

func NewWorkOrderHandler(workOrders *service.WorkOrderService, logger *zap.Logger) *WorkOrderHandler {
	return &WorkOrderHandler{workOrders: workOrders, logger: logger}
}

// Create godoc
// @Summary Create work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param request body domain.CreateWorkOrderRequest true "Work order data"
// @Success 201 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Material cannot be produced in-house"
// @Security BearerAuth
// @Router /work-orders [post]
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.workOrders.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, order)
}

// CreateBulk godoc
// @Summary Create work orders in bulk
// @Description Create many draft work orders; each row succeeds or fails independently
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param request body []domain.CreateWorkOrderRequest true "Work order rows"
// @Success 200 {object} domain.Response{data=domain.BatchResult}
// @Security BearerAuth
// @Router /work-orders/bulk [post]
func (h *WorkOrderHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.CreateWorkOrderRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}

	result, err := h.workOrders.CreateBulk(r.Context(), reqs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// List godoc
// @Summary List work orders
// @Tags WorkOrders
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, released, in_progress, completed, cancelled)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /work-orders [get]
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	status := domain.WorkOrderStatus(r.URL.Query().Get("status"))

	orders, total, err := h.workOrders.List(r.Context(), skip, limit, status)
	if err != nil {
		h.logger.Error("failed to list work orders", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(orders, total, skip, limit))
}

// Get godoc
// @Summary Get work order by UUID
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /work-orders/{id} [get]
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	order, err := h.workOrders.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// Release godoc
// @Summary Release work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Invalid transition or frozen"
// @Security BearerAuth
// @Router /work-orders/{id}/release [post]
func (h *WorkOrderHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.WorkOrderStatusReleased)
}

// Start godoc
// @Summary Start work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Invalid transition or frozen"
// @Security BearerAuth
// @Router /work-orders/{id}/start [post]
func (h *WorkOrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.WorkOrderStatusInProgress)
}

// Complete godoc
// @Summary Complete work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Invalid transition or frozen"
// @Security BearerAuth
// @Router /work-orders/{id}/complete [post]
func (h *WorkOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.WorkOrderStatusCompleted)
}

// Cancel godoc
// @Summary Cancel work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Invalid transition or frozen"
// @Security BearerAuth
// @Router /work-orders/{id}/cancel [post]
func (h *WorkOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.WorkOrderStatusCancelled)
}

func (h *WorkOrderHandler) transition(w http.ResponseWriter, r *http.Request, target domain.WorkOrderStatus) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	order, err := h.workOrders.Transition(r.Context(), id, target)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// Freeze godoc
// @Summary Freeze work order
// @Description Block all transitions on a work order until unfrozen
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Param request body domain.FreezeRequest true "Freeze reason"
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Already frozen or terminal status"
// @Security BearerAuth
// @Router /work-orders/{id}/freeze [post]
func (h *WorkOrderHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	var req domain.FreezeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.workOrders.Freeze(r.Context(), id, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// Unfreeze godoc
// @Summary Unfreeze work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.WorkOrder}
// @Failure 409 {object} domain.Response "Not frozen"
// @Security BearerAuth
// @Router /work-orders/{id}/unfreeze [post]
func (h *WorkOrderHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	order, err := h.workOrders.Unfreeze(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// Report godoc
// @Summary Report production
// @Description Post a production report; with backflush, components are consumed FIFO through the approved BOM and the finished quantity is received into stock
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Param request body domain.ReportWorkRequest true "Report data"
// @Success 201 {object} domain.Response{data=domain.WorkOrderReport}
// @Failure 409 {object} domain.Response "Insufficient component stock or invalid status"
// @Security BearerAuth
// @Router /work-orders/{id}/report [post]
func (h *WorkOrderHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	var req domain.ReportWorkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.workOrders.Report(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, report)
}

// ListReports godoc
// @Summary List production reports of a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=[]domain.WorkOrderReport}
// @Security BearerAuth
// @Router /work-orders/{id}/reports [get]
func (h *WorkOrderHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	reports, err := h.workOrders.ListReports(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, reports)
}

// RecordScrap godoc
// @Summary Record scrap against a work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Param request body domain.ScrapRequest true "Scrap data"
// @Success 201 {object} domain.Response{data=domain.ScrapRecord}
// @Failure 409 {object} domain.Response "Work order not in progress"
// @Security BearerAuth
// @Router /work-orders/{id}/scrap [post]
func (h *WorkOrderHandler) RecordScrap(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	var req domain.ScrapRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.workOrders.RecordScrap(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, record)
}

// ListScrap godoc
// @Summary List scrap records of a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=[]domain.ScrapRecord}
// @Security BearerAuth
// @Router /work-orders/{id}/scrap [get]
func (h *WorkOrderHandler) ListScrap(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid work order id"))
		return
	}

	records, err := h.workOrders.ListScrap(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, records)
}

type reviewScrapRequest struct {
	Disposition domain.ScrapRecordStatus `json:"disposition" validate:"required,oneof=approved rejected let_through"`
}

// ReviewScrap godoc
// @Summary Disposition a scrap record
// @Description Approve, reject or let a pending scrap record through
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param scrapId path string true "Scrap record UUID" format(uuid)
// @Param request body handler.reviewScrapRequest true "Disposition"
// @Success 200 {object} domain.Response{data=domain.ScrapRecord}
// @Failure 409 {object} domain.Response "Already dispositioned"
// @Security BearerAuth
// @Router /work-orders/scrap/{scrapId}/review [post]
func (h *WorkOrderHandler) ReviewScrap(w http.ResponseWriter, r *http.Request) {
	scrapID, err := uuid.Parse(chi.URLParam(r, "scrapId"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid scrap record id"))
		return
	}

	var req reviewScrapRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.workOrders.ReviewScrap(r.Context(), scrapID, req.Disposition)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, record)
}
