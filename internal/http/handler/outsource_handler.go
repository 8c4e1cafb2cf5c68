package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OutsourceHandler struct {
	workOrders *service.WorkOrderService
	logger     *zap.Logger
}

func NewOutsourceHandler(workOrders *service.WorkOrderService, logger *zap.Logger) *OutsourceHandler {
	return &OutsourceHandler{workOrders: workOrders, logger: logger}
}

// List godoc
// @Summary List outsource work orders
// @Tags Outsource
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, released, in_progress, completed, cancelled)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /outsource-work-orders [get]
func (h *OutsourceHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	status := domain.WorkOrderStatus(r.URL.Query().Get("status"))

	orders, total, err := h.workOrders.ListOutsource(r.Context(), skip, limit, status)
	if err != nil {
		h.logger.Error("failed to list outsource work orders", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(orders, total, skip, limit))
}

// Get godoc
// @Summary Get outsource work order by UUID
// @Tags Outsource
// @Produce json
// @Param id path string true "Outsource work order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.OutsourceWorkOrder}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /outsource-work-orders/{id} [get]
func (h *OutsourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid outsource work order id"))
		return
	}

	order, err := h.workOrders.GetOutsource(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

// Issue godoc
// @Summary Issue components to the supplier
// @Description Move component stock out to the supplier of an outsource work order
// @Tags Outsource
// @Accept json
// @Produce json
// @Param id path string true "Outsource work order UUID" format(uuid)
// @Param request body domain.OutsourceMovementRequest true "Issue data"
// @Success 201 {object} domain.Response{data=domain.OutsourceIssue}
// @Failure 409 {object} domain.Response "Insufficient stock or invalid status"
// @Security BearerAuth
// @Router /outsource-work-orders/{id}/issue [post]
func (h *OutsourceHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid outsource work order id"))
		return
	}

	var req domain.OutsourceMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issue, err := h.workOrders.IssueToOutsource(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, issue)
}

// Receive godoc
// @Summary Receive goods back from the supplier
// @Description Book finished goods into stock and advance the completed quantities
// @Tags Outsource
// @Accept json
// @Produce json
// @Param id path string true "Outsource work order UUID" format(uuid)
// @Param request body domain.OutsourceMovementRequest true "Receipt data"
// @Success 201 {object} domain.Response{data=domain.OutsourceReceipt}
// @Failure 409 {object} domain.Response "Receipt exceeds order quantity or invalid status"
// @Security BearerAuth
// @Router /outsource-work-orders/{id}/receive [post]
func (h *OutsourceHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid outsource work order id"))
		return
	}

	var req domain.OutsourceMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := h.workOrders.ReceiveFromOutsource(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, receipt)
}
