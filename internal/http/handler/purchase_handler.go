package handler

import (
	"context"
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PurchaseHandler struct {
	purchases *service.PurchaseService
	logger    *zap.Logger
}

func NewPurchaseHandler(purchases *service.PurchaseService, logger *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, logger: logger}
}

// ListRequisitions godoc
// @Summary List purchase requisitions
// @Tags Purchasing
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, submitted, approved, rejected, closed)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /purchase-requisitions [get]
func (h *PurchaseHandler) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	status := domain.PurchaseDocStatus(r.URL.Query().Get("status"))

	requisitions, total, err := h.purchases.ListRequisitions(r.Context(), skip, limit, status)
	if err != nil {
		h.logger.Error("failed to list requisitions", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(requisitions, total, skip, limit))
}

// GetRequisition godoc
// @Summary Get purchase requisition by UUID
// @Tags Purchasing
// @Produce json
// @Param id path string true "Requisition UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PurchaseRequisition}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /purchase-requisitions/{id} [get]
func (h *PurchaseHandler) GetRequisition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid requisition id"))
		return
	}

	requisition, err := h.purchases.GetRequisition(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, requisition)
}

// SubmitRequisition godoc
// @Summary Submit purchase requisition
// @Tags Purchasing
// @Produce json
// @Param id path string true "Requisition UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PurchaseRequisition}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /purchase-requisitions/{id}/submit [post]
func (h *PurchaseHandler) SubmitRequisition(w http.ResponseWriter, r *http.Request) {
	h.requisitionAction(w, r, h.purchases.SubmitRequisition)
}

// ApproveRequisition godoc
// @Summary Approve purchase requisition
// @Tags Purchasing
// @Produce json
// @Param id path string true "Requisition UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PurchaseRequisition}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /purchase-requisitions/{id}/approve [post]
func (h *PurchaseHandler) ApproveRequisition(w http.ResponseWriter, r *http.Request) {
	h.requisitionAction(w, r, h.purchases.ApproveRequisition)
}

// RejectRequisition godoc
// @Summary Reject purchase requisition
// @Tags Purchasing
// @Produce json
// @Param id path string true "Requisition UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PurchaseRequisition}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /purchase-requisitions/{id}/reject [post]
func (h *PurchaseHandler) RejectRequisition(w http.ResponseWriter, r *http.Request) {
	h.requisitionAction(w, r, h.purchases.RejectRequisition)
}

func (h *PurchaseHandler) requisitionAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id uuid.UUID) (*domain.PurchaseRequisition, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid requisition id"))
		return
	}

	requisition, err := action(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, requisition)
}

type pushRequisitionRequest struct {
	SupplierCode string `json:"supplierCode" validate:"required,max=64"`
	SupplierName string `json:"supplierName" validate:"max=200"`
}

// PushRequisition godoc
// @Summary Push requisition to purchase order
// @Description Turn an approved requisition into a supplier purchase order and close the requisition
// @Tags Purchasing
// @Accept json
// @Produce json
// @Param id path string true "Requisition UUID" format(uuid)
// @Param request body handler.pushRequisitionRequest true "Supplier"
// @Success 201 {object} domain.Response{data=domain.PurchaseOrder}
// @Failure 409 {object} domain.Response "Requisition not approved"
// @Security BearerAuth
// @Router /purchase-requisitions/{id}/push [post]
func (h *PurchaseHandler) PushRequisition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid requisition id"))
		return
	}

	var req pushRequisitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.purchases.PushRequisition(r.Context(), id, req.SupplierCode, req.SupplierName)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, order)
}

// ListOrders godoc
// @Summary List purchase orders
// @Tags Purchasing
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, submitted, approved, rejected, closed)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /purchase-orders [get]
func (h *PurchaseHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	status := domain.PurchaseDocStatus(r.URL.Query().Get("status"))

	orders, total, err := h.purchases.ListOrders(r.Context(), skip, limit, status)
	if err != nil {
		h.logger.Error("failed to list purchase orders", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(orders, total, skip, limit))
}

// GetOrder godoc
// @Summary Get purchase order by UUID
// @Tags Purchasing
// @Produce json
// @Param id path string true "Purchase order UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PurchaseOrder}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /purchase-orders/{id} [get]
func (h *PurchaseHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid purchase order id"))
		return
	}

	order, err := h.purchases.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, order)
}
