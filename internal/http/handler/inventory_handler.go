package handler

import (
	"net/http"
	"strconv"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewInventoryHandler(inventory *service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, logger: logger}
}

// Increase godoc
// @Summary Increase stock
// @Description Add quantity to a main-warehouse bucket, creating it on first receipt
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data"
// @Success 200 {object} domain.Response{data=domain.MaterialBatch}
// @Failure 400 {object} domain.Response
// @Security BearerAuth
// @Router /inventory/increase [post]
func (h *InventoryHandler) Increase(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	batch, err := h.inventory.Increase(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, batch)
}

// Decrease godoc
// @Summary Decrease stock
// @Description Remove quantity FIFO across buckets, or from a named batch; a shortfall rolls the whole movement back
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data"
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response "Insufficient stock"
// @Security BearerAuth
// @Router /inventory/decrease [post]
func (h *InventoryHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.inventory.Decrease(r.Context(), &req); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Reserve godoc
// @Summary Reserve stock
// @Description Earmark quantity FIFO across buckets, or in a named batch, so other movements cannot consume it
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data"
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response "Insufficient stock"
// @Security BearerAuth
// @Router /inventory/reserve [post]
func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.inventory.Reserve(r.Context(), &req); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Release godoc
// @Summary Release reserved stock
// @Description Return reserved quantity to the available pool; releasing more than is reserved is refused
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data"
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response "Release exceeds reserved quantity"
// @Security BearerAuth
// @Router /inventory/release [post]
func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.inventory.Release(r.Context(), &req); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Adjust godoc
// @Summary Adjust stock from stocktaking
// @Description Set the absolute quantity of one bucket to a counted value
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.AdjustInventoryRequest true "Adjustment data"
// @Success 200 {object} domain.Response{data=domain.MaterialBatch}
// @Security BearerAuth
// @Router /inventory/adjust [post]
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustInventoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	batch, err := h.inventory.Adjust(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, batch)
}

// Available godoc
// @Summary Get available quantity
// @Description Total unreserved quantity of a material across its in-stock buckets
// @Tags Inventory
// @Produce json
// @Param materialUuid path string true "Material UUID" format(uuid)
// @Success 200 {object} domain.Response
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /inventory/available/{materialUuid} [get]
func (h *InventoryHandler) Available(w http.ResponseWriter, r *http.Request) {
	materialUUID, err := uuid.Parse(chi.URLParam(r, "materialUuid"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	available, err := h.inventory.GetAvailable(r.Context(), materialUUID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"available": available.String()})
}

// ListBatches godoc
// @Summary List stock buckets
// @Tags Inventory
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param materialUuid query string false "Filter by material" format(uuid)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /inventory/batches [get]
func (h *InventoryHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	materialUUID := uuid.Nil
	if raw := r.URL.Query().Get("materialUuid"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, domain.NewValidation("invalid material uuid"))
			return
		}
		materialUUID = parsed
	}

	batches, total, err := h.inventory.ListBatches(r.Context(), materialUUID, skip, limit)
	if err != nil {
		h.logger.Error("failed to list batches", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(batches, total, skip, limit))
}

// TransferToLineSide godoc
// @Summary Transfer stock to line side
// @Description Move quantity from the main warehouse into a line-side bucket with its source document trace
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data; warehouseId is required"
// @Success 200 {object} domain.Response{data=domain.LineSideInventory}
// @Failure 409 {object} domain.Response "Insufficient stock"
// @Security BearerAuth
// @Router /inventory/line-side/transfer [post]
func (h *InventoryHandler) TransferToLineSide(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.inventory.TransferToLineSide(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, inv)
}

// ConsumeLineSide godoc
// @Summary Consume line-side stock
// @Tags Inventory
// @Accept json
// @Produce json
// @Param request body domain.StockMovementRequest true "Movement data; warehouseId is required"
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response "Insufficient stock"
// @Security BearerAuth
// @Router /inventory/line-side/consume [post]
func (h *InventoryHandler) ConsumeLineSide(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.inventory.ConsumeLineSide(r.Context(), &req); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// ListLineSide godoc
// @Summary List line-side stock
// @Tags Inventory
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param warehouseId query int false "Filter by warehouse"
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /inventory/line-side [get]
func (h *InventoryHandler) ListLineSide(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	warehouseID, _ := strconv.Atoi(r.URL.Query().Get("warehouseId"))

	invs, total, err := h.inventory.ListLineSide(r.Context(), uint(warehouseID), skip, limit)
	if err != nil {
		h.logger.Error("failed to list line-side stock", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(invs, total, skip, limit))
}
