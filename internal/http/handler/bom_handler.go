package handler

import (
	"context"
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BOMHandler struct {
	boms   *service.BOMService
	logger *zap.Logger
}

func NewBOMHandler(boms *service.BOMService, logger *zap.Logger) *BOMHandler {
	return &BOMHandler{boms: boms, logger: logger}
}

// Create godoc
// @Summary Create BOM
// @Description Create a draft BOM; rejects cycles and duplicate component lines
// @Tags BOMs
// @Accept json
// @Produce json
// @Param request body domain.CreateBOMRequest true "BOM data"
// @Success 201 {object} domain.Response{data=domain.BOM}
// @Failure 400 {object} domain.Response
// @Failure 422 {object} domain.Response "Component graph would contain a cycle"
// @Security BearerAuth
// @Router /boms [post]
func (h *BOMHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBOMRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bom, err := h.boms.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, bom)
}

// List godoc
// @Summary List BOMs
// @Tags BOMs
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param parentMaterialUuid query string false "Filter by parent material" format(uuid)
// @Param status query string false "Filter by review status" Enums(draft, pending_review, approved, rejected)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /boms [get]
func (h *BOMHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	var parentUUID uuid.UUID
	if raw := r.URL.Query().Get("parentMaterialUuid"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, domain.NewValidation("invalid parent material uuid"))
			return
		}
		parentUUID = parsed
	}
	status := domain.BOMStatus(r.URL.Query().Get("status"))

	boms, total, err := h.boms.List(r.Context(), skip, limit, parentUUID, status)
	if err != nil {
		h.logger.Error("failed to list boms", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(boms, total, skip, limit))
}

// Get godoc
// @Summary Get BOM by UUID
// @Tags BOMs
// @Produce json
// @Param id path string true "BOM UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.BOM}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /boms/{id} [get]
func (h *BOMHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid bom id"))
		return
	}

	bom, err := h.boms.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, bom)
}

// Submit godoc
// @Summary Submit BOM for review
// @Tags BOMs
// @Produce json
// @Param id path string true "BOM UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.BOM}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /boms/{id}/submit [post]
func (h *BOMHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid bom id"))
		return
	}

	bom, err := h.boms.Submit(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, bom)
}

// Approve godoc
// @Summary Approve BOM
// @Description Approve a pending BOM, making it the active version for explosion
// @Tags BOMs
// @Accept json
// @Produce json
// @Param id path string true "BOM UUID" format(uuid)
// @Param request body domain.ReviewRequest false "Review remark"
// @Success 200 {object} domain.Response{data=domain.BOM}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /boms/{id}/approve [post]
func (h *BOMHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.boms.Approve)
}

// Reject godoc
// @Summary Reject BOM
// @Tags BOMs
// @Accept json
// @Produce json
// @Param id path string true "BOM UUID" format(uuid)
// @Param request body domain.ReviewRequest false "Review remark"
// @Success 200 {object} domain.Response{data=domain.BOM}
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /boms/{id}/reject [post]
func (h *BOMHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.boms.Reject)
}

func (h *BOMHandler) review(w http.ResponseWriter, r *http.Request, action func(context.Context, uuid.UUID, string) (*domain.BOM, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid bom id"))
		return
	}

	var req domain.ReviewRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	bom, err := action(r.Context(), id, req.Remark)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, bom)
}

// Delete godoc
// @Summary Delete BOM
// @Description Delete a BOM; approved BOMs cannot be deleted
// @Tags BOMs
// @Produce json
// @Param id path string true "BOM UUID" format(uuid)
// @Success 200 {object} domain.Response
// @Failure 409 {object} domain.Response
// @Security BearerAuth
// @Router /boms/{id} [delete]
func (h *BOMHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid bom id"))
		return
	}

	if err := h.boms.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// Explode godoc
// @Summary Explode a material's BOM
// @Description Flatten the approved BOM tree into leaf requirements, dissolving phantoms and grossing up scrap
// @Tags BOMs
// @Produce json
// @Param materialUuid path string true "Parent material UUID" format(uuid)
// @Param quantity query string true "Quantity to explode"
// @Success 200 {object} domain.Response{data=[]service.ExplodedRequirement}
// @Failure 422 {object} domain.Response "BOM depth exceeded"
// @Security BearerAuth
// @Router /boms/explode/{materialUuid} [get]
func (h *BOMHandler) Explode(w http.ResponseWriter, r *http.Request) {
	materialUUID, err := uuid.Parse(chi.URLParam(r, "materialUuid"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	quantity, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil || !quantity.IsPositive() {
		respondError(w, domain.NewValidation("quantity must be a positive number"))
		return
	}

	requirements, err := h.boms.Explode(r.Context(), materialUUID, quantity)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, requirements)
}
