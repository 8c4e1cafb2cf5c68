package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MaterialHandler struct {
	materials *service.MaterialService
	logger    *zap.Logger
}

func NewMaterialHandler(materials *service.MaterialService, logger *zap.Logger) *MaterialHandler {
	return &MaterialHandler{materials: materials, logger: logger}
}

// Create godoc
// @Summary Create material
// @Description Create a material; the main code is generated from the MATERIAL code rule when omitted
// @Tags Materials
// @Accept json
// @Produce json
// @Param request body domain.CreateMaterialRequest true "Material data"
// @Success 201 {object} domain.Response{data=domain.Material}
// @Failure 400 {object} domain.Response
// @Failure 409 {object} domain.Response "Duplicate main code"
// @Security BearerAuth
// @Router /materials [post]
func (h *MaterialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	material, err := h.materials.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, material)
}

// CreateBulk godoc
// @Summary Import materials in bulk
// @Description Create many materials; rows fail independently and the result carries per-row errors
// @Tags Materials
// @Accept json
// @Produce json
// @Param request body []domain.CreateMaterialRequest true "Material rows"
// @Success 200 {object} domain.Response{data=domain.BatchResult}
// @Security BearerAuth
// @Router /materials/bulk [post]
func (h *MaterialHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.CreateMaterialRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}

	result, err := h.materials.CreateBulk(r.Context(), reqs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// UpdateBulk godoc
// @Summary Update materials in bulk
// @Tags Materials
// @Accept json
// @Produce json
// @Param request body []domain.BulkUpdateMaterialRequest true "Update rows"
// @Success 200 {object} domain.Response{data=domain.BatchResult}
// @Security BearerAuth
// @Router /materials/bulk [put]
func (h *MaterialHandler) UpdateBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.BulkUpdateMaterialRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}

	result, err := h.materials.UpdateBulk(r.Context(), reqs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// DeleteBulk godoc
// @Summary Delete materials in bulk
// @Tags Materials
// @Accept json
// @Produce json
// @Param request body []string true "Material UUIDs"
// @Success 200 {object} domain.Response{data=domain.BatchResult}
// @Security BearerAuth
// @Router /materials/bulk-delete [post]
func (h *MaterialHandler) DeleteBulk(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	if !decodeJSON(w, r, &ids) {
		return
	}

	result, err := h.materials.DeleteBulk(r.Context(), ids)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

// Export godoc
// @Summary Export materials page by page
// @Description Cursor-keyed pages over the material master; pass the returned nextCursor to resume
// @Tags Materials
// @Produce json
// @Param after query int false "Resume after this internal id"
// @Param limit query int false "Page size (max 200)" default(20)
// @Success 200 {object} domain.Response{data=domain.CursorPage}
// @Security BearerAuth
// @Router /materials/export [get]
func (h *MaterialHandler) Export(w http.ResponseWriter, r *http.Request) {
	afterID := queryUint(r, "after")
	_, limit := pagination(r)

	page, err := h.materials.Export(r.Context(), afterID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, page)
}

// List godoc
// @Summary List materials
// @Tags Materials
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Param search query string false "Search by code or name"
// @Param materialType query string false "Filter by type" Enums(FIN, SEMI, RAW, PACK, AUX)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /materials [get]
func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	search := r.URL.Query().Get("search")
	materialType := domain.MaterialType(r.URL.Query().Get("materialType"))

	materials, total, err := h.materials.List(r.Context(), skip, limit, search, materialType)
	if err != nil {
		h.logger.Error("failed to list materials", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(materials, total, skip, limit))
}

// Get godoc
// @Summary Get material by UUID
// @Tags Materials
// @Produce json
// @Param id path string true "Material UUID" format(uuid)
// @Success 200 {object} domain.Response{data=domain.Material}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	material, err := h.materials.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, material)
}

// Update godoc
// @Summary Update material
// @Description Update mutable fields; main code, type and source type are immutable
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material UUID" format(uuid)
// @Param request body domain.UpdateMaterialRequest true "Material data"
// @Success 200 {object} domain.Response{data=domain.Material}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /materials/{id} [put]
func (h *MaterialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	var req domain.UpdateMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	material, err := h.materials.Update(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, material)
}

// Delete godoc
// @Summary Delete material
// @Tags Materials
// @Produce json
// @Param id path string true "Material UUID" format(uuid)
// @Success 200 {object} domain.Response
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	if err := h.materials.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// AddAlias godoc
// @Summary Register material alias
// @Description Register an external department, customer or supplier code for a material
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material UUID" format(uuid)
// @Param request body domain.CreateMaterialAliasRequest true "Alias data"
// @Success 201 {object} domain.Response{data=domain.MaterialAlias}
// @Failure 409 {object} domain.Response "Alias already registered"
// @Security BearerAuth
// @Router /materials/{id}/aliases [post]
func (h *MaterialHandler) AddAlias(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	var req domain.CreateMaterialAliasRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	alias, err := h.materials.AddAlias(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, alias)
}

// ListAliases godoc
// @Summary List material aliases
// @Tags Materials
// @Produce json
// @Param id path string true "Material UUID" format(uuid)
// @Success 200 {object} domain.Response{data=[]domain.MaterialAlias}
// @Security BearerAuth
// @Router /materials/{id}/aliases [get]
func (h *MaterialHandler) ListAliases(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid material id"))
		return
	}

	aliases, err := h.materials.ListAliases(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, aliases)
}

// RemoveAlias godoc
// @Summary Remove material alias
// @Tags Materials
// @Produce json
// @Param aliasId path string true "Alias UUID" format(uuid)
// @Success 200 {object} domain.Response
// @Security BearerAuth
// @Router /materials/aliases/{aliasId} [delete]
func (h *MaterialHandler) RemoveAlias(w http.ResponseWriter, r *http.Request) {
	aliasID, err := uuid.Parse(chi.URLParam(r, "aliasId"))
	if err != nil {
		respondError(w, domain.NewValidation("invalid alias id"))
		return
	}

	if err := h.materials.RemoveAlias(r.Context(), aliasID); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

// ResolveAlias godoc
// @Summary Resolve an external code to materials
// @Description Look up materials known under an external alias code, optionally narrowed by alias kind
// @Tags Materials
// @Produce json
// @Param code query string true "Alias code"
// @Param kind query string false "Alias kind" Enums(department, customer, supplier)
// @Success 200 {object} domain.Response{data=[]domain.MaterialAlias}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /materials/resolve [get]
func (h *MaterialHandler) ResolveAlias(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, domain.NewValidation("query parameter 'code' is required"))
		return
	}
	kind := domain.MaterialAliasKind(r.URL.Query().Get("kind"))

	aliases, err := h.materials.ResolveAlias(r.Context(), code, kind)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, aliases)
}

// GetByMainCode godoc
// @Summary Get material by main code
// @Tags Materials
// @Produce json
// @Param code path string true "Material main code"
// @Success 200 {object} domain.Response{data=domain.Material}
// @Failure 404 {object} domain.Response
// @Security BearerAuth
// @Router /materials/by-code/{code} [get]
func (h *MaterialHandler) GetByMainCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	material, err := h.materials.GetByMainCode(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, material)
}
