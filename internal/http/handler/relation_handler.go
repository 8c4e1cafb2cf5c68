package handler

import (
	"net/http"
	"strconv"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RelationHandler struct {
	relations *service.RelationService
	logger    *zap.Logger
}

func NewRelationHandler(relations *service.RelationService, logger *zap.Logger) *RelationHandler {
	return &RelationHandler{relations: relations, logger: logger}
}

// Record godoc
// @Summary Record relation edge
// @Description Append one edge to the document graph; edges that would close a cycle are refused
// @Tags Relations
// @Accept json
// @Produce json
// @Param request body domain.RecordEdgeRequest true "Edge data"
// @Success 201 {object} domain.Response{data=domain.DocumentRelation}
// @Failure 409 {object} domain.Response "Duplicate edge or would create a cycle"
// @Security BearerAuth
// @Router /relations [post]
func (h *RelationHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req domain.RecordEdgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edge, err := h.relations.Record(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, edge)
}

func documentParams(w http.ResponseWriter, r *http.Request) (domain.DocumentType, uint, bool) {
	docType := domain.DocumentType(chi.URLParam(r, "docType"))
	docID, err := strconv.Atoi(chi.URLParam(r, "docId"))
	if err != nil || docID <= 0 {
		respondError(w, domain.NewValidation("invalid document id"))
		return "", 0, false
	}
	return docType, uint(docID), true
}

// Downstream godoc
// @Summary List downstream relations
// @Tags Relations
// @Produce json
// @Param docType path string true "Document type"
// @Param docId path int true "Document id"
// @Success 200 {object} domain.Response{data=[]domain.DocumentRelation}
// @Security BearerAuth
// @Router /relations/{docType}/{docId}/downstream [get]
func (h *RelationHandler) Downstream(w http.ResponseWriter, r *http.Request) {
	docType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	edges, err := h.relations.Downstream(r.Context(), docType, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, edges)
}

// Upstream godoc
// @Summary List upstream relations
// @Tags Relations
// @Produce json
// @Param docType path string true "Document type"
// @Param docId path int true "Document id"
// @Success 200 {object} domain.Response{data=[]domain.DocumentRelation}
// @Security BearerAuth
// @Router /relations/{docType}/{docId}/upstream [get]
func (h *RelationHandler) Upstream(w http.ResponseWriter, r *http.Request) {
	docType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	edges, err := h.relations.Upstream(r.Context(), docType, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, edges)
}

// TraceChain godoc
// @Summary Trace the full source chain of a document
// @Description Walk upstream to the root demands and back down, returning the chain ordered root-first
// @Tags Relations
// @Produce json
// @Param docType path string true "Document type"
// @Param docId path int true "Document id"
// @Success 200 {object} domain.Response{data=[]domain.ChainNode}
// @Failure 404 {object} domain.Response "Document has no recorded chain"
// @Security BearerAuth
// @Router /relations/{docType}/{docId}/chain [get]
func (h *RelationHandler) TraceChain(w http.ResponseWriter, r *http.Request) {
	docType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	chain, err := h.relations.TraceChain(r.Context(), docType, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, chain)
}
