package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"go.uber.org/zap"
)

type TimingHandler struct {
	timings *service.TimingService
	logger  *zap.Logger
}

func NewTimingHandler(timings *service.TimingService, logger *zap.Logger) *TimingHandler {
	return &TimingHandler{timings: timings, logger: logger}
}

// Start godoc
// @Summary Start a timing node
// @Description Stamp the start of a document process node; repeated starts keep the first timestamp
// @Tags Timings
// @Accept json
// @Produce json
// @Param request body domain.NodeTimingRequest true "Node identity"
// @Success 200 {object} domain.Response{data=domain.DocumentNodeTiming}
// @Security BearerAuth
// @Router /timings/start [post]
func (h *TimingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req domain.NodeTimingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	timing, err := h.timings.Start(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, timing)
}

// End godoc
// @Summary End a timing node
// @Description Stamp the end of a started node and compute elapsed and working-hours durations
// @Tags Timings
// @Accept json
// @Produce json
// @Param request body domain.NodeTimingRequest true "Node identity"
// @Success 200 {object} domain.Response{data=domain.DocumentNodeTiming}
// @Failure 409 {object} domain.Response "Node was never started"
// @Security BearerAuth
// @Router /timings/end [post]
func (h *TimingHandler) End(w http.ResponseWriter, r *http.Request) {
	var req domain.NodeTimingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	timing, err := h.timings.End(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, timing)
}

// List godoc
// @Summary List timing nodes of a document
// @Tags Timings
// @Produce json
// @Param docType path string true "Document type"
// @Param docId path int true "Document id"
// @Success 200 {object} domain.Response{data=[]domain.DocumentNodeTiming}
// @Security BearerAuth
// @Router /timings/{docType}/{docId} [get]
func (h *TimingHandler) List(w http.ResponseWriter, r *http.Request) {
	docType, docID, ok := documentParams(w, r)
	if !ok {
		return
	}

	timings, err := h.timings.List(r.Context(), docType, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, timings)
}
