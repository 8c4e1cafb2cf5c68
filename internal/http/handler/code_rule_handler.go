package handler

import (
	"net/http"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"go.uber.org/zap"
)

type CodeRuleHandler struct {
	codeGen *service.CodeGeneratorService
	logger  *zap.Logger
}

func NewCodeRuleHandler(codeGen *service.CodeGeneratorService, logger *zap.Logger) *CodeRuleHandler {
	return &CodeRuleHandler{codeGen: codeGen, logger: logger}
}

// Create godoc
// @Summary Register code rule
// @Description Register a code template like SO{YYYY}{MM}{DD}{SEQ:4} with a reset cycle
// @Tags CodeRules
// @Accept json
// @Produce json
// @Param request body domain.CreateCodeRuleRequest true "Rule data"
// @Success 201 {object} domain.Response{data=domain.CodeRule}
// @Failure 400 {object} domain.Response "Template missing a sequence token"
// @Failure 409 {object} domain.Response "Rule code already registered"
// @Security BearerAuth
// @Router /code-rules [post]
func (h *CodeRuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCodeRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.codeGen.CreateRule(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, rule)
}

// List godoc
// @Summary List code rules
// @Tags CodeRules
// @Produce json
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Page size (max 200)" default(20)
// @Success 200 {object} domain.Response{data=domain.PaginatedResponse}
// @Security BearerAuth
// @Router /code-rules [get]
func (h *CodeRuleHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	rules, total, err := h.codeGen.ListRules(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error("failed to list code rules", zap.Error(err))
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, paginated(rules, total, skip, limit))
}

// Generate godoc
// @Summary Generate next code
// @Description Atomically draw the next code of a rule; a replayed requestId returns the original code
// @Tags CodeRules
// @Accept json
// @Produce json
// @Param request body domain.GenerateCodeRequest true "Generation request"
// @Success 200 {object} domain.Response
// @Failure 404 {object} domain.Response "Unknown rule"
// @Security BearerAuth
// @Router /code-rules/generate [post]
func (h *CodeRuleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code, err := h.codeGen.Generate(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"code": code})
}

// Preview godoc
// @Summary Preview next code
// @Description Render the code the next generation would produce without consuming a sequence number
// @Tags CodeRules
// @Accept json
// @Produce json
// @Param request body domain.GenerateCodeRequest true "Preview request"
// @Success 200 {object} domain.Response
// @Failure 404 {object} domain.Response "Unknown rule"
// @Security BearerAuth
// @Router /code-rules/preview [post]
func (h *CodeRuleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code, err := h.codeGen.Preview(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"code": code})
}
