package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Well-known rule codes used by document creation when the caller does
// not supply a code.
const (
	RuleCodeMaterial            = "MATERIAL"
	RuleCodeBOM                 = "BOM"
	RuleCodeDemand              = "DEMAND"
	RuleCodeComputation         = "COMPUTATION"
	RuleCodeWorkOrder           = "WORK_ORDER"
	RuleCodeOutsourceWorkOrder  = "OUTSOURCE_WORK_ORDER"
	RuleCodePurchaseRequisition = "PURCHASE_REQUISITION"
	RuleCodePurchaseOrder       = "PURCHASE_ORDER"
)

var seqToken = regexp.MustCompile(`\{SEQ(?::(\d+))?\}`)
var ctxToken = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// CodeGeneratorService renders business codes from per-tenant templates.
//
// Template tokens: {YYYY} {YY} {MM} {DD} expand from the generation
// date, {SEQ:n} is the zero-padded counter value, and any other {name}
// is looked up in the request context map. Example:
// "WO{YYYY}{MM}{DD}{SEQ:4}" -> "WO202608310007".
type CodeGeneratorService struct {
	repo   *repository.CodeRuleRepository
	logger *zap.Logger
}

// NewCodeGeneratorService creates a new CodeGeneratorService
func NewCodeGeneratorService(repo *repository.CodeRuleRepository, logger *zap.Logger) *CodeGeneratorService {
	return &CodeGeneratorService{
		repo:   repo,
		logger: logger,
	}
}

// CreateRule registers a code rule for the caller's tenant.
func (s *CodeGeneratorService) CreateRule(ctx context.Context, req *domain.CreateCodeRuleRequest) (*domain.CodeRule, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	if !req.ResetCycle.IsValid() {
		return nil, domain.NewValidationf("invalid reset cycle: %s", req.ResetCycle)
	}
	if !seqToken.MatchString(req.Template) {
		return nil, domain.NewValidation("template must contain a {SEQ} token")
	}

	if _, err := s.repo.GetByRuleCode(ctx, req.RuleCode); err == nil {
		return nil, domain.NewBusinessLogic(fmt.Sprintf("code rule %s already exists", req.RuleCode))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	step := req.Step
	if step == 0 {
		step = 1
	}
	startValue := req.StartValue
	if startValue == 0 {
		startValue = 1
	}

	rule := &domain.CodeRule{
		RuleCode:   req.RuleCode,
		Name:       req.Name,
		Template:   req.Template,
		ResetCycle: req.ResetCycle,
		StartValue: startValue,
		Step:       step,
		IsActive:   true,
	}
	rule.TenantID = user.TenantID
	rule.CreatedBy = user.UserID
	rule.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("code rule created",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("rule_code", rule.RuleCode),
		zap.String("template", rule.Template))

	return rule, nil
}

// ListRules lists the tenant's code rules.
func (s *CodeGeneratorService) ListRules(ctx context.Context, skip, limit int) ([]domain.CodeRule, int64, error) {
	return s.repo.List(ctx, skip, limit)
}

// Generate renders the next code of a rule. A request id makes the call
// idempotent: replaying it returns the code minted the first time.
func (s *CodeGeneratorService) Generate(ctx context.Context, req *domain.GenerateCodeRequest) (string, error) {
	return s.GenerateTx(ctx, nil, req)
}

// GenerateTx is Generate running inside an enclosing transaction. The
// counter increment joins tx so a rolled-back document does not burn a
// visible gap beyond the transaction itself.
func (s *CodeGeneratorService) GenerateTx(ctx context.Context, tx *gorm.DB, req *domain.GenerateCodeRequest) (string, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return "", ErrNoTenant
	}

	if req.RequestID != "" {
		key, err := s.repo.GetIdempotencyKey(ctx, user.TenantID, req.RequestID)
		if err == nil {
			s.logger.Debug("code generation replayed",
				zap.Uint("tenant_id", user.TenantID),
				zap.String("request_id", req.RequestID),
				zap.String("code", key.Code))
			return key.Code, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	rule, err := s.repo.GetByRuleCode(ctx, req.RuleCode)
	if err != nil {
		return "", translateNotFound(err, "code rule "+req.RuleCode)
	}

	now := time.Now()
	scopeKey := ScopeKey(rule.ResetCycle, now)

	seq, err := s.repo.NextValue(ctx, tx, user.TenantID, rule, scopeKey)
	if err != nil {
		return "", domain.NewComputationFailed(domain.ComputationFailureLockTimeout, "failed to advance code counter").WithCause(err)
	}

	code, err := renderTemplate(rule.Template, now, seq, req.Context)
	if err != nil {
		return "", err
	}

	if req.RequestID != "" {
		err := s.repo.SaveIdempotencyKey(ctx, tx, &domain.IdempotencyKey{
			TenantID:  user.TenantID,
			RequestID: req.RequestID,
			RuleCode:  rule.RuleCode,
			Code:      code,
		})
		if err != nil {
			// A concurrent replay beat us to the insert; return its code.
			if key, getErr := s.repo.GetIdempotencyKey(ctx, user.TenantID, req.RequestID); getErr == nil {
				return key.Code, nil
			}
			return "", err
		}
	}

	return code, nil
}

// Preview renders what the next code would look like without consuming
// a sequence number.
func (s *CodeGeneratorService) Preview(ctx context.Context, req *domain.GenerateCodeRequest) (string, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return "", ErrNoTenant
	}

	rule, err := s.repo.GetByRuleCode(ctx, req.RuleCode)
	if err != nil {
		return "", translateNotFound(err, "code rule "+req.RuleCode)
	}

	now := time.Now()
	current, err := s.repo.CurrentValue(ctx, user.TenantID, rule.RuleCode, ScopeKey(rule.ResetCycle, now))
	if err != nil {
		return "", err
	}

	next := current + rule.Step
	if current == 0 {
		next = rule.StartValue
	}

	return renderTemplate(rule.Template, now, next, req.Context)
}

// ScopeKey derives the counter scope for a reset cycle at an instant.
// A new scope key means the sequence restarts from the rule's start
// value.
func ScopeKey(cycle domain.ResetCycle, t time.Time) string {
	switch cycle {
	case domain.ResetCycleDaily:
		return t.Format("20060102")
	case domain.ResetCycleMonthly:
		return t.Format("200601")
	case domain.ResetCycleYearly:
		return t.Format("2006")
	default:
		return "global"
	}
}

func renderTemplate(template string, t time.Time, seq int64, context map[string]string) (string, error) {
	out := template
	out = strings.ReplaceAll(out, "{YYYY}", t.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", t.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", t.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", t.Format("02"))

	out = seqToken.ReplaceAllStringFunc(out, func(match string) string {
		groups := seqToken.FindStringSubmatch(match)
		width := 4
		if groups[1] != "" {
			width, _ = strconv.Atoi(groups[1])
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	var missing string
	out = ctxToken.ReplaceAllStringFunc(out, func(match string) string {
		name := ctxToken.FindStringSubmatch(match)[1]
		if val, ok := context[name]; ok {
			return val
		}
		missing = name
		return match
	})
	if missing != "" {
		return "", domain.NewValidationf("template variable %s not provided", missing)
	}

	return out, nil
}
