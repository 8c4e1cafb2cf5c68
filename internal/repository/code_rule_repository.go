package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeRuleRepository handles code rules, their counters and the
// idempotency keys of code-generating requests.
type CodeRuleRepository struct {
	db *gorm.DB
}

// NewCodeRuleRepository creates a new CodeRuleRepository
func NewCodeRuleRepository(db *gorm.DB) *CodeRuleRepository {
	return &CodeRuleRepository{db: db}
}

func (r *CodeRuleRepository) Create(ctx context.Context, rule *domain.CodeRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *CodeRuleRepository) Update(ctx context.Context, rule *domain.CodeRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *CodeRuleRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.CodeRule, error) {
	var rule domain.CodeRule
	query := r.db.WithContext(ctx).Where("uuid = ?", id)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *CodeRuleRepository) GetByRuleCode(ctx context.Context, ruleCode string) (*domain.CodeRule, error) {
	var rule domain.CodeRule
	query := r.db.WithContext(ctx).Where("rule_code = ? AND is_active = ?", ruleCode, true)
	query = ApplyTenantScope(ctx, query)
	if err := query.First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *CodeRuleRepository) List(ctx context.Context, skip, limit int) ([]domain.CodeRule, int64, error) {
	var rules []domain.CodeRule
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.CodeRule{})
	query = ApplyTenantScope(ctx, query)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(skip).Limit(ClampPageSize(limit)).Order("rule_code ASC").Find(&rules).Error
	return rules, total, err
}

// NextValue atomically advances the counter of one (tenant, rule,
// scope) cell and returns the new value. The row lock serializes
// concurrent generators; a missing row is seeded from the rule's start
// value. Safe to call inside an enclosing transaction by passing tx.
func (r *CodeRuleRepository) NextValue(ctx context.Context, tx *gorm.DB, tenantID uint, rule *domain.CodeRule, scopeKey string) (int64, error) {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}

	var next int64
	err := tx.Transaction(func(tx *gorm.DB) error {
		var counter domain.CodeCounter
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND rule_code = ? AND scope_key = ?", tenantID, rule.RuleCode, scopeKey).
			First(&counter)

		if result.Error == gorm.ErrRecordNotFound {
			counter = domain.CodeCounter{
				TenantID: tenantID,
				RuleCode: rule.RuleCode,
				ScopeKey: scopeKey,
				Value:    rule.StartValue,
			}
			if err := tx.Create(&counter).Error; err != nil {
				return fmt.Errorf("failed to create code counter: %w", err)
			}
			next = counter.Value
		} else if result.Error != nil {
			return fmt.Errorf("failed to get code counter: %w", result.Error)
		} else {
			next = counter.Value + rule.Step
			if err := tx.Model(&counter).Updates(map[string]interface{}{
				"value":      next,
				"updated_at": time.Now(),
			}).Error; err != nil {
				return fmt.Errorf("failed to update code counter: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return next, nil
}

// CurrentValue reads a counter without advancing it. Returns 0 when the
// scope has never been used.
func (r *CodeRuleRepository) CurrentValue(ctx context.Context, tenantID uint, ruleCode, scopeKey string) (int64, error) {
	var counter domain.CodeCounter
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rule_code = ? AND scope_key = ?", tenantID, ruleCode, scopeKey).
		First(&counter)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get code counter: %w", result.Error)
	}

	return counter.Value, nil
}

// GetIdempotencyKey returns the stored outcome of a prior request, or
// gorm.ErrRecordNotFound when the request id is unseen.
func (r *CodeRuleRepository) GetIdempotencyKey(ctx context.Context, tenantID uint, requestID string) (*domain.IdempotencyKey, error) {
	var key domain.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND request_id = ?", tenantID, requestID).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// SaveIdempotencyKey records the outcome of a code-generating request.
// The insert joins tx so a rolled-back document cannot leave a key
// pointing at a sequence number that was never consumed.
func (r *CodeRuleRepository) SaveIdempotencyKey(ctx context.Context, tx *gorm.DB, key *domain.IdempotencyKey) error {
	if tx == nil {
		tx = r.db.WithContext(ctx)
	}
	return tx.Create(key).Error
}

// DeleteIdempotencyKeysBefore removes keys older than the cutoff across
// all tenants. Called by the retention job.
func (r *CodeRuleRepository) DeleteIdempotencyKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.IdempotencyKey{})
	return result.RowsAffected, result.Error
}
