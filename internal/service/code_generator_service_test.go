package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCodeGeneratorService_CreateRule(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()

	rule, err := svc.CreateRule(ctx, &domain.CreateCodeRuleRequest{
		RuleCode:   "WORK_ORDER",
		Name:       "Work orders",
		Template:   "WO{YYYY}{MM}{DD}{SEQ:4}",
		ResetCycle: domain.ResetCycleDaily,
	})
	require.NoError(t, err)
	assert.Equal(t, "WORK_ORDER", rule.RuleCode)
	assert.Equal(t, int64(1), rule.StartValue)
	assert.Equal(t, int64(1), rule.Step)
	assert.True(t, rule.IsActive)
}

func TestCodeGeneratorService_CreateRule_RequiresSeqToken(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()

	_, err := svc.CreateRule(ctx, &domain.CreateCodeRuleRequest{
		RuleCode:   "BROKEN",
		Template:   "WO{YYYY}{MM}",
		ResetCycle: domain.ResetCycleNone,
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestCodeGeneratorService_CreateRule_Duplicate(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()

	req := &domain.CreateCodeRuleRequest{
		RuleCode:   "DEMAND",
		Template:   "DM{SEQ:4}",
		ResetCycle: domain.ResetCycleNone,
	}
	_, err := svc.CreateRule(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateRule(ctx, req)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeBusinessLogic))
}

func TestCodeGeneratorService_Generate_Sequence(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "WORK_ORDER", "WO{YYYY}{MM}{DD}{SEQ:4}")

	first, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "WORK_ORDER"})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "WORK_ORDER"})
	require.NoError(t, err)

	datePart := time.Now().Format("20060102")
	assert.Equal(t, "WO"+datePart+"0001", first)
	assert.Equal(t, "WO"+datePart+"0002", second)
}

func TestCodeGeneratorService_Generate_ContextTokens(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "BATCH", "B{line}{SEQ:3}")

	code, err := svc.Generate(ctx, &domain.GenerateCodeRequest{
		RuleCode: "BATCH",
		Context:  map[string]string{"line": "L1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "BL1001", code)

	_, err = svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "BATCH"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestCodeGeneratorService_Generate_Idempotent(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "DEMAND", "DM{SEQ:4}")

	first, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "DEMAND", RequestID: "req-42"})
	require.NoError(t, err)

	replayed, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "DEMAND", RequestID: "req-42"})
	require.NoError(t, err)
	assert.Equal(t, first, replayed)

	// The replay must not have burned a sequence number.
	next, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "DEMAND"})
	require.NoError(t, err)
	assert.Equal(t, "DM0002", next)
}

func TestCodeGeneratorService_GenerateTx_RollbackDiscardsIdempotencyKey(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "DEMAND", "DM{SEQ:4}")

	// A generated code whose enclosing transaction rolls back must take
	// its request mapping down with it, or a later replay would return a
	// code whose sequence number was never consumed.
	abort := errors.New("abort")
	var minted string
	err := db.Transaction(func(tx *gorm.DB) error {
		code, err := svc.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{RuleCode: "DEMAND", RequestID: "req-7"})
		require.NoError(t, err)
		minted = code
		return abort
	})
	require.ErrorIs(t, err, abort)

	var keys int64
	require.NoError(t, db.Model(&domain.IdempotencyKey{}).Count(&keys).Error)
	assert.Equal(t, int64(0), keys)

	// The retry mints fresh; the counter rolled back too, so the same
	// number comes out exactly once.
	again, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "DEMAND", RequestID: "req-7"})
	require.NoError(t, err)
	assert.Equal(t, minted, again)

	next, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "DEMAND"})
	require.NoError(t, err)
	assert.Equal(t, "DM0002", next)
}

func TestCodeGeneratorService_Preview_DoesNotConsume(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()
	seedRule(t, ctx, db, "BOM", "BOM{SEQ:4}")

	preview, err := svc.Preview(ctx, &domain.GenerateCodeRequest{RuleCode: "BOM"})
	require.NoError(t, err)
	assert.Equal(t, "BOM0001", preview)

	generated, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "BOM"})
	require.NoError(t, err)
	assert.Equal(t, "BOM0001", generated)

	preview, err = svc.Preview(ctx, &domain.GenerateCodeRequest{RuleCode: "BOM"})
	require.NoError(t, err)
	assert.Equal(t, "BOM0002", preview)
}

func TestCodeGeneratorService_Generate_UnknownRule(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	ctx := testContext()

	_, err := svc.Generate(ctx, &domain.GenerateCodeRequest{RuleCode: "NOPE"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestCodeGeneratorService_Generate_TenantIsolation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := createCodeGeneratorService(db)
	seedRule(t, testContext(), db, "WORK_ORDER", "WO{SEQ:4}")

	_, err := svc.Generate(testContextForTenant(2), &domain.GenerateCodeRequest{RuleCode: "WORK_ORDER"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestScopeKey(t *testing.T) {
	at := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "20260831", service.ScopeKey(domain.ResetCycleDaily, at))
	assert.Equal(t, "202608", service.ScopeKey(domain.ResetCycleMonthly, at))
	assert.Equal(t, "2026", service.ScopeKey(domain.ResetCycleYearly, at))
	assert.Equal(t, "global", service.ScopeKey(domain.ResetCycleNone, at))
}
