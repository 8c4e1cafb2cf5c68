package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// IdempotencyCleanupJobName is the name of the idempotency key cleanup job.
const IdempotencyCleanupJobName = "idempotency_cleanup"

// StaleComputationJobName is the name of the stale computation expiry job.
const StaleComputationJobName = "stale_computation_expiry"

const (
	idempotencyCleanupSchedule = "@hourly"
	staleComputationSchedule   = "@every 5m"

	jobTimeout = 2 * time.Minute
)

// IdempotencyStore removes expired code-generation idempotency keys.
// The interface keeps the job decoupled from the repository package.
type IdempotencyStore interface {
	DeleteIdempotencyKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ComputationExpirer fails computations stuck in the running state.
type ComputationExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob deletes idempotency keys older than the retention window.
type IdempotencyCleanupJob struct {
	store     IdempotencyStore
	logger    *zap.Logger
	retention time.Duration
}

func NewIdempotencyCleanupJob(store IdempotencyStore, logger *zap.Logger, retention time.Duration) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{
		store:     store,
		logger:    logger,
		retention: retention,
	}
}

// Run executes the cleanup. Called by the scheduler.
func (j *IdempotencyCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.store.DeleteIdempotencyKeysBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("idempotency key cleanup failed", zap.Error(err))
		return
	}

	if deleted > 0 {
		j.logger.Info("idempotency key cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}

// StaleComputationJob marks computations stuck in running as failed so a
// crashed run does not block the tenant forever.
type StaleComputationJob struct {
	expirer ComputationExpirer
	logger  *zap.Logger
	maxAge  time.Duration
}

func NewStaleComputationJob(expirer ComputationExpirer, logger *zap.Logger, maxAge time.Duration) *StaleComputationJob {
	return &StaleComputationJob{
		expirer: expirer,
		logger:  logger,
		maxAge:  maxAge,
	}
}

// Run executes the expiry. Called by the scheduler.
func (j *StaleComputationJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	expired, err := j.expirer.ExpireStale(ctx, j.maxAge)
	if err != nil {
		j.logger.Error("stale computation expiry failed", zap.Error(err))
		return
	}

	if expired > 0 {
		j.logger.Warn("expired stale computations",
			zap.Int64("expired", expired),
			zap.Duration("max_age", j.maxAge))
	}
}

// RegisterMaintenanceJobs registers the cleanup and expiry jobs with the
// scheduler using their default cron expressions.
func RegisterMaintenanceJobs(
	scheduler *Scheduler,
	store IdempotencyStore,
	expirer ComputationExpirer,
	logger *zap.Logger,
	idempotencyRetention time.Duration,
	staleComputationAge time.Duration,
) error {
	cleanup := NewIdempotencyCleanupJob(store, logger, idempotencyRetention)
	if err := scheduler.AddJob(IdempotencyCleanupJobName, idempotencyCleanupSchedule, cleanup.Run); err != nil {
		return err
	}

	expiry := NewStaleComputationJob(expirer, logger, staleComputationAge)
	return scheduler.AddJob(StaleComputationJobName, staleComputationSchedule, expiry.Run)
}
