package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TimingService records the wall-clock window of document process
// nodes. Start and End are idempotent: repeated calls keep the first
// start and the first end.
type TimingService struct {
	repo     *repository.TimingRepository
	planning *config.PlanningConfig
	logger   *zap.Logger
}

// NewTimingService creates a new TimingService
func NewTimingService(repo *repository.TimingRepository, planning *config.PlanningConfig, logger *zap.Logger) *TimingService {
	return &TimingService{
		repo:     repo,
		planning: planning,
		logger:   logger,
	}
}

// Start stamps the start of a node, creating the node on first touch.
// A node that already started keeps its original timestamp.
func (s *TimingService) Start(ctx context.Context, req *domain.NodeTimingRequest) (*domain.DocumentNodeTiming, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	var result *domain.DocumentNodeTiming
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		timing, err := s.repo.GetForUpdate(ctx, tx, user.TenantID, req.DocumentType, req.DocumentID, req.NodeCode)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := time.Now()
			timing = &domain.DocumentNodeTiming{
				TenantID:     user.TenantID,
				DocumentType: req.DocumentType,
				DocumentID:   req.DocumentID,
				NodeCode:     req.NodeCode,
				StartTime:    &now,
				Operator:     user.UserID,
			}
			result = timing
			return tx.Create(timing).Error
		}
		if err != nil {
			return err
		}
		if timing.StartTime == nil {
			now := time.Now()
			timing.StartTime = &now
			timing.Operator = user.UserID
			if err := tx.Save(timing).Error; err != nil {
				return err
			}
		}
		result = timing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// End stamps the end of a started node and computes the elapsed and
// working-hours durations. Ending twice keeps the first end.
func (s *TimingService) End(ctx context.Context, req *domain.NodeTimingRequest) (*domain.DocumentNodeTiming, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	var result *domain.DocumentNodeTiming
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		timing, err := s.repo.GetForUpdate(ctx, tx, user.TenantID, req.DocumentType, req.DocumentID, req.NodeCode)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewBusinessLogic("timing node was never started")
		}
		if err != nil {
			return err
		}
		if timing.StartTime == nil {
			return domain.NewBusinessLogic("timing node was never started")
		}
		if timing.EndTime != nil {
			result = timing
			return nil
		}

		now := time.Now()
		timing.EndTime = &now
		timing.DurationSeconds = int64(now.Sub(*timing.StartTime).Seconds())
		timing.DurationHours = s.workingHours(*timing.StartTime, now)
		result = timing
		return tx.Save(timing).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns all timing nodes of one document.
func (s *TimingService) List(ctx context.Context, docType domain.DocumentType, docID uint) ([]domain.DocumentNodeTiming, error) {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.repo.ListByDocument(ctx, tenantID, docType, docID)
}

// workingHours nets out weekends and off-shift time using the tenant
// working-day window from configuration.
func (s *TimingService) workingHours(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}

	perDay := s.planning.WorkingHoursPerDay
	startHour := float64(s.planning.WorkdayStartHour)
	endHour := startHour + perDay

	total := 0.0
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for !day.After(end) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			windowStart := day.Add(time.Duration(startHour * float64(time.Hour)))
			windowEnd := day.Add(time.Duration(endHour * float64(time.Hour)))

			from := maxTime(start, windowStart)
			to := minTime(end, windowEnd)
			if to.After(from) {
				total += to.Sub(from).Hours()
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return math.Round(total*10000) / 10000
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
