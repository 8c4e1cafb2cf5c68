package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/config"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ComputationService runs MRP/LRP planning over approved demands. One
// run is one database transaction: demand marking, requirement
// aggregation, netting and result rows all commit or roll back
// together.
type ComputationService struct {
	repo         *repository.ComputationRepository
	demandRepo   *repository.DemandRepository
	materialRepo *repository.MaterialRepository
	inventory    *InventoryService
	boms         *BOMService
	codeGen      *CodeGeneratorService
	relations    *RelationService
	timings      *TimingService
	planning     *config.PlanningConfig
	logger       *zap.Logger
}

// NewComputationService creates a new ComputationService
func NewComputationService(
	repo *repository.ComputationRepository,
	demandRepo *repository.DemandRepository,
	materialRepo *repository.MaterialRepository,
	inventory *InventoryService,
	boms *BOMService,
	codeGen *CodeGeneratorService,
	relations *RelationService,
	timings *TimingService,
	planning *config.PlanningConfig,
	logger *zap.Logger,
) *ComputationService {
	return &ComputationService{
		repo:         repo,
		demandRepo:   demandRepo,
		materialRepo: materialRepo,
		inventory:    inventory,
		boms:         boms,
		codeGen:      codeGen,
		relations:    relations,
		timings:      timings,
		planning:     planning,
		logger:       logger,
	}
}

// materialRequirement accumulates gross demand for one material during
// a run, bucketed by time.
type materialRequirement struct {
	material   *domain.Material
	gross      decimal.Decimal
	schedule   map[string]decimal.Decimal
	leadOffset int
}

// Compute runs one planning pass. Partial results never surface: any
// failure rolls the transaction back and records a failed run with the
// structured failure kind.
func (s *ComputationService) Compute(ctx context.Context, req *domain.ComputeRequest) (*domain.DemandComputation, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	if !req.ComputationType.IsValid() {
		return nil, domain.NewValidationf("invalid computation type: %s", req.ComputationType)
	}
	params := s.normalizeParams(req)

	var computation *domain.DemandComputation
	err := s.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.computeTx(ctx, tx, user, req, params)
		if err != nil {
			return err
		}
		computation = c
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, user, req, params, err)
		return nil, err
	}

	// Timing node outside the transaction: a lost stamp must not void a
	// committed run.
	if _, err := s.timings.Start(ctx, &domain.NodeTimingRequest{
		DocumentType: domain.DocTypeDemandComputation,
		DocumentID:   computation.ID,
		NodeCode:     "created",
	}); err != nil {
		s.logger.Warn("failed to stamp computation timing node", zap.Error(err))
	}

	s.logger.Info("computation completed",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("computation_code", computation.ComputationCode),
		zap.String("type", string(computation.ComputationType)),
		zap.Int("items", len(computation.Items)))

	return computation, nil
}

func (s *ComputationService) normalizeParams(req *domain.ComputeRequest) domain.ComputeParams {
	params := req.Params
	if params.PlanningHorizonDays <= 0 {
		params.PlanningHorizonDays = s.planning.DefaultPlanningHorizonDays
	}
	if params.TimeBucket == "" {
		// LRP plans long range and defaults to coarser buckets.
		if req.ComputationType == domain.ComputationTypeLRP {
			params.TimeBucket = domain.TimeBucketMonth
		} else {
			params.TimeBucket = domain.TimeBucketDay
		}
	}
	return params
}

func (s *ComputationService) computeTx(ctx context.Context, tx *gorm.DB, user *auth.UserContext, req *domain.ComputeRequest, params domain.ComputeParams) (*domain.DemandComputation, error) {
	if !params.TimeBucket.IsValid() {
		return nil, domain.NewValidationf("invalid time bucket: %s", params.TimeBucket)
	}

	// Lock and validate the demands first so a concurrent run cannot
	// claim the same set.
	demands, err := s.demandRepo.GetForUpdate(ctx, tx, user.TenantID, req.DemandUUIDs)
	if err != nil {
		return nil, err
	}
	if len(demands) != len(req.DemandUUIDs) {
		return nil, domain.NewNotFound("demand")
	}

	var businessMode domain.BusinessMode
	demandIDs := make([]uint, 0, len(demands))
	demandUUIDs := make(pq.StringArray, 0, len(demands))
	for i := range demands {
		d := &demands[i]
		if d.ReviewStatus != domain.ReviewStatusApproved {
			return nil, domain.NewBusinessLogic(
				fmt.Sprintf("demand %s is not approved", d.DemandCode))
		}
		if d.PushedToComputation && !req.AllowRecompute {
			return nil, domain.NewBusinessLogic(
				fmt.Sprintf("demand %s has already been pushed to a computation", d.DemandCode))
		}
		if businessMode == "" {
			businessMode = d.BusinessMode
		} else if businessMode != d.BusinessMode {
			return nil, domain.NewBusinessLogic("demands of mixed business modes cannot share a computation")
		}
		demandIDs = append(demandIDs, d.ID)
		demandUUIDs = append(demandUUIDs, d.UUID.String())
	}

	code, err := s.codeGen.GenerateTx(ctx, tx, &domain.GenerateCodeRequest{
		RuleCode:  RuleCodeComputation,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	computation := &domain.DemandComputation{
		ComputationCode:   code,
		ComputationType:   req.ComputationType,
		ComputationStatus: domain.ComputationStatusRunning,
		BusinessMode:      businessMode,
		DemandUUIDs:       demandUUIDs,
		Params:            params,
		StartedAt:         &now,
	}
	if len(demandIDs) == 1 {
		computation.DemandID = &demandIDs[0]
	}
	computation.TenantID = user.TenantID
	computation.CreatedBy = user.UserID
	computation.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, tx, computation); err != nil {
		return nil, err
	}

	// Aggregate gross requirements: top-level demand lines first, then
	// their BOM explosions down to the leaves.
	requirements, err := s.aggregate(ctx, demands, businessMode, params)
	if err != nil {
		return nil, err
	}

	// Netting against shared available inventory.
	items, err := s.net(ctx, computation, requirements, params)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateItems(ctx, tx, items); err != nil {
		return nil, err
	}
	computation.Items = items

	if err := s.demandRepo.MarkPushed(ctx, tx, demandIDs, computation.ID); err != nil {
		return nil, err
	}

	for _, id := range demandIDs {
		err := s.relations.RecordTx(ctx, tx, &domain.DocumentRelation{
			SourceType: domain.DocTypeDemand,
			SourceID:   id,
			TargetType: domain.DocTypeDemandComputation,
			TargetID:   computation.ID,
			Kind:       domain.RelationKindPushed,
		})
		if err != nil {
			return nil, err
		}
	}

	done := time.Now()
	computation.ComputationStatus = domain.ComputationStatusCompleted
	computation.CompletedAt = &done
	if err := s.repo.Update(ctx, tx, computation); err != nil {
		return nil, err
	}

	return computation, nil
}

// anchorDate picks the bucket anchor of one demand item: delivery date
// under MTO, forecast date under MTS, falling back document-level.
func anchorDate(demand *domain.Demand, item *domain.DemandItem, mode domain.BusinessMode, fallback time.Time) time.Time {
	if mode == domain.BusinessModeMTO {
		if item.DeliveryDate != nil {
			return *item.DeliveryDate
		}
		if demand.DeliveryDate != nil {
			return *demand.DeliveryDate
		}
	} else {
		if item.ForecastDate != nil {
			return *item.ForecastDate
		}
		if demand.StartDate != nil {
			return *demand.StartDate
		}
	}
	return fallback
}

// bucketKey formats a date into its aggregation bucket.
func bucketKey(t time.Time, bucket domain.TimeBucket) string {
	switch bucket {
	case domain.TimeBucketWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.TimeBucketMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func (s *ComputationService) aggregate(ctx context.Context, demands []domain.Demand, mode domain.BusinessMode, params domain.ComputeParams) (map[uint]*materialRequirement, error) {
	now := time.Now()
	horizon := now.AddDate(0, 0, params.PlanningHorizonDays)
	requirements := make(map[uint]*materialRequirement)

	add := func(material *domain.Material, qty decimal.Decimal, at time.Time, leadOffset int) {
		req, ok := requirements[material.ID]
		if !ok {
			req = &materialRequirement{
				material: material,
				gross:    decimal.Zero,
				schedule: make(map[string]decimal.Decimal),
			}
			requirements[material.ID] = req
		}
		req.gross = req.gross.Add(qty)
		key := bucketKey(at, params.TimeBucket)
		req.schedule[key] = req.schedule[key].Add(qty)
		if leadOffset > req.leadOffset {
			req.leadOffset = leadOffset
		}
	}

	for i := range demands {
		demand := &demands[i]
		// Items must be loaded for the run; GetForUpdate skips preloads.
		full, err := s.demandRepo.GetByUUID(ctx, demand.UUID)
		if err != nil {
			return nil, translateNotFound(err, "demand")
		}

		for j := range full.Items {
			item := &full.Items[j]
			qty := item.RemainingQuantity
			if !qty.IsPositive() {
				continue
			}

			at := anchorDate(full, item, mode, now)
			if at.After(horizon) {
				// Outside the horizon: counted in gross totals of the
				// top item but planned into the last bucket.
				at = horizon
			}

			material, err := s.materialRepo.GetByID(ctx, item.MaterialID)
			if err != nil {
				return nil, translateNotFound(err, "material "+item.MaterialCode)
			}
			if material.SourceType == domain.SourceTypePhantom {
				return nil, domain.NewComputationFailed(domain.ComputationFailureMissingRule,
					"phantom materials cannot carry direct demand").WithDetail("material", material.MainCode)
			}

			add(material, qty, at, 0)

			// Dependent requirements via the approved BOM tree.
			exploded, err := s.boms.explode(ctx, material, qty)
			if err != nil {
				return nil, err
			}
			for _, dep := range exploded {
				depMaterial, err := s.materialRepo.GetByID(ctx, dep.MaterialID)
				if err != nil {
					return nil, translateNotFound(err, "material "+dep.MaterialCode)
				}
				depAt := at.AddDate(0, 0, -dep.LeadTimeOffsetDays)
				if depAt.Before(now) {
					depAt = now
				}
				add(depMaterial, dep.Quantity, depAt, dep.LeadTimeOffsetDays)
			}
		}
	}

	return requirements, nil
}

func (s *ComputationService) net(ctx context.Context, computation *domain.DemandComputation, requirements map[uint]*materialRequirement, params domain.ComputeParams) ([]domain.DemandComputationItem, error) {
	materialIDs := make([]uint, 0, len(requirements))
	for id := range requirements {
		materialIDs = append(materialIDs, id)
	}
	sort.Slice(materialIDs, func(i, j int) bool { return materialIDs[i] < materialIDs[j] })

	available, err := s.inventory.AvailableBulk(ctx, materialIDs)
	if err != nil {
		return nil, err
	}

	items := make([]domain.DemandComputationItem, 0, len(requirements))
	for _, id := range materialIDs {
		req := requirements[id]
		material := req.material

		avail := available[id]
		if avail.IsNegative() {
			return nil, domain.NewComputationFailed(domain.ComputationFailureInventoryInconsistent,
				"negative available inventory").WithDetail("material", material.MainCode)
		}

		safetyStock := material.SafetyStock
		target := req.gross.Add(safetyStock)
		net := target.Sub(avail)
		if net.IsNegative() {
			net = decimal.Zero
		}

		var warnings []string
		if avail.LessThan(material.ReorderPoint) && material.ReorderPoint.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("available inventory below reorder point %s", material.ReorderPoint.String()))
		}

		// Schedules: demand per bucket, inventory drawn down FIFO over
		// buckets, planned orders covering what inventory cannot.
		bucketKeys := make([]string, 0, len(req.schedule))
		for key := range req.schedule {
			bucketKeys = append(bucketKeys, key)
		}
		sort.Strings(bucketKeys)

		remainingInventory := avail
		demandSchedule := make([]domain.ScheduleEntry, 0, len(bucketKeys))
		inventorySchedule := make([]domain.ScheduleEntry, 0, len(bucketKeys))
		plannedSchedule := make([]domain.ScheduleEntry, 0, len(bucketKeys))
		for _, key := range bucketKeys {
			qty := req.schedule[key]
			demandSchedule = append(demandSchedule, domain.ScheduleEntry{Bucket: key, Quantity: qty})

			covered := decimal.Min(remainingInventory, qty)
			remainingInventory = remainingInventory.Sub(covered)
			inventorySchedule = append(inventorySchedule, domain.ScheduleEntry{Bucket: key, Quantity: remainingInventory})

			planned := qty.Sub(covered)
			if planned.IsPositive() {
				plannedSchedule = append(plannedSchedule, domain.ScheduleEntry{Bucket: key, Quantity: planned})
			}

			if params.MakeCapacityPerBucket != nil &&
				(material.SourceType == domain.SourceTypeMake || material.SourceType == domain.SourceTypeConfigure) &&
				planned.GreaterThan(*params.MakeCapacityPerBucket) {
				warnings = append(warnings, fmt.Sprintf("planned quantity %s in bucket %s exceeds capacity %s",
					planned.String(), key, params.MakeCapacityPerBucket.String()))
			}
		}

		item := domain.DemandComputationItem{
			ComputationID:      computation.ID,
			MaterialID:         material.ID,
			MaterialCode:       material.MainCode,
			SourceType:         material.SourceType,
			RequiredQuantity:   req.gross,
			AvailableInventory: avail,
			GrossRequirement:   req.gross,
			NetRequirement:     net,
			SafetyStock:        safetyStock,
			ReorderPoint:       material.ReorderPoint,
			PlannedReceipt:     decimal.Zero,
			PlannedRelease:     net,
			DetailResults: domain.DetailResults{
				DemandSchedule:       demandSchedule,
				InventorySchedule:    inventorySchedule,
				PlannedOrderSchedule: plannedSchedule,
				Warnings:             warnings,
			},
		}
		item.TenantID = computation.TenantID

		switch material.SourceType {
		case domain.SourceTypeMake, domain.SourceTypeConfigure:
			item.SuggestedWorkOrderQuantity = net
		case domain.SourceTypeBuy:
			item.SuggestedPurchaseOrderQuantity = net
		case domain.SourceTypeOutsource:
			item.SuggestedWorkOrderQuantity = net
		}

		items = append(items, item)
	}

	return items, nil
}

// recordFailure writes a failed run outside the rolled-back transaction
// so the attempt stays visible.
func (s *ComputationService) recordFailure(ctx context.Context, user *auth.UserContext, req *domain.ComputeRequest, params domain.ComputeParams, cause error) {
	uuids := make(pq.StringArray, 0, len(req.DemandUUIDs))
	for _, id := range req.DemandUUIDs {
		uuids = append(uuids, id.String())
	}
	now := time.Now()
	failed := &domain.DemandComputation{
		ComputationCode:   fmt.Sprintf("FAILED-%d", now.UnixNano()),
		ComputationType:   req.ComputationType,
		ComputationStatus: domain.ComputationStatusFailed,
		DemandUUIDs:       uuids,
		Params:            params,
		ErrorMessage:      cause.Error(),
		StartedAt:         &now,
		CompletedAt:       &now,
	}
	failed.TenantID = user.TenantID
	failed.CreatedBy = user.UserID
	failed.CreatedByName = user.DisplayName

	if err := s.repo.Create(ctx, nil, failed); err != nil {
		s.logger.Error("failed to record computation failure", zap.Error(err))
	}

	s.logger.Warn("computation failed",
		zap.Uint("tenant_id", user.TenantID),
		zap.String("type", string(req.ComputationType)),
		zap.Error(cause))
}

func (s *ComputationService) Get(ctx context.Context, id uuid.UUID) (*domain.DemandComputation, error) {
	computation, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "computation")
	}
	return computation, nil
}

func (s *ComputationService) List(ctx context.Context, skip, limit int, computationType domain.ComputationType, status domain.ComputationStatus) ([]domain.DemandComputation, int64, error) {
	return s.repo.List(ctx, skip, limit, computationType, status)
}

// ExpireStale marks runs stuck in running beyond the configured window
// as failed. Invoked by the background job.
func (s *ComputationService) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := s.repo.ExpireStaleRunning(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("expired stale computations", zap.Int64("count", n))
	}
	return n, nil
}
