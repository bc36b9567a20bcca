package workqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/db"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/geo"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
	"github.com/scraplinehq/scrapline-backend/pkg/metrics"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

const (
	opStatusUpdate = "order_status_update"

	workQueuePattern = "workqueue:*"

	statsWeekDays  = 7
	statsMonthDays = 30

	// statsCacheTTL bounds staleness for the dashboard aggregates; any
	// lifecycle mutation drops the whole workqueue namespace early anyway.
	statsCacheTTL = 5 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type timelineRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry timeline.Entry) error
}

type queueCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
	WorkQueueKey(parts ...string) string
}

// Service serves collectors' filtered queue views and the direct
// order-status write path.
type Service interface {
	ListWorkOrders(ctx context.Context, collectorID uuid.UUID, filters Filters, params pagination.Params) (*WorkOrderList, error)
	GetWorkOrder(ctx context.Context, collectorID, orderID uuid.UUID, loc *Location) (*WorkOrder, error)
	UpdateWorkOrderStatus(ctx context.Context, input UpdateStatusInput) (*WorkOrder, error)
	CollectorStats(ctx context.Context, collectorID uuid.UUID) (*CollectorStats, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	recorder timelineRecorder
	cache    queueCache
	metrics  *metrics.LifecycleMetrics
	logg     *logger.Logger
	cfg      config.WorkQueueConfig
	now      func() time.Time
}

// NewService builds the work-queue service. Cache, metrics, and logger are
// optional.
func NewService(repo Repository, tx txRunner, recorder timelineRecorder, cache queueCache, m *metrics.LifecycleMetrics, logg *logger.Logger, cfg config.WorkQueueConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("workqueue repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("timeline recorder required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		recorder: recorder,
		cache:    cache,
		metrics:  m,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (s *service) ListWorkOrders(ctx context.Context, collectorID uuid.UUID, filters Filters, params pagination.Params) (*WorkOrderList, error) {
	if collectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id required")
	}
	if filters.SortBy != "" && !SortColumnAllowed(filters.SortBy) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sort column %q", filters.SortBy))
	}
	for _, status := range filters.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", status))
		}
	}

	params = params.Normalize()
	orders, total, err := s.repo.ListOrders(ctx, collectorID, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list work orders")
	}

	geoApplied := false
	if filters.Location != nil {
		radius := s.cfg.DefaultRadiusKm
		if filters.RadiusKm != nil {
			radius = *filters.RadiusKm
		}
		orders = s.narrowAndEnrich(orders, *filters.Location, radius)
		geoApplied = true
	}

	summary, err := s.repo.Summarize(ctx, collectorID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize work orders")
	}

	meta := pagination.NewMeta(params, total)
	if geoApplied {
		// Geo narrowing runs on the fetched page, so totals describe the
		// narrowed result set rather than the unfiltered match count.
		meta = pagination.NewMeta(params, int64(len(orders)))
	}

	return &WorkOrderList{
		Orders:     orders,
		Summary:    *summary,
		Pagination: meta,
	}, nil
}

// narrowAndEnrich drops rows outside the radius and annotates the rest with
// distance and a drive-time estimate. Rows without coordinates cannot be
// placed relative to the collector, so an active geo filter excludes them.
func (s *service) narrowAndEnrich(orders []WorkOrder, loc Location, radiusKm float64) []WorkOrder {
	narrowed := make([]WorkOrder, 0, len(orders))
	for _, order := range orders {
		if order.Latitude == nil || order.Longitude == nil {
			continue
		}
		distance := geo.DistanceKm(loc.Latitude, loc.Longitude, *order.Latitude, *order.Longitude)
		if radiusKm > 0 && distance > radiusKm {
			continue
		}
		rounded := geo.RoundKm(distance)
		minutes := geo.EstimateDurationMinutes(distance)
		order.DistanceKm = &rounded
		order.EstimatedMinutes = &minutes
		narrowed = append(narrowed, order)
	}
	return narrowed
}

func (s *service) GetWorkOrder(ctx context.Context, collectorID, orderID uuid.UUID, loc *Location) (*WorkOrder, error) {
	if collectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	owns, err := s.repo.OwnsOrder(ctx, collectorID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order ownership")
	}
	if !owns {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order not assigned to collector")
	}

	if loc != nil && order.Latitude != nil && order.Longitude != nil {
		distance := geo.DistanceKm(loc.Latitude, loc.Longitude, *order.Latitude, *order.Longitude)
		rounded := geo.RoundKm(distance)
		minutes := geo.EstimateDurationMinutes(distance)
		order.DistanceKm = &rounded
		order.EstimatedMinutes = &minutes
	}
	return order, nil
}

func (s *service) UpdateWorkOrderStatus(ctx context.Context, input UpdateStatusInput) (*WorkOrder, error) {
	started := s.now()
	order, err := s.updateStatus(ctx, input)
	s.metrics.ObserveDuration(opStatusUpdate, s.now().Sub(started))
	if err != nil {
		s.metrics.IncFailure(opStatusUpdate)
		return nil, err
	}
	s.metrics.IncSuccess(opStatusUpdate)
	return order, nil
}

func (s *service) updateStatus(ctx context.Context, input UpdateStatusInput) (*WorkOrder, error) {
	if input.CollectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NextStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.NextStatus))
	}
	if len(input.Photos) > 0 && input.NextStatus != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photos are only accepted when completing an order")
	}

	at := input.At
	if at.IsZero() {
		at = s.now().UTC()
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		owns, err := repo.OwnsOrder(ctx, input.CollectorID, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order ownership")
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order not assigned to collector")
		}

		if order.OrderStatus == input.NextStatus {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order already %s", input.NextStatus))
		}
		if !order.OrderStatus.CanTransitionTo(input.NextStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot change order from %s to %s", order.OrderStatus, input.NextStatus))
		}

		updates := map[string]any{"order_status": input.NextStatus}
		if input.NextStatus == enums.OrderStatusCompleted && order.ActualPrice == nil {
			updates["actual_price"] = order.QuotedPrice
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		if input.NextStatus == enums.OrderStatusCompleted {
			if err := s.closeOpenAssignments(ctx, repo, input, at); err != nil {
				return err
			}
		}

		notes := fmt.Sprintf("Status changed to %s", input.NextStatus)
		if input.Notes != nil && *input.Notes != "" {
			notes = *input.Notes
		}
		entry := timeline.Entry{
			OrderID:     order.ID,
			Status:      input.NextStatus,
			Notes:       notes,
			PerformedBy: timeline.PerformerCollector(input.CollectorID),
			At:          at,
		}
		return s.recorder.Record(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateQueues(ctx)

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

// closeOpenAssignments keeps the aggregate rule intact when an order is
// completed directly: any still-open assignment rows are closed with it.
// The caller's own assignment receives the completion notes and photos.
func (s *service) closeOpenAssignments(ctx context.Context, repo Repository, input UpdateStatusInput, at time.Time) error {
	assignments, err := repo.FindAssignmentsByOrder(ctx, input.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order assignments")
	}

	var photosJSON *string
	if len(input.Photos) > 0 {
		encoded, err := json.Marshal(input.Photos)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode completion photos")
		}
		str := string(encoded)
		photosJSON = &str
	}

	for _, assignment := range assignments {
		mine := assignment.CollectorID != nil && *assignment.CollectorID == input.CollectorID

		updates := map[string]any{}
		if assignment.Status != enums.AssignmentStatusCompleted {
			updates["status"] = enums.AssignmentStatusCompleted
			updates["end_time"] = at
			updates["completed_at"] = at
		}
		if mine {
			if input.Notes != nil {
				updates["completion_notes"] = *input.Notes
			}
			if photosJSON != nil {
				updates["completion_photos"] = *photosJSON
			}
		}
		if len(updates) == 0 {
			continue
		}
		if err := repo.UpdateAssignment(ctx, assignment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close assignment")
		}
	}
	return nil
}

func (s *service) CollectorStats(ctx context.Context, collectorID uuid.UUID) (*CollectorStats, error) {
	if collectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id required")
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.WorkQueueKey("stats", collectorID.String())
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var stats CollectorStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -statsWeekDays)
	monthStart := now.AddDate(0, 0, -statsMonthDays)

	stats := &CollectorStats{}
	buckets := []struct {
		since  *time.Time
		target *StatsBucket
	}{
		{&dayStart, &stats.Today},
		{&weekStart, &stats.Week},
		{&monthStart, &stats.Month},
		{nil, &stats.Overall},
	}

	for _, bucket := range buckets {
		filled, err := s.statsBucket(ctx, collectorID, bucket.since)
		if err != nil {
			return nil, err
		}
		*bucket.target = filled
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(payload), statsCacheTTL); err != nil && s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("collector stats cache write failed: %v", err))
			}
		}
	}
	return stats, nil
}

func (s *service) statsBucket(ctx context.Context, collectorID uuid.UUID, since *time.Time) (StatsBucket, error) {
	assigned, err := s.repo.CountAssigned(ctx, collectorID, since)
	if err != nil {
		return StatsBucket{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count assigned")
	}
	completed, err := s.repo.CountCompleted(ctx, collectorID, since)
	if err != nil {
		return StatsBucket{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed")
	}
	revenue, err := s.repo.SumRevenue(ctx, collectorID, since)
	if err != nil {
		return StatsBucket{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}

	rate := 0.0
	if assigned > 0 {
		rate = float64(completed) / float64(assigned)
	}
	return StatsBucket{
		AssignedCount:  assigned,
		CompletedCount: completed,
		Revenue:        revenue,
		CompletionRate: rate,
	}, nil
}

func (s *service) invalidateQueues(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workQueuePattern); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("work queue cache invalidation failed: %v", err))
	}
}
