package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/pkg/db"
	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
	"github.com/scraplinehq/scrapline-backend/pkg/metrics"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

const (
	opStart    = "assignment_start"
	opComplete = "assignment_complete"

	// workQueuePattern matches every cached work-queue projection. Any
	// assignment mutation can change any collector's queue (crew fan-out),
	// so the whole namespace is dropped.
	workQueuePattern = "workqueue:*"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type timelineRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry timeline.Entry) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// Service owns every assignment status change and the order status roll-up
// derived from it.
type Service interface {
	Start(ctx context.Context, input StartInput) (*AssignmentDetail, error)
	Complete(ctx context.Context, input CompleteInput) (*AssignmentDetail, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AssignmentDetail, error)
	ListByCollector(ctx context.Context, collectorID uuid.UUID, params pagination.Params) (*AssignmentList, error)
	ListByCrew(ctx context.Context, crewID uuid.UUID, params pagination.Params) (*AssignmentList, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	recorder timelineRecorder
	cache    cacheInvalidator
	metrics  *metrics.LifecycleMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the assignment lifecycle service. Cache, metrics, and
// logger are optional.
func NewService(repo Repository, tx txRunner, recorder timelineRecorder, cache cacheInvalidator, m *metrics.LifecycleMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
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
		now:      time.Now,
	}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*AssignmentDetail, error) {
	started := s.now()
	detail, err := s.start(ctx, input)
	s.observe(ctx, opStart, started, err)
	return detail, err
}

func (s *service) start(ctx context.Context, input StartInput) (*AssignmentDetail, error) {
	if err := validateTarget(input.OrderID, input.AssignmentID, input.Actor); err != nil {
		return nil, err
	}

	at := input.At
	if at.IsZero() {
		at = s.now().UTC()
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := s.loadHeldAssignment(ctx, repo, input.OrderID, input.AssignmentID, input.Actor)
		if err != nil {
			return err
		}

		switch assignment.Status {
		case enums.AssignmentStatusInProgress:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment already started")
		case enums.AssignmentStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment already completed")
		}

		updates := map[string]any{
			"status":     enums.AssignmentStatusInProgress,
			"start_time": at,
		}
		if err := repo.UpdateAssignment(ctx, assignment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
		}

		order, err := repo.FindOrderForUpdate(ctx, assignment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// Starting work pulls the order into in_progress no matter whether
		// it was pending or assigned; terminal orders are never reopened.
		if order.OrderStatus != enums.OrderStatusInProgress && !order.OrderStatus.IsTerminal() {
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"order_status": enums.OrderStatusInProgress}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			entry := timeline.Entry{
				OrderID:     order.ID,
				Status:      enums.OrderStatusInProgress,
				Notes:       fmt.Sprintf("Collection started by %s", input.Actor.Kind),
				PerformedBy: input.Actor.Performer(),
				At:          at,
			}
			if err := s.recorder.Record(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateQueues(ctx)
	return s.detail(ctx, input.AssignmentID)
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*AssignmentDetail, error) {
	started := s.now()
	detail, err := s.complete(ctx, input)
	s.observe(ctx, opComplete, started, err)
	return detail, err
}

func (s *service) complete(ctx context.Context, input CompleteInput) (*AssignmentDetail, error) {
	if err := validateTarget(input.OrderID, input.AssignmentID, input.Actor); err != nil {
		return nil, err
	}

	at := input.At
	if at.IsZero() {
		at = s.now().UTC()
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := s.loadHeldAssignment(ctx, repo, input.OrderID, input.AssignmentID, input.Actor)
		if err != nil {
			return err
		}

		if assignment.Status == enums.AssignmentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment already completed")
		}

		updates := map[string]any{
			"status":       enums.AssignmentStatusCompleted,
			"end_time":     at,
			"completed_at": at,
		}
		if input.Notes != nil {
			updates["completion_notes"] = *input.Notes
		}
		if len(input.Photos) > 0 {
			// Map updates bypass gorm serializers, so store the JSON directly.
			photos, err := json.Marshal(input.Photos)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode completion photos")
			}
			updates["completion_photos"] = string(photos)
		}
		if err := repo.UpdateAssignment(ctx, assignment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
		}

		order, err := repo.FindOrderForUpdate(ctx, assignment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// The sibling re-read happens inside the same transaction so two
		// concurrent completes cannot both miss the final state.
		siblings, err := repo.FindByOrderForUpdate(ctx, assignment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sibling assignments")
		}

		allCompleted := len(siblings) > 0
		for _, sibling := range siblings {
			if sibling.ID == assignment.ID {
				continue
			}
			if sibling.Status != enums.AssignmentStatusCompleted {
				allCompleted = false
				break
			}
		}

		// The assignment-level milestone is recorded on every completion; the
		// order-closed entry below is additional when this was the last one.
		milestone := timeline.Entry{
			OrderID:     order.ID,
			Status:      order.OrderStatus,
			Notes:       fmt.Sprintf("Assignment completed by %s", input.Actor.Kind),
			PerformedBy: input.Actor.Performer(),
			At:          at,
		}
		if err := s.recorder.Record(ctx, tx, milestone); err != nil {
			return err
		}

		if !allCompleted || order.OrderStatus == enums.OrderStatusCompleted ||
			!order.OrderStatus.CanTransitionTo(enums.OrderStatusCompleted) {
			return nil
		}

		orderUpdates := map[string]any{"order_status": enums.OrderStatusCompleted}
		if order.ActualPrice == nil {
			orderUpdates["actual_price"] = order.QuotedPrice
		}
		if err := repo.UpdateOrder(ctx, order.ID, orderUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		closed := timeline.Entry{
			OrderID:     order.ID,
			Status:      enums.OrderStatusCompleted,
			Notes:       "All assignments completed - order closed",
			PerformedBy: input.Actor.Performer(),
			At:          at,
		}
		return s.recorder.Record(ctx, tx, closed)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateQueues(ctx)
	return s.detail(ctx, input.AssignmentID)
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*AssignmentDetail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	return s.detail(ctx, id)
}

func (s *service) ListByCollector(ctx context.Context, collectorID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	if collectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id required")
	}
	list, err := s.repo.ListByCollector(ctx, collectorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collector assignments")
	}
	return list, nil
}

func (s *service) ListByCrew(ctx context.Context, crewID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	if crewID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crew id required")
	}
	list, err := s.repo.ListByCrew(ctx, crewID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list crew assignments")
	}
	return list, nil
}

// loadHeldAssignment applies the shared precondition ladder: existence,
// order membership, then holder authorization, in that order.
func (s *service) loadHeldAssignment(ctx context.Context, repo Repository, orderID, assignmentID uuid.UUID, actor Actor) (*models.Assignment, error) {
	assignment, err := repo.FindByIDForUpdate(ctx, assignmentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment does not belong to order")
	}
	if !actor.Holds(assignment) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment not held by caller")
	}
	return assignment, nil
}

func (s *service) detail(ctx context.Context, id uuid.UUID) (*AssignmentDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment detail")
	}
	return detail, nil
}

func (s *service) invalidateQueues(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, workQueuePattern); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("work queue cache invalidation failed: %v", err))
	}
}

func (s *service) observe(ctx context.Context, op string, started time.Time, err error) {
	s.metrics.ObserveDuration(op, s.now().Sub(started))
	if err != nil {
		s.metrics.IncFailure(op)
		return
	}
	s.metrics.IncSuccess(op)
}

func validateTarget(orderID, assignmentID uuid.UUID, actor Actor) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if assignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if !actor.Kind.IsValid() || actor.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "collector or crew identity required")
	}
	return nil
}
