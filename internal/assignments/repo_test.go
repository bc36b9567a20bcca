package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

func setupAssignmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  order_number INTEGER NOT NULL,
  customer_id TEXT NOT NULL,
  address TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
  vehicle TEXT,
  order_status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  quoted_price TEXT NOT NULL,
  actual_price TEXT,
  pickup_time DATETIME,
  yard_id TEXT,
  crew_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  collector_id TEXT,
  crew_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  start_time DATETIME,
  end_time DATETIME,
  completed_at DATETIME,
  completion_notes TEXT,
  completion_photos TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS collectors (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  email TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS crews (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS timeline_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  notes TEXT NOT NULL,
  performed_by TEXT NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for _, table := range []string{"orders", "assignments", "collectors", "crews", "timeline_entries"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func seedOrderRow(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		OrderNumber:    time.Now().UnixNano(),
		CustomerID:     uuid.New(),
		Address:        "88 Breaker Yard Ln",
		OrderStatus:    status,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		QuotedPrice:    decimal.NewFromInt(300),
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedAssignmentRow(t *testing.T, db *gorm.DB, orderID uuid.UUID, collectorID *uuid.UUID, crewID *uuid.UUID, status enums.AssignmentStatus) *models.Assignment {
	t.Helper()
	assignment := &models.Assignment{
		ID:          uuid.New(),
		OrderID:     orderID,
		CollectorID: collectorID,
		CrewID:      crewID,
		Status:      status,
	}
	require.NoError(t, db.Create(assignment).Error)
	return assignment
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func TestFindByIDAndOrderMembership(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	order := seedOrderRow(t, db, enums.OrderStatusAssigned)
	assignment := seedAssignmentRow(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusPending)

	got, err := repo.FindByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, got.ID)
	assert.Equal(t, order.ID, got.OrderID)
	require.NotNil(t, got.CollectorID)
	assert.Equal(t, collectorID, *got.CollectorID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateAssignmentPersistsCompletionFields(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	order := seedOrderRow(t, db, enums.OrderStatusInProgress)
	assignment := seedAssignmentRow(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusInProgress)

	at := time.Date(2025, 8, 21, 15, 0, 0, 0, time.UTC)
	err := repo.UpdateAssignment(ctx, assignment.ID, map[string]any{
		"status":            enums.AssignmentStatusCompleted,
		"end_time":          at,
		"completed_at":      at,
		"completion_notes":  "keys in glovebox",
		"completion_photos": `["photos/a.jpg","photos/b.jpg"]`,
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCompleted, got.Status)
	require.NotNil(t, got.CompletionNotes)
	assert.Equal(t, "keys in glovebox", *got.CompletionNotes)
	assert.Equal(t, []string{"photos/a.jpg", "photos/b.jpg"}, got.CompletionPhotos)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, at, *got.CompletedAt, time.Second)
}

func TestFindDetailIncludesHolderName(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collector := &models.Collector{ID: uuid.New(), Name: "Dana Fields", Phone: "555-0101"}
	require.NoError(t, db.Create(collector).Error)
	order := seedOrderRow(t, db, enums.OrderStatusAssigned)
	assignment := seedAssignmentRow(t, db, order.ID, &collector.ID, nil, enums.AssignmentStatusPending)

	detail, err := repo.FindDetail(ctx, assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, detail.Assignment.ID)
	assert.Equal(t, order.ID, detail.Order.ID)
	assert.Equal(t, "Dana Fields", detail.HolderName)
}

func TestListByCollectorPaginatesNewestFirst(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	otherCollectorID := uuid.New()
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := seedOrderRow(t, db, enums.OrderStatusAssigned)
		assignment := &models.Assignment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			CollectorID: &collectorID,
			Status:      enums.AssignmentStatusPending,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(assignment).Error)
	}
	foreignOrder := seedOrderRow(t, db, enums.OrderStatusAssigned)
	seedAssignmentRow(t, db, foreignOrder.ID, &otherCollectorID, nil, enums.AssignmentStatusPending)

	list, err := repo.ListByCollector(ctx, collectorID, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Assignments, 2)
	assert.Equal(t, int64(3), list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	assert.True(t, list.Assignments[0].CreatedAt.After(list.Assignments[1].CreatedAt))

	second, err := repo.ListByCollector(ctx, collectorID, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Assignments, 1)
}

func TestListByCrew(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	crewID := uuid.New()
	order := seedOrderRow(t, db, enums.OrderStatusAssigned)
	seedAssignmentRow(t, db, order.ID, nil, &crewID, enums.AssignmentStatusPending)

	list, err := repo.ListByCrew(ctx, crewID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Assignments, 1)
	assert.Equal(t, order.OrderNumber, list.Assignments[0].OrderNumber)
	assert.Equal(t, order.Address, list.Assignments[0].Address)
}

func TestServiceCompleteAgainstRealStore(t *testing.T) {
	db := setupAssignmentsTestDB(t)
	repo := NewRepository(db)
	timelineRepo := timeline.NewRepository(db)
	recorder, err := timeline.NewRecorder(timelineRepo)
	require.NoError(t, err)

	svc, err := NewService(repo, testTxRunner{db: db}, recorder, nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	collectorID := uuid.New()
	crewID := uuid.New()
	order := seedOrderRow(t, db, enums.OrderStatusAssigned)
	first := seedAssignmentRow(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusPending)
	second := seedAssignmentRow(t, db, order.ID, nil, &crewID, enums.AssignmentStatusPending)

	base := time.Date(2025, 8, 22, 8, 0, 0, 0, time.UTC)

	// Start the first assignment: order moves to in_progress once.
	_, err = svc.Start(ctx, StartInput{
		OrderID:      order.ID,
		AssignmentID: first.ID,
		Actor:        Actor{Kind: enums.ActorKindCollector, ID: collectorID},
		At:           base,
	})
	require.NoError(t, err)

	// First complete: order stays open.
	detail, err := svc.Complete(ctx, CompleteInput{
		OrderID:      order.ID,
		AssignmentID: first.ID,
		Actor:        Actor{Kind: enums.ActorKindCollector, ID: collectorID},
		At:           base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInProgress, detail.Order.OrderStatus)

	// Second complete: the order closes and prices default.
	detail, err = svc.Complete(ctx, CompleteInput{
		OrderID:      order.ID,
		AssignmentID: second.ID,
		Actor:        Actor{Kind: enums.ActorKindCrew, ID: crewID},
		At:           base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, detail.Order.OrderStatus)
	require.NotNil(t, detail.Order.ActualPrice)
	assert.True(t, detail.Order.ActualPrice.Equal(order.QuotedPrice))

	entries, err := recorder.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Collection started by collector", entries[0].Notes)
	assert.Equal(t, "Assignment completed by collector", entries[1].Notes)
	// The final complete writes its milestone and the close entry at the same
	// instant, so only their presence is ordered, not their relative position.
	assert.ElementsMatch(t,
		[]string{"Assignment completed by crew", "All assignments completed - order closed"},
		[]string{entries[2].Notes, entries[3].Notes})

	// Replaying the final complete is rejected, nothing is double-written.
	_, err = svc.Complete(ctx, CompleteInput{
		OrderID:      order.ID,
		AssignmentID: second.ID,
		Actor:        Actor{Kind: enums.ActorKindCrew, ID: crewID},
	})
	require.Error(t, err)
	entries, err = recorder.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestParallelCompletesSerializeToOneWinner(t *testing.T) {
	db := setupAssignmentsTestDB(t)

	// A single connection forces the two transactions to queue the way
	// postgres row locks would; the loser re-reads a completed row.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	recorder, err := timeline.NewRecorder(timeline.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(repo, testTxRunner{db: db}, recorder, nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	collectorID := uuid.New()
	order := seedOrderRow(t, db, enums.OrderStatusInProgress)
	assignment := seedAssignmentRow(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusInProgress)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Complete(ctx, CompleteInput{
				OrderID:      order.ID,
				AssignmentID: assignment.ID,
				Actor:        Actor{Kind: enums.ActorKindCollector, ID: collectorID},
			})
			results <- err
		}()
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNilf(t, typed, "unexpected error kind: %v", err)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	var reread models.Assignment
	require.NoError(t, db.Where("id = ?", assignment.ID).First(&reread).Error)
	assert.Equal(t, enums.AssignmentStatusCompleted, reread.Status)

	// The order close and its audit entries were written exactly once.
	var orderRow models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&orderRow).Error)
	assert.Equal(t, enums.OrderStatusCompleted, orderRow.OrderStatus)
	entries, err := recorder.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
