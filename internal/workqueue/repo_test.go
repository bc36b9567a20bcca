package workqueue

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

func setupWorkQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	// Prices use NUMERIC so range filters and SUM compare numerically.
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
  quoted_price NUMERIC NOT NULL,
  actual_price NUMERIC,
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
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  email TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS yards (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL,
  latitude REAL,
  longitude REAL,
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
CREATE TABLE IF NOT EXISTS crew_members (
  id TEXT PRIMARY KEY,
  crew_id TEXT NOT NULL,
  collector_id TEXT NOT NULL,
  created_at DATETIME
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
	tables := []string{"orders", "assignments", "customers", "yards", "crews", "crew_members", "timeline_entries"}
	for _, table := range tables {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

var orderNumberSeq atomic.Int64

func nextOrderNumber() int64 {
	return 7000 + orderNumberSeq.Add(1)
}

func seedCustomer(t *testing.T, db *gorm.DB, name string) *models.Customer {
	t.Helper()
	customer := &models.Customer{ID: uuid.New(), Name: name, Phone: "555-0144"}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func seedYard(t *testing.T, db *gorm.DB, name string) *models.Yard {
	t.Helper()
	yard := &models.Yard{ID: uuid.New(), Name: name, Address: "1 Crusher Rd"}
	require.NoError(t, db.Create(yard).Error)
	return yard
}

func seedQueueOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		OrderNumber:    nextOrderNumber(),
		CustomerID:     customerID,
		Address:        "12 Salvage Row",
		OrderStatus:    enums.OrderStatusAssigned,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		QuotedPrice:    decimal.NewFromInt(250),
		CreatedAt:      time.Date(2025, 8, 10, 10, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func assignOrder(t *testing.T, db *gorm.DB, orderID uuid.UUID, collectorID, crewID *uuid.UUID, status enums.AssignmentStatus) *models.Assignment {
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

func enrollInCrew(t *testing.T, db *gorm.DB, crewID, collectorID uuid.UUID) {
	t.Helper()
	member := &models.CrewMember{ID: uuid.New(), CrewID: crewID, CollectorID: collectorID}
	require.NoError(t, db.Create(member).Error)
}

type queueTxRunner struct {
	db *gorm.DB
}

func (r queueTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
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

func TestListOrdersOwnershipScopes(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	crewID := uuid.New()
	enrollInCrew(t, db, crewID, collectorID)
	customer := seedCustomer(t, db, "Iron Horse Towing")

	direct := seedQueueOrder(t, db, customer.ID, nil)
	assignOrder(t, db, direct.ID, &collectorID, nil, enums.AssignmentStatusPending)

	viaCrewAssignment := seedQueueOrder(t, db, customer.ID, nil)
	assignOrder(t, db, viaCrewAssignment.ID, nil, &crewID, enums.AssignmentStatusPending)

	viaOrderCrew := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.CrewID = &crewID
	})

	foreign := seedQueueOrder(t, db, customer.ID, nil)
	otherCollector := uuid.New()
	assignOrder(t, db, foreign.ID, &otherCollector, nil, enums.AssignmentStatusPending)

	orders, total, err := repo.ListOrders(ctx, collectorID, Filters{}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	seen := map[uuid.UUID]bool{}
	for _, o := range orders {
		seen[o.ID] = true
	}
	assert.True(t, seen[direct.ID])
	assert.True(t, seen[viaCrewAssignment.ID])
	assert.True(t, seen[viaOrderCrew.ID])
	assert.False(t, seen[foreign.ID])
}

func TestListOrdersFilters(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	towing := seedCustomer(t, db, "Iron Horse Towing")
	salvage := seedCustomer(t, db, "Red Rock Salvage")
	yard := seedYard(t, db, "North Yard")

	paid := enums.PaymentStatusPaid
	cheap := seedQueueOrder(t, db, towing.ID, func(o *models.Order) {
		o.QuotedPrice = decimal.NewFromInt(90)
		o.OrderStatus = enums.OrderStatusPending
	})
	pricey := seedQueueOrder(t, db, salvage.ID, func(o *models.Order) {
		o.QuotedPrice = decimal.NewFromInt(600)
		o.OrderStatus = enums.OrderStatusInProgress
		o.PaymentStatus = paid
		o.YardID = &yard.ID
	})
	for _, id := range []uuid.UUID{cheap.ID, pricey.ID} {
		assignOrder(t, db, id, &collectorID, nil, enums.AssignmentStatusPending)
	}

	_, total, err := repo.ListOrders(ctx, collectorID, Filters{
		Statuses: []enums.OrderStatus{enums.OrderStatusInProgress},
	}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.ListOrders(ctx, collectorID, Filters{PaymentStatus: &paid}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.ListOrders(ctx, collectorID, Filters{YardID: &yard.ID}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	minPrice := decimal.NewFromInt(100)
	orders, total, err := repo.ListOrders(ctx, collectorID, Filters{PriceMin: &minPrice}, pagination.Params{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, pricey.ID, orders[0].ID)

	orders, _, err = repo.ListOrders(ctx, collectorID, Filters{Search: "red rock"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Red Rock Salvage", orders[0].CustomerName)

	orders, _, err = repo.ListOrders(ctx, collectorID, Filters{Search: strconv.FormatInt(cheap.OrderNumber, 10)}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, cheap.ID, orders[0].ID)
}

func TestListOrdersHasPhotosFilter(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")

	withPhotos := seedQueueOrder(t, db, customer.ID, nil)
	a := assignOrder(t, db, withPhotos.ID, &collectorID, nil, enums.AssignmentStatusCompleted)
	require.NoError(t, db.Exec(
		"UPDATE assignments SET completion_photos = ? WHERE id = ?",
		`["photos/hood.jpg"]`, a.ID,
	).Error)

	without := seedQueueOrder(t, db, customer.ID, nil)
	assignOrder(t, db, without.ID, &collectorID, nil, enums.AssignmentStatusPending)

	has := true
	orders, _, err := repo.ListOrders(ctx, collectorID, Filters{HasPhotos: &has}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, withPhotos.ID, orders[0].ID)

	has = false
	orders, _, err = repo.ListOrders(ctx, collectorID, Filters{HasPhotos: &has}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, without.ID, orders[0].ID)
}

func TestListOrdersSortAndPagination(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")
	prices := []int64{300, 100, 200}
	for _, price := range prices {
		order := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
			o.QuotedPrice = decimal.NewFromInt(price)
		})
		assignOrder(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusPending)
	}

	orders, total, err := repo.ListOrders(ctx, collectorID, Filters{SortBy: SortQuotedPrice}, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 2)
	assert.True(t, orders[0].QuotedPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, orders[1].QuotedPrice.Equal(decimal.NewFromInt(200)))

	second, _, err := repo.ListOrders(ctx, collectorID, Filters{SortBy: SortQuotedPrice}, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].QuotedPrice.Equal(decimal.NewFromInt(300)))
}

func TestSummarizeCountsAndRevenue(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")

	pending := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusPending
	})
	completedPrice := decimal.NewFromInt(450)
	completed := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusCompleted
		o.ActualPrice = &completedPrice
	})
	otherPrice := decimal.NewFromInt(150)
	completedTwo := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusCompleted
		o.ActualPrice = &otherPrice
	})
	for _, id := range []uuid.UUID{pending.ID, completed.ID, completedTwo.ID} {
		assignOrder(t, db, id, &collectorID, nil, enums.AssignmentStatusPending)
	}

	summary, err := repo.Summarize(ctx, collectorID, Filters{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalOrders)
	assert.Equal(t, int64(1), summary.PendingCount)
	assert.Equal(t, int64(2), summary.CompletedCount)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(600)),
		"unexpected revenue %s", summary.TotalRevenue)
}

func TestFindOrderAndOwnership(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")
	yard := seedYard(t, db, "North Yard")
	order := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.YardID = &yard.ID
	})
	assignOrder(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusPending)

	got, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Iron Horse Towing", got.CustomerName)
	require.NotNil(t, got.YardName)
	assert.Equal(t, "North Yard", *got.YardName)

	_, err = repo.FindOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	owns, err := repo.OwnsOrder(ctx, collectorID, order.ID)
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = repo.OwnsOrder(ctx, uuid.New(), order.ID)
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestCollectorStatsQueries(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")
	now := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

	recentPrice := decimal.NewFromInt(500)
	recentOrder := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusCompleted
		o.ActualPrice = &recentPrice
	})
	recentDone := now.AddDate(0, 0, -2)
	recent := &models.Assignment{
		ID:          uuid.New(),
		OrderID:     recentOrder.ID,
		CollectorID: &collectorID,
		Status:      enums.AssignmentStatusCompleted,
		CompletedAt: &recentDone,
		CreatedAt:   now.AddDate(0, 0, -3),
	}
	require.NoError(t, db.Create(recent).Error)

	oldPrice := decimal.NewFromInt(200)
	oldOrder := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusCompleted
		o.ActualPrice = &oldPrice
	})
	oldDone := now.AddDate(0, 0, -60)
	old := &models.Assignment{
		ID:          uuid.New(),
		OrderID:     oldOrder.ID,
		CollectorID: &collectorID,
		Status:      enums.AssignmentStatusCompleted,
		CompletedAt: &oldDone,
		CreatedAt:   now.AddDate(0, 0, -61),
	}
	require.NoError(t, db.Create(old).Error)

	openOrder := seedQueueOrder(t, db, customer.ID, nil)
	assignOrder(t, db, openOrder.ID, &collectorID, nil, enums.AssignmentStatusPending)

	assigned, err := repo.CountAssigned(ctx, collectorID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), assigned)

	completedAll, err := repo.CountCompleted(ctx, collectorID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), completedAll)

	weekStart := now.AddDate(0, 0, -7)
	completedWeek, err := repo.CountCompleted(ctx, collectorID, &weekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completedWeek)

	revenueAll, err := repo.SumRevenue(ctx, collectorID, nil)
	require.NoError(t, err)
	assert.True(t, revenueAll.Equal(decimal.NewFromInt(700)), "unexpected revenue %s", revenueAll)

	revenueWeek, err := repo.SumRevenue(ctx, collectorID, &weekStart)
	require.NoError(t, err)
	assert.True(t, revenueWeek.Equal(decimal.NewFromInt(500)), "unexpected revenue %s", revenueWeek)

	empty, err := repo.SumRevenue(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestServiceUpdateStatusAgainstRealStore(t *testing.T) {
	db := setupWorkQueueTestDB(t)
	repo := NewRepository(db)
	recorder, err := timeline.NewRecorder(timeline.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(repo, queueTxRunner{db: db}, recorder, nil, nil, nil, config.WorkQueueConfig{DefaultRadiusKm: 50})
	require.NoError(t, err)
	ctx := context.Background()

	collectorID := uuid.New()
	customer := seedCustomer(t, db, "Iron Horse Towing")
	order := seedQueueOrder(t, db, customer.ID, func(o *models.Order) {
		o.OrderStatus = enums.OrderStatusInProgress
		o.QuotedPrice = decimal.NewFromInt(350)
	})
	mine := assignOrder(t, db, order.ID, &collectorID, nil, enums.AssignmentStatusInProgress)
	crewID := uuid.New()
	sibling := assignOrder(t, db, order.ID, nil, &crewID, enums.AssignmentStatusPending)

	notes := "yard receipt 1182"
	got, err := svc.UpdateWorkOrderStatus(ctx, UpdateStatusInput{
		CollectorID: collectorID,
		OrderID:     order.ID,
		NextStatus:  enums.OrderStatusCompleted,
		Notes:       &notes,
		Photos:      []string{"photos/crushed.jpg"},
		At:          time.Date(2025, 8, 25, 16, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, got.OrderStatus)
	require.NotNil(t, got.ActualPrice)
	assert.True(t, got.ActualPrice.Equal(decimal.NewFromInt(350)))

	var mineAfter models.Assignment
	require.NoError(t, db.Where("id = ?", mine.ID).First(&mineAfter).Error)
	assert.Equal(t, enums.AssignmentStatusCompleted, mineAfter.Status)
	require.NotNil(t, mineAfter.CompletionNotes)
	assert.Equal(t, notes, *mineAfter.CompletionNotes)
	assert.Equal(t, []string{"photos/crushed.jpg"}, mineAfter.CompletionPhotos)

	var siblingAfter models.Assignment
	require.NoError(t, db.Where("id = ?", sibling.ID).First(&siblingAfter).Error)
	assert.Equal(t, enums.AssignmentStatusCompleted, siblingAfter.Status)
	assert.Empty(t, siblingAfter.CompletionPhotos)

	entries, err := recorder.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, notes, entries[0].Notes)
	assert.Equal(t, timeline.PerformerCollector(collectorID), entries[0].PerformedBy)

	// Repeating the change is a state conflict and writes nothing.
	_, err = svc.UpdateWorkOrderStatus(ctx, UpdateStatusInput{
		CollectorID: collectorID,
		OrderID:     order.ID,
		NextStatus:  enums.OrderStatusCompleted,
	})
	require.Error(t, err)
	entries, err = recorder.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
