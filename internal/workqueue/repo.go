package workqueue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// ownershipCond limits orders to the calling collector: a direct assignment,
// an assignment held by one of their crews, or an order routed to their crew.
const ownershipCond = `(
	EXISTS (
		SELECT 1 FROM assignments
		WHERE assignments.order_id = orders.id
		  AND (assignments.collector_id = @collector_id
		    OR assignments.crew_id IN (SELECT crew_id FROM crew_members WHERE collector_id = @collector_id))
	)
	OR orders.crew_id IN (SELECT crew_id FROM crew_members WHERE collector_id = @collector_id)
)`

// holderCond limits assignments to ones the collector holds directly or
// through crew membership.
const holderCond = `(assignments.collector_id = @collector_id
	OR assignments.crew_id IN (SELECT crew_id FROM crew_members WHERE collector_id = @collector_id))`

var sortColumns = map[string]string{
	SortCreatedAt:    "orders.created_at",
	SortPickupTime:   "orders.pickup_time",
	SortQuotedPrice:  "orders.quoted_price",
	SortCustomerName: "customers.name",
	SortOrderStatus:  "orders.order_status",
}

// SortColumnAllowed reports whether the sort key is on the whitelist.
func SortColumnAllowed(key string) bool {
	_, ok := sortColumns[key]
	return ok
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a work-queue repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// workOrderRow is the raw scan target; Vehicle arrives as stored JSON.
type workOrderRow struct {
	ID            uuid.UUID
	OrderNumber   int64
	CustomerName  string
	Address       string
	Latitude      *float64
	Longitude     *float64
	Vehicle       []byte
	OrderStatus   enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	QuotedPrice   decimal.Decimal
	ActualPrice   *decimal.Decimal
	PickupTime    *time.Time
	YardName      *string
	CreatedAt     time.Time
}

const workOrderSelect = `orders.id, orders.order_number, customers.name AS customer_name,
	orders.address, orders.latitude, orders.longitude, orders.vehicle,
	orders.order_status, orders.payment_status, orders.quoted_price, orders.actual_price,
	orders.pickup_time, yards.name AS yard_name, orders.created_at`

func (r *repository) baseQuery(ctx context.Context, collectorID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("orders").
		Joins("JOIN customers ON customers.id = orders.customer_id").
		Joins("LEFT JOIN yards ON yards.id = orders.yard_id").
		Where(ownershipCond, map[string]any{"collector_id": collectorID})
}

func applyFilters(q *gorm.DB, filters Filters) *gorm.DB {
	if len(filters.Statuses) > 0 {
		q = q.Where("orders.order_status IN ?", filters.Statuses)
	}
	if filters.PaymentStatus != nil {
		q = q.Where("orders.payment_status = ?", *filters.PaymentStatus)
	}
	if filters.CreatedFrom != nil {
		q = q.Where("orders.created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		q = q.Where("orders.created_at <= ?", *filters.CreatedTo)
	}
	if filters.PickupFrom != nil {
		q = q.Where("orders.pickup_time >= ?", *filters.PickupFrom)
	}
	if filters.PickupTo != nil {
		q = q.Where("orders.pickup_time <= ?", *filters.PickupTo)
	}
	if filters.YardID != nil {
		q = q.Where("orders.yard_id = ?", *filters.YardID)
	}
	if filters.Search != "" {
		needle := "%" + strings.ToLower(strings.TrimSpace(filters.Search)) + "%"
		q = q.Where(
			"(LOWER(customers.name) LIKE ? OR LOWER(orders.address) LIKE ? OR CAST(orders.order_number AS TEXT) LIKE ?)",
			needle, needle, needle,
		)
	}
	if filters.HasPhotos != nil {
		photoExists := `EXISTS (
			SELECT 1 FROM assignments
			WHERE assignments.order_id = orders.id
			  AND assignments.completion_photos IS NOT NULL
			  AND assignments.completion_photos NOT IN ('', '[]', 'null')
		)`
		if *filters.HasPhotos {
			q = q.Where(photoExists)
		} else {
			q = q.Where("NOT " + photoExists)
		}
	}
	if filters.PriceMin != nil {
		q = q.Where("orders.quoted_price >= ?", *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		q = q.Where("orders.quoted_price <= ?", *filters.PriceMax)
	}
	return q
}

func orderClause(filters Filters) string {
	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = sortColumns[SortCreatedAt]
	}
	dir := "ASC"
	if filters.SortDesc || filters.SortBy == "" {
		dir = "DESC"
	}
	return column + " " + dir
}

func (r *repository) ListOrders(ctx context.Context, collectorID uuid.UUID, filters Filters, params pagination.Params) ([]WorkOrder, int64, error) {
	params = params.Normalize()

	var total int64
	if err := applyFilters(r.baseQuery(ctx, collectorID), filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []workOrderRow
	err := applyFilters(r.baseQuery(ctx, collectorID), filters).
		Select(workOrderSelect).
		Order(orderClause(filters)).
		Limit(params.Limit).
		Offset(params.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]WorkOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toWorkOrder())
	}
	return orders, total, nil
}

func (row workOrderRow) toWorkOrder() WorkOrder {
	order := WorkOrder{
		ID:            row.ID,
		OrderNumber:   row.OrderNumber,
		CustomerName:  row.CustomerName,
		Address:       row.Address,
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
		OrderStatus:   row.OrderStatus,
		PaymentStatus: row.PaymentStatus,
		QuotedPrice:   row.QuotedPrice,
		ActualPrice:   row.ActualPrice,
		PickupTime:    row.PickupTime,
		YardName:      row.YardName,
		CreatedAt:     row.CreatedAt,
	}
	if len(row.Vehicle) > 0 {
		var vehicle models.VehicleInfo
		if err := json.Unmarshal(row.Vehicle, &vehicle); err == nil {
			order.Vehicle = &vehicle
		}
	}
	return order
}

func (r *repository) Summarize(ctx context.Context, collectorID uuid.UUID, filters Filters) (*Summary, error) {
	type statusCount struct {
		OrderStatus enums.OrderStatus
		Count       int64
	}
	var counts []statusCount
	err := applyFilters(r.baseQuery(ctx, collectorID), filters).
		Select("orders.order_status, COUNT(*) AS count").
		Group("orders.order_status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalRevenue: decimal.Zero}
	for _, c := range counts {
		summary.TotalOrders += c.Count
		switch c.OrderStatus {
		case enums.OrderStatusPending:
			summary.PendingCount = c.Count
		case enums.OrderStatusAssigned:
			summary.AssignedCount = c.Count
		case enums.OrderStatusInProgress:
			summary.InProgressCount = c.Count
		case enums.OrderStatusCompleted:
			summary.CompletedCount = c.Count
		case enums.OrderStatusCancelled:
			summary.CancelledCount = c.Count
		}
	}

	var revenue decimal.NullDecimal
	err = applyFilters(r.baseQuery(ctx, collectorID), filters).
		Where("orders.order_status = ?", enums.OrderStatusCompleted).
		Select("SUM(orders.actual_price)").
		Scan(&revenue).Error
	if err != nil {
		return nil, err
	}
	if revenue.Valid {
		summary.TotalRevenue = revenue.Decimal
	}
	return summary, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*WorkOrder, error) {
	var row workOrderRow
	res := r.db.WithContext(ctx).
		Table("orders").
		Joins("JOIN customers ON customers.id = orders.customer_id").
		Joins("LEFT JOIN yards ON yards.id = orders.yard_id").
		Where("orders.id = ?", orderID).
		Select(workOrderSelect).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	order := row.toWorkOrder()
	return &order, nil
}

func (r *repository) OwnsOrder(ctx context.Context, collectorID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("orders").
		Where("orders.id = ?", orderID).
		Where(ownershipCond, map[string]any{"collector_id": collectorID}).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindAssignmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) assignmentsForCollector(ctx context.Context, collectorID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("assignments").
		Where(holderCond, map[string]any{"collector_id": collectorID})
}

func (r *repository) CountAssigned(ctx context.Context, collectorID uuid.UUID, since *time.Time) (int64, error) {
	q := r.assignmentsForCollector(ctx, collectorID)
	if since != nil {
		q = q.Where("assignments.created_at >= ?", *since)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *repository) CountCompleted(ctx context.Context, collectorID uuid.UUID, since *time.Time) (int64, error) {
	q := r.assignmentsForCollector(ctx, collectorID).
		Where("assignments.status = ?", enums.AssignmentStatusCompleted)
	if since != nil {
		q = q.Where("assignments.completed_at >= ?", *since)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *repository) SumRevenue(ctx context.Context, collectorID uuid.UUID, since *time.Time) (decimal.Decimal, error) {
	q := r.assignmentsForCollector(ctx, collectorID).
		Joins("JOIN orders ON orders.id = assignments.order_id").
		Where("assignments.status = ?", enums.AssignmentStatusCompleted).
		Where("orders.order_status = ?", enums.OrderStatusCompleted)
	if since != nil {
		q = q.Where("assignments.completed_at >= ?", *since)
	}
	var revenue decimal.NullDecimal
	if err := q.Select("SUM(orders.actual_price)").Scan(&revenue).Error; err != nil {
		return decimal.Zero, err
	}
	if !revenue.Valid {
		return decimal.Zero, nil
	}
	return revenue.Decimal, nil
}
