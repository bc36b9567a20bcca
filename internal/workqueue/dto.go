package workqueue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// Location is a collector's reported position used for geo narrowing.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sort columns accepted by the work-order list. Anything else is rejected
// before it can reach the query builder.
const (
	SortCreatedAt    = "created_at"
	SortPickupTime   = "pickup_time"
	SortQuotedPrice  = "quoted_price"
	SortCustomerName = "customer_name"
	SortOrderStatus  = "order_status"
)

// Filters describe the inputs supported by the work-order list.
type Filters struct {
	Statuses      []enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	PickupFrom    *time.Time
	PickupTo      *time.Time
	YardID        *uuid.UUID
	Search        string
	HasPhotos     *bool
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
	Location      *Location
	RadiusKm      *float64
	SortBy        string
	SortDesc      bool
}

// WorkOrder is one enriched row of a collector's queue.
type WorkOrder struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      int64               `json:"order_number"`
	CustomerName     string              `json:"customer_name"`
	Address          string              `json:"address"`
	Latitude         *float64            `json:"latitude,omitempty"`
	Longitude        *float64            `json:"longitude,omitempty"`
	Vehicle          *models.VehicleInfo `json:"vehicle,omitempty"`
	OrderStatus      enums.OrderStatus   `json:"order_status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	QuotedPrice      decimal.Decimal     `json:"quoted_price"`
	ActualPrice      *decimal.Decimal    `json:"actual_price,omitempty"`
	PickupTime       *time.Time          `json:"pickup_time,omitempty"`
	YardName         *string             `json:"yard_name,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	DistanceKm       *float64            `json:"distance_km,omitempty"`
	EstimatedMinutes *int                `json:"estimated_duration_minutes,omitempty"`
}

// Summary aggregates the queue irrespective of the requested page.
type Summary struct {
	TotalOrders     int64           `json:"total_orders"`
	PendingCount    int64           `json:"pending_count"`
	AssignedCount   int64           `json:"assigned_count"`
	InProgressCount int64           `json:"in_progress_count"`
	CompletedCount  int64           `json:"completed_count"`
	CancelledCount  int64           `json:"cancelled_count"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
}

// WorkOrderList is the full list response: page rows, aggregates, paging.
type WorkOrderList struct {
	Orders     []WorkOrder     `json:"orders"`
	Summary    Summary         `json:"summary"`
	Pagination pagination.Meta `json:"pagination"`
}

// UpdateStatusInput carries a direct order status change from a collector.
type UpdateStatusInput struct {
	CollectorID uuid.UUID
	OrderID     uuid.UUID
	NextStatus  enums.OrderStatus
	Notes       *string
	Photos      []string
	At          time.Time
}

// StatsBucket is one time window of a collector's performance stats.
type StatsBucket struct {
	AssignedCount  int64           `json:"assigned_count"`
	CompletedCount int64           `json:"completed_count"`
	Revenue        decimal.Decimal `json:"revenue"`
	CompletionRate float64         `json:"completion_rate"`
}

// CollectorStats groups the stat buckets returned to a collector.
type CollectorStats struct {
	Today   StatsBucket `json:"today"`
	Week    StatsBucket `json:"week"`
	Month   StatsBucket `json:"month"`
	Overall StatsBucket `json:"overall"`
}
