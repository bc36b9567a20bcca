package workqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// Repository defines the query surface for a collector's work queue plus
// the direct order-status write path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListOrders(ctx context.Context, collectorID uuid.UUID, filters Filters, params pagination.Params) ([]WorkOrder, int64, error)
	Summarize(ctx context.Context, collectorID uuid.UUID, filters Filters) (*Summary, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*WorkOrder, error)
	OwnsOrder(ctx context.Context, collectorID, orderID uuid.UUID) (bool, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindAssignmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountAssigned(ctx context.Context, collectorID uuid.UUID, since *time.Time) (int64, error)
	CountCompleted(ctx context.Context, collectorID uuid.UUID, since *time.Time) (int64, error)
	SumRevenue(ctx context.Context, collectorID uuid.UUID, since *time.Time) (decimal.Decimal, error)
}
