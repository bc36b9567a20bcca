package assignments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// Repository defines persistence operations for assignments and the order
// status roll-up they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindDetail(ctx context.Context, id uuid.UUID) (*AssignmentDetail, error)
	ListByCollector(ctx context.Context, collectorID uuid.UUID, params pagination.Params) (*AssignmentList, error)
	ListByCrew(ctx context.Context, crewID uuid.UUID, params pagination.Params) (*AssignmentList, error)
}
