package timeline

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
)

// Repository defines persistence operations for the order timeline.
// The table is append-only: there is deliberately no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.TimelineEntry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
}
