package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/pkg/enums"
)

// TimelineEntry is an append-only audit record for an order. The repo
// layer exposes no update or delete path for these rows.
type TimelineEntry struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	Notes       string            `gorm:"column:notes;not null"`
	PerformedBy string            `gorm:"column:performed_by;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the id app-side; entries are inserted from inside
// service transactions where the column default is not relied on.
func (e *TimelineEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
