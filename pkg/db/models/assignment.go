package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/pkg/enums"
)

// Assignment hands one order to a collector or a crew. Exactly one of
// CollectorID/CrewID is set; rows are never deleted once work has started.
type Assignment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	CollectorID      *uuid.UUID             `gorm:"column:collector_id;type:uuid;index"`
	CrewID           *uuid.UUID             `gorm:"column:crew_id;type:uuid;index"`
	Status           enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'pending'"`
	StartTime        *time.Time             `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	CompletedAt      *time.Time             `gorm:"column:completed_at"`
	CompletionNotes  *string                `gorm:"column:completion_notes"`
	CompletionPhotos []string               `gorm:"column:completion_photos;type:jsonb;serializer:json"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
