package models

import (
	"time"

	"github.com/google/uuid"
)

// Crew groups collectors who work pickups together.
type Crew struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CrewMember links a collector into a crew.
type CrewMember struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CrewID      uuid.UUID `gorm:"column:crew_id;type:uuid;not null;index"`
	CollectorID uuid.UUID `gorm:"column:collector_id;type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
