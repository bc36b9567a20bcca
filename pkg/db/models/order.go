package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scraplinehq/scrapline-backend/pkg/enums"
)

// VehicleInfo is the snapshot of the vehicle being scrapped, stored as jsonb.
type VehicleInfo struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year,omitempty"`
	Plate     string `json:"plate,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// Order is a single pickup job. Status is a cached roll-up of its
// assignments and is only written by the lifecycle service.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID           `gorm:"column:organization_id;type:uuid;not null"`
	OrderNumber    int64               `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Address        string              `gorm:"column:address;not null"`
	Latitude       *float64            `gorm:"column:latitude"`
	Longitude      *float64            `gorm:"column:longitude"`
	Vehicle        *VehicleInfo        `gorm:"column:vehicle;type:jsonb;serializer:json"`
	OrderStatus    enums.OrderStatus   `gorm:"column:order_status;type:order_status;not null;default:'pending'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	QuotedPrice    decimal.Decimal     `gorm:"column:quoted_price;type:numeric(12,2);not null"`
	ActualPrice    *decimal.Decimal    `gorm:"column:actual_price;type:numeric(12,2)"`
	PickupTime     *time.Time          `gorm:"column:pickup_time"`
	YardID         *uuid.UUID          `gorm:"column:yard_id;type:uuid"`
	CrewID         *uuid.UUID          `gorm:"column:crew_id;type:uuid"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
