package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/enums"
	"github.com/oficinahub/oficina-backend/pkg/types"
)

// ServiceOrder is the billable work order materialized from an accepted
// quote. It is a snapshot: later quote changes never touch it. The
// unique index on quote_id backs the exactly-once conversion guarantee.
type ServiceOrder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkshopID uuid.UUID `gorm:"column:workshop_id;type:uuid;not null;uniqueIndex:ux_service_orders_workshop_number,priority:1"`
	Number     int64     `gorm:"column:number;not null;uniqueIndex:ux_service_orders_workshop_number,priority:2"`
	QuoteID    uuid.UUID `gorm:"column:quote_id;type:uuid;not null;uniqueIndex:ux_service_orders_quote"`

	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	VehicleID  uuid.UUID `gorm:"column:vehicle_id;type:uuid;not null"`

	IdentifiedCategory    *enums.ProblemCategory `gorm:"column:identified_category;type:text"`
	IdentifiedDescription *string                `gorm:"column:identified_description"`

	Items     types.QuoteItemSnapshotList `gorm:"column:items;type:jsonb;serializer:json"`
	LaborCost decimal.Decimal             `gorm:"column:labor_cost;type:numeric(12,2);not null;default:0"`
	PartsCost decimal.Decimal             `gorm:"column:parts_cost;type:numeric(12,2);not null;default:0"`
	Discount  decimal.Decimal             `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Tax       decimal.Decimal             `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	TotalCost decimal.Decimal             `gorm:"column:total_cost;type:numeric(12,2);not null;default:0"`

	Status string `gorm:"column:status;type:text;not null;default:'open'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ServiceOrder) TableName() string { return "service_orders" }
