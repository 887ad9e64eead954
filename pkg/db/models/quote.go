package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/enums"
	"github.com/oficinahub/oficina-backend/pkg/types"
)

// Quote is the single source of truth for a repair quote. The status
// column is only ever written through the transition engine.
type Quote struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkshopID uuid.UUID `gorm:"column:workshop_id;type:uuid;not null;uniqueIndex:ux_quotes_workshop_number,priority:1"`
	Number     int64     `gorm:"column:number;not null;uniqueIndex:ux_quotes_workshop_number,priority:2"`

	Status enums.QuoteStatus `gorm:"column:status;type:text;not null;default:'draft'"`

	CustomerID   uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	VehicleID    uuid.UUID  `gorm:"column:vehicle_id;type:uuid;not null"`
	ServiceBayID *uuid.UUID `gorm:"column:service_bay_id;type:uuid"`

	// Reported problem; writable in draft and awaiting_diagnosis only.
	ProblemCategory    enums.ProblemCategory `gorm:"column:problem_category;type:text;not null"`
	ProblemDescription string                `gorm:"column:problem_description;not null"`
	Symptoms           types.StringList      `gorm:"column:symptoms;type:jsonb;serializer:json"`

	// Diagnosis; written once by the assigned mechanic.
	IdentifiedCategory    *enums.ProblemCategory `gorm:"column:identified_category;type:text"`
	IdentifiedDescription *string                `gorm:"column:identified_description"`
	DiagnosticNotes       *string                `gorm:"column:diagnostic_notes"`
	Recommendations       *string                `gorm:"column:recommendations"`
	DiagnosedAt           *time.Time             `gorm:"column:diagnosed_at"`

	// Null means any mechanic may claim the quote.
	AssignedMechanicID *uuid.UUID `gorm:"column:assigned_mechanic_id;type:uuid"`

	// Pricing; writable between diagnosed and accepted.
	LaborCost  decimal.Decimal `gorm:"column:labor_cost;type:numeric(12,2);not null;default:0"`
	PartsCost  decimal.Decimal `gorm:"column:parts_cost;type:numeric(12,2);not null;default:0"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Tax        decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	GrandTotal decimal.Decimal `gorm:"column:grand_total;type:numeric(12,2);not null;default:0"`

	CustomerSignature *string    `gorm:"column:customer_signature"`
	RejectionReason   *string    `gorm:"column:rejection_reason"`
	ValidUntil        *time.Time `gorm:"column:valid_until"`
	SentAt            *time.Time `gorm:"column:sent_at"`
	ViewedAt          *time.Time `gorm:"column:viewed_at"`
	DecidedAt         *time.Time `gorm:"column:decided_at"`

	ServiceOrderID *uuid.UUID `gorm:"column:service_order_id;type:uuid"`

	Items []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Quote) TableName() string { return "quotes" }
