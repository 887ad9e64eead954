package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/enums"
)

// Actor is the explicit caller identity threaded through every
// workflow operation. Handlers build it from verified claims; the
// service never reads identity from ambient context.
type Actor struct {
	UserID     uuid.UUID
	WorkshopID uuid.UUID
	Role       enums.MemberRole
}

// ItemInput is one priced line on a quote.
type ItemInput struct {
	Type     enums.QuoteItemType
	Name     string
	Quantity int
	UnitCost decimal.Decimal
}

// CreateQuoteInput captures the intake form for a new DRAFT quote.
type CreateQuoteInput struct {
	CustomerID         uuid.UUID
	VehicleID          uuid.UUID
	ServiceBayID       *uuid.UUID
	ProblemCategory    enums.ProblemCategory
	ProblemDescription string
	Symptoms           []string
}

// UpdateQuoteInput carries the field-gated PATCH payload. Nil means
// "leave unchanged"; each group is checked against the current status.
type UpdateQuoteInput struct {
	// Reported problem group (draft, awaiting_diagnosis).
	ProblemCategory    *enums.ProblemCategory
	ProblemDescription *string
	Symptoms           *[]string
	ServiceBayID       *uuid.UUID

	// Pricing group (diagnosed through accepted).
	Items     *[]ItemInput
	LaborCost *decimal.Decimal
	PartsCost *decimal.Decimal
	Discount  *decimal.Decimal
	Tax       *decimal.Decimal
}

// DiagnoseInput is the owner mechanic's findings.
type DiagnoseInput struct {
	IdentifiedCategory    enums.ProblemCategory
	IdentifiedDescription string
	DiagnosticNotes       *string
	Recommendations       *string
}

// SendInput optionally overrides the configured validity window.
type SendInput struct {
	ValidUntil *time.Time
}

// SendResult returns the minted public link token alongside the quote.
// Link delivery is owned by the notification service.
type SendResult struct {
	Quote      *models.Quote
	Token      string
	ValidUntil time.Time
}

// ListFilters narrows the staff quote listing. Limit 0 means no page
// cap; Offset counts rows, not pages.
type ListFilters struct {
	Status *enums.QuoteStatus
	Limit  int
	Offset int
}

// PublicQuoteView is what the unauthenticated channel returns. Quote is
// nil when the link target has expired.
type PublicQuoteView struct {
	Status enums.QuoteStatus
	Quote  *models.Quote
}

// DecisionResult reports the outcome of a customer decision or a staff
// conversion retry. ServiceOrder is set on acceptance/conversion.
type DecisionResult struct {
	Quote        *models.Quote
	ServiceOrder *models.ServiceOrder
}
