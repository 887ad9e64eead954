package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
	"github.com/oficinahub/oficina-backend/pkg/types"
)

type quoteItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type quoteResponse struct {
	ID         uuid.UUID `json:"id"`
	WorkshopID uuid.UUID `json:"workshop_id"`
	Number     int64     `json:"number"`
	Status     string    `json:"status"`

	CustomerID   uuid.UUID  `json:"customer_id"`
	VehicleID    uuid.UUID  `json:"vehicle_id"`
	ServiceBayID *uuid.UUID `json:"service_bay_id,omitempty"`

	ProblemCategory    string   `json:"problem_category"`
	ProblemDescription string   `json:"problem_description"`
	Symptoms           []string `json:"symptoms"`

	IdentifiedCategory    *string    `json:"identified_category,omitempty"`
	IdentifiedDescription *string    `json:"identified_description,omitempty"`
	DiagnosticNotes       *string    `json:"diagnostic_notes,omitempty"`
	Recommendations       *string    `json:"recommendations,omitempty"`
	DiagnosedAt           *time.Time `json:"diagnosed_at,omitempty"`

	AssignedMechanicID *uuid.UUID `json:"assigned_mechanic_id,omitempty"`

	Items      []quoteItemResponse `json:"items"`
	LaborCost  decimal.Decimal     `json:"labor_cost"`
	PartsCost  decimal.Decimal     `json:"parts_cost"`
	Discount   decimal.Decimal     `json:"discount"`
	Tax        decimal.Decimal     `json:"tax"`
	GrandTotal decimal.Decimal     `json:"grand_total"`

	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	ViewedAt        *time.Time `json:"viewed_at,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ServiceOrderID  *uuid.UUID `json:"service_order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newQuoteResponse(quote *models.Quote) quoteResponse {
	items := make([]quoteItemResponse, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, quoteItemResponse{
			ID:        item.ID,
			Type:      item.Type.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
			TotalCost: item.TotalCost,
		})
	}

	var identifiedCategory *string
	if quote.IdentifiedCategory != nil {
		value := quote.IdentifiedCategory.String()
		identifiedCategory = &value
	}

	symptoms := []string(quote.Symptoms)
	if symptoms == nil {
		symptoms = []string{}
	}

	return quoteResponse{
		ID:                    quote.ID,
		WorkshopID:            quote.WorkshopID,
		Number:                quote.Number,
		Status:                quote.Status.String(),
		CustomerID:            quote.CustomerID,
		VehicleID:             quote.VehicleID,
		ServiceBayID:          quote.ServiceBayID,
		ProblemCategory:       quote.ProblemCategory.String(),
		ProblemDescription:    quote.ProblemDescription,
		Symptoms:              symptoms,
		IdentifiedCategory:    identifiedCategory,
		IdentifiedDescription: quote.IdentifiedDescription,
		DiagnosticNotes:       quote.DiagnosticNotes,
		Recommendations:       quote.Recommendations,
		DiagnosedAt:           quote.DiagnosedAt,
		AssignedMechanicID:    quote.AssignedMechanicID,
		Items:                 items,
		LaborCost:             quote.LaborCost,
		PartsCost:             quote.PartsCost,
		Discount:              quote.Discount,
		Tax:                   quote.Tax,
		GrandTotal:            quote.GrandTotal,
		ValidUntil:            quote.ValidUntil,
		SentAt:                quote.SentAt,
		ViewedAt:              quote.ViewedAt,
		DecidedAt:             quote.DecidedAt,
		RejectionReason:       quote.RejectionReason,
		ServiceOrderID:        quote.ServiceOrderID,
		CreatedAt:             quote.CreatedAt,
		UpdatedAt:             quote.UpdatedAt,
	}
}

type serviceOrderResponse struct {
	ID         uuid.UUID `json:"id"`
	WorkshopID uuid.UUID `json:"workshop_id"`
	Number     int64     `json:"number"`
	QuoteID    uuid.UUID `json:"quote_id"`

	CustomerID uuid.UUID `json:"customer_id"`
	VehicleID  uuid.UUID `json:"vehicle_id"`

	IdentifiedCategory    *string `json:"identified_category,omitempty"`
	IdentifiedDescription *string `json:"identified_description,omitempty"`

	Items     types.QuoteItemSnapshotList `json:"items"`
	LaborCost decimal.Decimal             `json:"labor_cost"`
	PartsCost decimal.Decimal             `json:"parts_cost"`
	Discount  decimal.Decimal             `json:"discount"`
	Tax       decimal.Decimal             `json:"tax"`
	TotalCost decimal.Decimal             `json:"total_cost"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newServiceOrderResponse(order *models.ServiceOrder) serviceOrderResponse {
	var identifiedCategory *string
	if order.IdentifiedCategory != nil {
		value := order.IdentifiedCategory.String()
		identifiedCategory = &value
	}
	items := order.Items
	if items == nil {
		items = types.QuoteItemSnapshotList{}
	}
	return serviceOrderResponse{
		ID:                    order.ID,
		WorkshopID:            order.WorkshopID,
		Number:                order.Number,
		QuoteID:               order.QuoteID,
		CustomerID:            order.CustomerID,
		VehicleID:             order.VehicleID,
		IdentifiedCategory:    identifiedCategory,
		IdentifiedDescription: order.IdentifiedDescription,
		Items:                 items,
		LaborCost:             order.LaborCost,
		PartsCost:             order.PartsCost,
		Discount:              order.Discount,
		Tax:                   order.Tax,
		TotalCost:             order.TotalCost,
		Status:                order.Status,
		CreatedAt:             order.CreatedAt,
	}
}
