package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/api/middleware"
	"github.com/oficinahub/oficina-backend/api/responses"
	"github.com/oficinahub/oficina-backend/api/validators"
	"github.com/oficinahub/oficina-backend/internal/quotes"
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
	"github.com/oficinahub/oficina-backend/pkg/logger"
)

type createQuoteRequest struct {
	CustomerID         string   `json:"customer_id" validate:"required,uuid"`
	VehicleID          string   `json:"vehicle_id" validate:"required,uuid"`
	ServiceBayID       *string  `json:"service_bay_id,omitempty" validate:"omitempty,uuid"`
	ProblemCategory    string   `json:"problem_category" validate:"required"`
	ProblemDescription string   `json:"problem_description" validate:"required"`
	Symptoms           []string `json:"symptoms,omitempty"`
}

type quoteItemRequest struct {
	Type     string          `json:"type" validate:"required,oneof=service part"`
	Name     string          `json:"name" validate:"required"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type updateQuoteRequest struct {
	ProblemCategory    *string  `json:"problem_category,omitempty"`
	ProblemDescription *string  `json:"problem_description,omitempty"`
	Symptoms           *[]string `json:"symptoms,omitempty"`
	ServiceBayID       *string  `json:"service_bay_id,omitempty" validate:"omitempty,uuid"`

	Items     *[]quoteItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	LaborCost *decimal.Decimal    `json:"labor_cost,omitempty"`
	PartsCost *decimal.Decimal    `json:"parts_cost,omitempty"`
	Discount  *decimal.Decimal    `json:"discount,omitempty"`
	Tax       *decimal.Decimal    `json:"tax,omitempty"`
}

type assignQuoteRequest struct {
	MechanicID string `json:"mechanic_id" validate:"required,uuid"`
}

type diagnoseQuoteRequest struct {
	IdentifiedCategory    string  `json:"identified_category" validate:"required"`
	IdentifiedDescription string  `json:"identified_description" validate:"required"`
	DiagnosticNotes       *string `json:"diagnostic_notes,omitempty"`
	Recommendations       *string `json:"recommendations,omitempty"`
}

type sendQuoteRequest struct {
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type sendQuoteResponse struct {
	Quote      quoteResponse `json:"quote"`
	Token      string        `json:"token"`
	ValidUntil time.Time     `json:"valid_until"`
}

type convertQuoteResponse struct {
	Quote        quoteResponse        `json:"quote"`
	ServiceOrder serviceOrderResponse `json:"service_order"`
}

// CreateQuote opens a DRAFT quote from the intake form.
func CreateQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, _ := uuid.Parse(req.CustomerID)
		vehicleID, _ := uuid.Parse(req.VehicleID)
		category, err := enums.ParseProblemCategory(req.ProblemCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid problem category"))
			return
		}

		input := quotes.CreateQuoteInput{
			CustomerID:         customerID,
			VehicleID:          vehicleID,
			ProblemCategory:    category,
			ProblemDescription: req.ProblemDescription,
			Symptoms:           req.Symptoms,
		}
		if req.ServiceBayID != nil {
			bayID, _ := uuid.Parse(*req.ServiceBayID)
			input.ServiceBayID = &bayID
		}

		quote, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newQuoteResponse(quote))
	}
}

// ListQuotes returns the workshop's quotes, role-filtered for mechanics.
func ListQuotes(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := quotes.ListFilters{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseQuoteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), actor, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make([]quoteResponse, 0, len(list))
		for i := range list {
			payload = append(payload, newQuoteResponse(&list[i]))
		}
		responses.WriteSuccess(w, payload)
	}
}

// GetQuote returns a single quote.
func GetQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Get(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// UpdateQuote applies a field-gated partial update.
func UpdateQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := quotes.UpdateQuoteInput{
			ProblemDescription: req.ProblemDescription,
			Symptoms:           req.Symptoms,
			LaborCost:          req.LaborCost,
			PartsCost:          req.PartsCost,
			Discount:           req.Discount,
			Tax:                req.Tax,
		}
		if req.ProblemCategory != nil {
			category, err := enums.ParseProblemCategory(*req.ProblemCategory)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid problem category"))
				return
			}
			input.ProblemCategory = &category
		}
		if req.ServiceBayID != nil {
			bayID, _ := uuid.Parse(*req.ServiceBayID)
			input.ServiceBayID = &bayID
		}
		if req.Items != nil {
			items := make([]quotes.ItemInput, 0, len(*req.Items))
			for _, item := range *req.Items {
				itemType, err := enums.ParseQuoteItemType(item.Type)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item type"))
					return
				}
				items = append(items, quotes.ItemInput{
					Type:     itemType,
					Name:     item.Name,
					Quantity: item.Quantity,
					UnitCost: item.UnitCost,
				})
			}
			input.Items = &items
		}

		quote, err := svc.Update(r.Context(), actor, quoteID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// SubmitQuote moves a DRAFT into the diagnosis queue.
func SubmitQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Submit(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// ClaimQuote lets a mechanic take an unassigned quote.
func ClaimQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Claim(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// AssignQuote is the manager-only administrative reassignment.
func AssignQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mechanicID, _ := uuid.Parse(req.MechanicID)

		quote, err := svc.Reassign(r.Context(), actor, quoteID, mechanicID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// DiagnoseQuote records the owner mechanic's findings.
func DiagnoseQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req diagnoseQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := enums.ParseProblemCategory(req.IdentifiedCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identified category"))
			return
		}

		quote, err := svc.Diagnose(r.Context(), actor, quoteID, quotes.DiagnoseInput{
			IdentifiedCategory:    category,
			IdentifiedDescription: req.IdentifiedDescription,
			DiagnosticNotes:       req.DiagnosticNotes,
			Recommendations:       req.Recommendations,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// SendQuote prices out and sends the quote, returning the public link token.
func SendQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req sendQuoteRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Send(r.Context(), actor, quoteID, quotes.SendInput{ValidUntil: req.ValidUntil})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sendQuoteResponse{
			Quote:      newQuoteResponse(result.Quote),
			Token:      result.Token,
			ValidUntil: result.ValidUntil,
		})
	}
}

// ConvertQuote retries a conversion that failed after acceptance.
func ConvertQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, err := actorAndQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Convert(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, convertQuoteResponse{
			Quote:        newQuoteResponse(result.Quote),
			ServiceOrder: newServiceOrderResponse(result.ServiceOrder),
		})
	}
}

func actorFromRequest(r *http.Request) (quotes.Actor, error) {
	ctx := r.Context()

	userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
	if err != nil {
		return quotes.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	workshopID, err := uuid.Parse(middleware.WorkshopIDFromContext(ctx))
	if err != nil {
		return quotes.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "workshop context missing")
	}
	role, err := enums.ParseMemberRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return quotes.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	return quotes.Actor{UserID: userID, WorkshopID: workshopID, Role: role}, nil
}

func actorAndQuoteID(r *http.Request) (quotes.Actor, uuid.UUID, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return quotes.Actor{}, uuid.Nil, err
	}

	raw := strings.TrimSpace(chi.URLParam(r, "quoteId"))
	if raw == "" {
		return quotes.Actor{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id is required")
	}
	quoteID, err := uuid.Parse(raw)
	if err != nil {
		return quotes.Actor{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote id")
	}
	return actor, quoteID, nil
}
