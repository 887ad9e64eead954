package controllers

import (
	"net/http"
	"strings"

	"github.com/oficinahub/oficina-backend/api/responses"
	"github.com/oficinahub/oficina-backend/api/validators"
	"github.com/oficinahub/oficina-backend/internal/quotes"
	"github.com/oficinahub/oficina-backend/pkg/enums"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
	"github.com/oficinahub/oficina-backend/pkg/logger"
)

type approveQuoteRequest struct {
	Token     string `json:"token" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type rejectQuoteRequest struct {
	Token  string `json:"token" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

type publicQuoteResponse struct {
	Status string         `json:"status"`
	Quote  *quoteResponse `json:"quote,omitempty"`
}

// ViewPublicQuote renders the customer-facing quote behind a link token.
// Expired links answer with a bare expired status and no quote body.
func ViewPublicQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired"))
			return
		}

		view, err := svc.ViewByToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := publicQuoteResponse{Status: view.Status.String()}
		if view.Status != enums.QuoteStatusExpired && view.Quote != nil {
			quote := newQuoteResponse(view.Quote)
			payload.Quote = &quote
		}
		responses.WriteSuccess(w, payload)
	}
}

// ApprovePublicQuote records the customer's acceptance and converts the
// quote into a service order in one transaction.
func ApprovePublicQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApproveByToken(r.Context(), req.Token, req.Signature)
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

// RejectPublicQuote records the customer's rejection with their reason.
func RejectPublicQuote(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rejectQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.RejectByToken(r.Context(), req.Token, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}
