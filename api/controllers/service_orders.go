package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/api/responses"
	"github.com/oficinahub/oficina-backend/internal/serviceorders"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
	"github.com/oficinahub/oficina-backend/pkg/logger"
)

// GetServiceOrder returns a converted order, workshop-scoped.
func GetServiceOrder(repo serviceorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
		orderID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid service order id"))
			return
		}

		order, err := repo.FindByID(r.Context(), actor.WorkshopID, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "service order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order"))
			return
		}
		responses.WriteSuccess(w, newServiceOrderResponse(order))
	}
}
