package serviceorders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
)

// Repository defines persistence operations for service orders. Orders
// are written exactly once by the conversion path and never mutated by
// this workflow afterwards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.ServiceOrder) (*models.ServiceOrder, error)
	FindByID(ctx context.Context, workshopID, orderID uuid.UUID) (*models.ServiceOrder, error)
	FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*models.ServiceOrder, error)
	NextNumber(ctx context.Context, workshopID uuid.UUID) (int64, error)
}
