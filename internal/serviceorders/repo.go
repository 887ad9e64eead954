package serviceorders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a service order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.ServiceOrder) (*models.ServiceOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, workshopID, orderID uuid.UUID) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND id = ?", workshopID, orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) NextNumber(ctx context.Context, workshopID uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Where("workshop_id = ?", workshopID).
		Select("COALESCE(MAX(number), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}
