package directory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
)

// Repository is the read-only lookup surface over the customer, vehicle
// and service bay directory owned by the CRUD screens. The workflow
// only resolves references; it never writes these tables.
type Repository interface {
	FindCustomer(ctx context.Context, workshopID, customerID uuid.UUID) (*models.Customer, error)
	FindVehicle(ctx context.Context, workshopID, vehicleID uuid.UUID) (*models.Vehicle, error)
	FindServiceBay(ctx context.Context, workshopID, bayID uuid.UUID) (*models.ServiceBay, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a directory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindCustomer(ctx context.Context, workshopID, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND id = ?", workshopID, customerID).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindVehicle(ctx context.Context, workshopID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND id = ?", workshopID, vehicleID).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *repository) FindServiceBay(ctx context.Context, workshopID, bayID uuid.UUID) (*models.ServiceBay, error) {
	var bay models.ServiceBay
	err := r.db.WithContext(ctx).
		Where("workshop_id = ? AND id = ?", workshopID, bayID).
		First(&bay).Error
	if err != nil {
		return nil, err
	}
	return &bay, nil
}
