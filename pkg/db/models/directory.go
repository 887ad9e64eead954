package models

import (
	"time"

	"github.com/google/uuid"
)

// Workshop is the tenant row. Account management lives in the tenant
// service; this service only reads it for scoping.
type Workshop struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Workshop) TableName() string { return "workshops" }

// Customer is a read-only directory row owned by the CRUD screens.
type Customer struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkshopID uuid.UUID `gorm:"column:workshop_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Email      *string   `gorm:"column:email"`
	Phone      *string   `gorm:"column:phone"`
	Document   *string   `gorm:"column:document"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "customers" }

// Vehicle is a read-only directory row owned by the CRUD screens.
type Vehicle struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkshopID uuid.UUID `gorm:"column:workshop_id;type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	Plate      string    `gorm:"column:plate;not null"`
	Make       string    `gorm:"column:make;not null"`
	Model      string    `gorm:"column:model;not null"`
	Year       int       `gorm:"column:year"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vehicle) TableName() string { return "vehicles" }

// ServiceBay is the lift/bay a quote can reference.
type ServiceBay struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WorkshopID uuid.UUID `gorm:"column:workshop_id;type:uuid;not null;index"`
	Label      string    `gorm:"column:label;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ServiceBay) TableName() string { return "service_bays" }
