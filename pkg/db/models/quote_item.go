package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/enums"
)

// QuoteItem is one priced service or part on a quote. TotalCost is
// always recomputed server-side as Quantity * UnitCost.
type QuoteItem struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID   uuid.UUID           `gorm:"column:quote_id;type:uuid;not null;index"`
	Type      enums.QuoteItemType `gorm:"column:type;type:text;not null"`
	Name      string              `gorm:"column:name;not null"`
	Quantity  int                 `gorm:"column:quantity;not null"`
	UnitCost  decimal.Decimal     `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	TotalCost decimal.Decimal     `gorm:"column:total_cost;type:numeric(12,2);not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (QuoteItem) TableName() string { return "quote_items" }
