package types

import "github.com/shopspring/decimal"

// StringList is stored as a jsonb array.
type StringList []string

// QuoteItemSnapshot is the frozen copy of a quote line item carried on a
// service order. Snapshots never change after conversion.
type QuoteItemSnapshot struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// QuoteItemSnapshotList is stored as a jsonb array.
type QuoteItemSnapshotList []QuoteItemSnapshot
