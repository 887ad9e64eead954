package quotes

import (
	"github.com/shopspring/decimal"

	"github.com/oficinahub/oficina-backend/pkg/db/models"
)

// ItemTotal computes quantity times unit cost for a line item.
func ItemTotal(quantity int, unitCost decimal.Decimal) decimal.Decimal {
	return unitCost.Mul(decimal.NewFromInt(int64(quantity)))
}

// GrandTotal computes item totals + labor + parts - discount + tax.
// Item totals are recomputed here so a stale total_cost can never leak
// into the sum.
func GrandTotal(items []models.QuoteItem, labor, parts, discount, tax decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(ItemTotal(item.Quantity, item.UnitCost))
	}
	return total.Add(labor).Add(parts).Sub(discount).Add(tax)
}

// normalizeItems recomputes every item total in place.
func normalizeItems(items []models.QuoteItem) {
	for i := range items {
		items[i].TotalCost = ItemTotal(items[i].Quantity, items[i].UnitCost)
	}
}
