package cart

import "github.com/shopspring/decimal"

// DefaultTaxRate is the sales tax applied when none is configured.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// Totals are the monetary values derived from the cart contents.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	// Units is the number of units across all lines.
	Units int
}

// ComputeTotals derives subtotal, tax and total from items.
//
// Tax and total are each rounded to 2 places from the raw subtotal:
// tax = round(subtotal*rate), total = round(subtotal+tax). Rounding is half
// away from zero.
func ComputeTotals(items []LineItem, rate decimal.Decimal) Totals {
	raw := decimal.Zero
	units := 0
	for _, it := range items {
		raw = raw.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		units += it.Quantity
	}

	tax := raw.Mul(rate).Round(2)
	return Totals{
		Subtotal: raw.Round(2),
		Tax:      tax,
		Total:    raw.Add(tax).Round(2),
		Units:    units,
	}
}
