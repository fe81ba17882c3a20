// Package pricing derives checkout totals from cart lines.
//
// Quote is a pure function: no state, no side effects. Amounts are kept at
// full decimal precision internally; callers round to 2 places only at the
// display or persistence boundary.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/quickbite/orderflow/internal/domain/cart"
)

// Fixed storefront rates. Exposed as package variables so a deployment can
// override them at startup, but the arithmetic order (subtotal, then tax
// off the subtotal, then sum) must not change.
var (
	TaxRate     = decimal.RequireFromString("0.08875")
	DeliveryFee = decimal.RequireFromString("2.99")
)

// Breakdown is the derived price decomposition for a cart or order.
type Breakdown struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Quote computes the breakdown for a set of cart lines.
func Quote(lines []cart.Line) Breakdown {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return FromSubtotal(subtotal)
}

// FromSubtotal derives tax and total from an already-computed subtotal.
func FromSubtotal(subtotal decimal.Decimal) Breakdown {
	tax := subtotal.Mul(TaxRate)
	return Breakdown{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: DeliveryFee,
		Total:       subtotal.Add(tax).Add(DeliveryFee),
	}
}
