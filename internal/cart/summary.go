package cart

import "github.com/shopspring/decimal"

var TaxRate = decimal.RequireFromString("0.10")

type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Summary prices the cart with the flat tax rate and free shipping, rounded to cents.
func (s State) Summary() Summary {
	sub := s.TotalPrice
	tax := sub.Mul(TaxRate)
	return Summary{
		Subtotal: sub.Round(2),
		Tax:      tax.Round(2),
		Shipping: decimal.Zero,
		Total:    sub.Add(tax).Round(2),
	}
}
