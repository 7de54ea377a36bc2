package pricing

import "github.com/shopspring/decimal"

// DefaultTaxRate is the 7.5% VAT applied to every order.
var DefaultTaxRate = decimal.RequireFromString("0.075")

// Line amounts are in minor currency units (kobo, cents).
type Line struct {
	UnitPrice int64
	Quantity  int64
}

func (l Line) Subtotal() int64 {
	return l.UnitPrice * l.Quantity
}

type Totals struct {
	Subtotal int64
	Tax      int64
	Total    int64
}

// Tax rounds subtotal*rate half-up to a whole minor unit. The product is
// computed exactly, so 999 * 0.075 = 74.925 rounds to 75.
func Tax(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}

func Calculate(lines []Line, rate decimal.Decimal) Totals {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.Subtotal()
	}
	tax := Tax(subtotal, rate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
