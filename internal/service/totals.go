package service

import (
	"github.com/shopspring/decimal"
)

// TaxRate is the flat sales tax applied to every document
var TaxRate = decimal.RequireFromString("0.13")

const moneyPlaces = 2

// PricedQuantity is one (unit price, quantity) pair to be totalled
type PricedQuantity struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are the monetary amounts of a document
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// roundMoney rounds half away from zero, which is half-up for the non-negative
// amounts handled here.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// LineSubtotal is price x quantity rounded to cents
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return roundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// CalculateTotals computes subtotal, tax and total. Each stage is rounded on its
// own, so tax is taken from the rounded subtotal and not the raw sum.
func CalculateTotals(lines []PricedQuantity) Totals {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineSubtotal(l.UnitPrice, l.Quantity))
	}

	subtotal := roundMoney(sum)
	tax := roundMoney(subtotal.Mul(TaxRate))
	discount := decimal.Zero
	total := roundMoney(subtotal.Add(tax).Sub(discount))

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}
