package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []PricedQuantity
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "round hundred",
			lines:    []PricedQuantity{{UnitPrice: d("25.00"), Quantity: 4}},
			subtotal: "100.00", tax: "13.00", total: "113.00",
		},
		{
			name:     "half cent subtotal rounds up",
			lines:    []PricedQuantity{{UnitPrice: d("2.001"), Quantity: 5}},
			subtotal: "10.01", tax: "1.30", total: "11.31",
		},
		{
			// raw 0.115 would give tax 0.01; the rounded 0.12 gives 0.02
			name:     "tax comes from rounded subtotal",
			lines:    []PricedQuantity{{UnitPrice: d("0.023"), Quantity: 5}},
			subtotal: "0.12", tax: "0.02", total: "0.14",
		},
		{
			name: "several lines",
			lines: []PricedQuantity{
				{UnitPrice: d("12.50"), Quantity: 2},
				{UnitPrice: d("7.99"), Quantity: 3},
			},
			subtotal: "48.97", tax: "6.37", total: "55.34",
		},
		{
			name:     "empty",
			subtotal: "0.00", tax: "0.00", total: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTotals(tt.lines)
			assert.Equal(t, tt.subtotal, got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.tax, got.Tax.StringFixed(2))
			assert.Equal(t, tt.total, got.Total.StringFixed(2))
			assert.True(t, got.Discount.IsZero())
		})
	}
}

func TestLineSubtotal(t *testing.T) {
	assert.Equal(t, "10.05", LineSubtotal(d("2.009"), 5).StringFixed(2))
	assert.Equal(t, "0.00", LineSubtotal(d("0.001"), 1).StringFixed(2))
}
