package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

// ErrInvalidQuantity is returned when a non-positive quantity is priced.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Money represents a monetary value in base currency units.
type Money = decimal.Decimal

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Items    int   `json:"items"`
	Quantity int   `json:"quantity"`
	Subtotal Money `json:"subtotal"`
	Total    Money `json:"total"`
}

// UnitPrice composes the product's base price with the variant's delta.
func UnitPrice(product catalog.Product, v *variant.Variant) Money {
	if v == nil {
		return product.Price
	}
	return product.Price.Add(v.PriceDelta)
}

// PreviewTotal prices quantity units of product in variant v.
func PreviewTotal(product catalog.Product, v *variant.Variant, quantity int) (Money, error) {
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}
	return LineTotal(UnitPrice(product, v), quantity), nil
}

// LineTotal multiplies a unit price by quantity.
func LineTotal(unit Money, quantity int) Money {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Summarize totals items. Lines with a non-positive quantity are ignored.
func Summarize(items []Item) Summary {
	summary := Summary{Subtotal: decimal.Zero}
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		summary.Items++
		summary.Quantity += it.Qty
		summary.Subtotal = summary.Subtotal.Add(LineTotal(it.UnitPrice, it.Qty))
	}
	summary.Total = summary.Subtotal
	return summary
}
