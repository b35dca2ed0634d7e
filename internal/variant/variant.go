// Package variant holds the configured purchase variants and the rule deciding
// which product categories offer them.
package variant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidVariant is returned for an empty set or one with duplicate ids.
	ErrInvalidVariant = errors.New("invalid variant")
	// ErrUnknownVariant is returned by Resolve for an id not on offer.
	ErrUnknownVariant = errors.New("unknown variant")
)

// Variant is an optional purchasable configuration adding PriceDelta to the base price.
type Variant struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

// Set is an ordered list of variants with unique ids.
type Set []Variant

// NewSet validates variants and returns them as a Set.
func NewSet(variants ...Variant) (Set, error) {
	seen := make(map[string]struct{}, len(variants))
	set := make(Set, 0, len(variants))
	for _, v := range variants {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: id is required", ErrInvalidVariant)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidVariant, id)
		}
		if v.PriceDelta.IsNegative() {
			return nil, fmt.Errorf("%w: %q has a negative price delta", ErrInvalidVariant, id)
		}
		seen[id] = struct{}{}
		v.ID = id
		set = append(set, v)
	}
	return set, nil
}

// DefaultSet returns the Standard/Premium/Deluxe tiers.
func DefaultSet() Set {
	return Set{
		{ID: "standard", Name: "Standard", PriceDelta: decimal.Zero},
		{ID: "premium", Name: "Premium", PriceDelta: decimal.RequireFromString("5.99")},
		{ID: "deluxe", Name: "Deluxe", PriceDelta: decimal.RequireFromString("9.99")},
	}
}

// Select finds the variant with id. Empty or unknown ids select nothing.
func Select(variants []Variant, id string) (Variant, bool) {
	if id == "" {
		return Variant{}, false
	}
	for _, v := range variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Default returns the variant pre-selected on a product card: the first one.
func Default(variants []Variant) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}
	return variants[0], true
}

// Resolve maps a requested variant id onto variants. An empty id resolves to
// no variant; an id that is not offered is an error.
func Resolve(variants []Variant, id string) (*Variant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	v, ok := Select(variants, id)
	if !ok {
		return nil, fmt.Errorf("variant %q: %w", id, ErrUnknownVariant)
	}
	return &v, nil
}
