package variant

import "strings"

// Eligibility is the set of product categories that offer variants.
type Eligibility struct {
	categories map[string]struct{}
}

// NewEligibility builds an Eligibility from exact category values.
func NewEligibility(categories ...string) Eligibility {
	e := Eligibility{categories: make(map[string]struct{}, len(categories))}
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		e.categories[c] = struct{}{}
	}
	return e
}

// Eligible reports whether category offers variants.
func (e Eligibility) Eligible(category string) bool {
	_, ok := e.categories[category]
	return ok
}

// Categories returns the eligible categories in no particular order.
func (e Eligibility) Categories() []string {
	out := make([]string, 0, len(e.categories))
	for c := range e.categories {
		out = append(out, c)
	}
	return out
}

// Catalog pairs a variant set with the categories it applies to.
type Catalog struct {
	Set      Set
	Eligible Eligibility
}

// For returns the variants offered for a product in category, or an empty list.
func (c Catalog) For(category string) []Variant {
	if !c.Eligible.Eligible(category) {
		return []Variant{}
	}
	return c.Set
}
