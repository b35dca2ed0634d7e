package catalog

// AllCategories is the sentinel category that disables filtering.
const AllCategories = "all"

// ByCategory returns the products whose category equals category exactly.
// AllCategories or an empty category returns products unchanged.
func ByCategory(products []Product, category string) []Product {
	if category == "" || category == AllCategories {
		return products
	}
	result := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			result = append(result, p)
		}
	}
	return result
}

// Categories lists the distinct categories of products in first-seen order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	result := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		result = append(result, p.Category)
	}
	return result
}
