package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownView is returned for a view name with no configured threshold.
var ErrUnknownView = errors.New("unknown view")

// View names the calling context a stock threshold applies to.
type View string

const (
	// ViewListing is the product grid.
	ViewListing View = "listing"
	// ViewDetail is the single product page and its similar-products strip.
	ViewDetail View = "detail"
)

// Observed rating-count thresholds for each view.
const (
	DefaultListingThreshold = 100
	DefaultDetailThreshold  = 50
)

// StockThresholds holds the rating-count threshold configured per view.
type StockThresholds struct {
	Listing int
	Detail  int
}

// DefaultStockThresholds returns the thresholds the storefront has shipped with.
func DefaultStockThresholds() StockThresholds {
	return StockThresholds{Listing: DefaultListingThreshold, Detail: DefaultDetailThreshold}
}

// For resolves the threshold configured for view.
func (t StockThresholds) For(view View) (int, error) {
	switch view {
	case ViewListing:
		return t.Listing, nil
	case ViewDetail:
		return t.Detail, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownView, string(view))
	}
}

// ParseView converts user input into a View, falling back when blank.
func ParseView(value string, fallback View) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(value))); v {
	case "":
		return fallback, nil
	case ViewListing, ViewDetail:
		return v, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownView, value)
	}
}

// IsOutOfStock reports whether product should be treated as unavailable. An
// explicit override always wins; without rating data the product is considered
// available; otherwise the rating count is compared with threshold.
func IsOutOfStock(product Product, explicitOverride bool, threshold int) bool {
	if explicitOverride {
		return true
	}
	if product.Rating == nil {
		return false
	}
	return product.Rating.Count < threshold
}
