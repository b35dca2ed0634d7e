package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedRecord is returned when a repository record is missing required fields.
var ErrMalformedRecord = errors.New("malformed product record")

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("product not found")

// RecordID is a product identifier as delivered by the store API. It accepts
// both JSON numbers and JSON strings.
type RecordID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// RawRating mirrors the optional rating object of a store record.
type RawRating struct {
	Rate  *float64 `json:"rate"`
	Count *int     `json:"count"`
}

// RawProduct is a product record exactly as the store API returns it.
type RawProduct struct {
	ID          RecordID         `json:"id"`
	Title       *string          `json:"title"`
	Price       *decimal.Decimal `json:"price"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Image       string           `json:"image"`
	Rating      *RawRating       `json:"rating,omitempty"`
}

// Rating summarises shopper reviews for a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is the normalised, immutable catalog entity.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Rating      *Rating         `json:"rating,omitempty"`
}

// Normalize maps a raw record 1:1 into a Product.
func Normalize(raw RawProduct) (Product, error) {
	id := strings.TrimSpace(string(raw.ID))
	if id == "" {
		return Product{}, malformed("id", "id is required")
	}
	if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
		return Product{}, malformed("title", "title is required")
	}
	if raw.Price == nil {
		return Product{}, malformed("price", "price is required")
	}
	if raw.Price.IsNegative() {
		return Product{}, malformed("price", "price must not be negative")
	}
	product := Product{
		ID:          id,
		Title:       *raw.Title,
		Description: raw.Description,
		Category:    raw.Category,
		Price:       *raw.Price,
		Image:       raw.Image,
	}
	if raw.Rating != nil {
		rating := Rating{}
		if raw.Rating.Rate != nil {
			rating.Rate = *raw.Rating.Rate
		}
		if raw.Rating.Count != nil {
			rating.Count = *raw.Rating.Count
		}
		if rating.Rate < 0 || rating.Rate > 5 {
			return Product{}, malformed("rating.rate", "rate must be within [0,5]")
		}
		if rating.Count < 0 {
			return Product{}, malformed("rating.count", "count must not be negative")
		}
		// without a count there is no stock signal, so the rating is dropped
		if raw.Rating.Count != nil {
			product.Rating = &rating
		}
	}
	return product, nil
}

// NormalizeAll normalises every record; the first malformed record fails the batch.
func NormalizeAll(raws []RawProduct) ([]Product, error) {
	products := make([]Product, 0, len(raws))
	for i, raw := range raws {
		p, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func malformed(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedRecord, field, reason)
}
