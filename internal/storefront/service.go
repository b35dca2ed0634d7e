// Package storefront assembles catalog, variant and pricing data into the
// payloads the storefront pages render.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/obs"
	"github.com/noah-isme/storefront-catalog/internal/pricing"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

// Service orchestrates catalog reads for the product grid, the product page
// and the price preview.
type Service struct {
	repo       catalog.Repository
	feed       *catalog.Feed
	thresholds catalog.StockThresholds
	variants   variant.Catalog
	formatter  *pricing.Formatter
	logger     zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repo       catalog.Repository
	Feed       *catalog.Feed
	Thresholds catalog.StockThresholds
	Variants   variant.Catalog
	Formatter  *pricing.Formatter
	Logger     *zerolog.Logger
}

// Money pairs an exact amount with its display string.
type Money struct {
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

// ProductCard is one entry of the product grid.
type ProductCard struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Image          string            `json:"image"`
	Price          Money             `json:"price"`
	Rating         *catalog.Rating   `json:"rating,omitempty"`
	OutOfStock     bool              `json:"outOfStock"`
	Variants       []variant.Variant `json:"variants"`
	DefaultVariant string            `json:"defaultVariant,omitempty"`
}

// ProductDetail is the product page payload.
type ProductDetail struct {
	catalog.Product
	FormattedPrice string            `json:"formattedPrice"`
	OutOfStock     bool              `json:"outOfStock"`
	Variants       []variant.Variant `json:"variants"`
}

// PriceQuote previews the cost of quantity units in a variant.
type PriceQuote struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
	Total     Money  `json:"total"`
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("storefront: repository is required")
	}
	if cfg.Formatter == nil {
		return nil, errors.New("storefront: formatter is required")
	}
	feed := cfg.Feed
	if feed == nil {
		feed = &catalog.Feed{Repo: cfg.Repo}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		repo:       cfg.Repo,
		feed:       feed,
		thresholds: cfg.Thresholds,
		variants:   cfg.Variants,
		formatter:  cfg.Formatter,
		logger:     logger,
	}, nil
}

// Formatter returns the currency formatter the service renders amounts with.
func (s *Service) Formatter() *pricing.Formatter { return s.formatter }

// ListProducts returns the product grid for category. "all" or an empty
// category lists everything.
func (s *Service) ListProducts(ctx context.Context, category string) ([]ProductCard, error) {
	ctx, span := obs.StartSpan(ctx, "storefront.ListProducts", attribute.String("catalog.category", category))
	defer span.End()

	products, err := s.feed.Products(ctx)
	if err != nil {
		obs.FailSpan(span, err)
		return nil, fmt.Errorf("list products: %w", err)
	}
	filtered := catalog.ByCategory(products, strings.TrimSpace(category))
	cards := make([]ProductCard, 0, len(filtered))
	for _, p := range filtered {
		cards = append(cards, s.card(p))
	}
	return cards, nil
}

// Categories lists the distinct categories of the current catalog.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.feed.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return catalog.Categories(products), nil
}

// Product fetches and normalises a single product.
func (s *Service) Product(ctx context.Context, id string) (catalog.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return catalog.Product{}, fmt.Errorf("product: %w", catalog.ErrNotFound)
	}
	raw, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	product, err := catalog.Normalize(raw)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return product, nil
}

// GetProduct returns the product page payload for id.
func (s *Service) GetProduct(ctx context.Context, id string) (ProductDetail, error) {
	ctx, span := obs.StartSpan(ctx, "storefront.GetProduct", attribute.String("catalog.product_id", id))
	defer span.End()

	product, err := s.Product(ctx, id)
	if err != nil {
		obs.FailSpan(span, err)
		return ProductDetail{}, err
	}
	return s.detail(product), nil
}

// Similar lists the other products sharing id's category.
func (s *Service) Similar(ctx context.Context, id string) ([]ProductDetail, error) {
	ctx, span := obs.StartSpan(ctx, "storefront.Similar", attribute.String("catalog.product_id", id))
	defer span.End()

	product, err := s.Product(ctx, id)
	if err != nil {
		obs.FailSpan(span, err)
		return nil, err
	}
	raws, err := s.repo.ListByCategory(ctx, product.Category)
	if err != nil {
		obs.FailSpan(span, err)
		return nil, fmt.Errorf("similar to %s: %w", product.ID, err)
	}
	products, err := catalog.NormalizeAll(raws)
	if err != nil {
		obs.FailSpan(span, err)
		return nil, fmt.Errorf("similar to %s: %w", product.ID, err)
	}
	out := make([]ProductDetail, 0, len(products))
	for _, p := range products {
		if p.ID == product.ID {
			continue
		}
		out = append(out, s.detail(p))
	}
	return out, nil
}

// PricePreview prices quantity units of product id in variantID.
func (s *Service) PricePreview(ctx context.Context, id, variantID string, quantity int) (PriceQuote, error) {
	product, err := s.Product(ctx, id)
	if err != nil {
		return PriceQuote{}, err
	}
	v, err := variant.Resolve(s.variants.For(product.Category), variantID)
	if err != nil {
		return PriceQuote{}, err
	}
	total, err := pricing.PreviewTotal(product, v, quantity)
	if err != nil {
		return PriceQuote{}, err
	}
	quote := PriceQuote{
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: s.money(pricing.UnitPrice(product, v)),
		Total:     s.money(total),
	}
	if v != nil {
		quote.VariantID = v.ID
	}
	return quote, nil
}

func (s *Service) card(p catalog.Product) ProductCard {
	variants := s.variants.For(p.Category)
	card := ProductCard{
		ID:          p.ID,
		Title:       catalog.Truncate(p.Title, catalog.CardTitleLength),
		Description: catalog.Truncate(p.Description, catalog.CardDescriptionLength),
		Category:    p.Category,
		Image:       p.Image,
		Price:       s.money(p.Price),
		Rating:      p.Rating,
		OutOfStock:  catalog.IsOutOfStock(p, false, s.thresholds.Listing),
		Variants:    variants,
	}
	if v, ok := variant.Default(variants); ok {
		card.DefaultVariant = v.ID
	}
	return card
}

func (s *Service) detail(p catalog.Product) ProductDetail {
	return ProductDetail{
		Product:        p,
		FormattedPrice: s.formatter.Format(p.Price),
		OutOfStock:     catalog.IsOutOfStock(p, false, s.thresholds.Detail),
		Variants:       s.variants.For(p.Category),
	}
}

func (s *Service) money(amount decimal.Decimal) Money {
	return Money{Amount: amount, Formatted: s.formatter.Format(amount)}
}
