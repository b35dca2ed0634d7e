package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/events"
	"github.com/noah-isme/storefront-catalog/internal/obs"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

// ProductLookup resolves a product id into a normalised product.
type ProductLookup interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
}

// AddItemInput describes an add-to-cart request. A nil Qty adds one unit.
// View selects the stock threshold and defaults to the product page.
type AddItemInput struct {
	ProductID string
	VariantID string
	Qty       *int
	View      catalog.View
}

// Service encapsulates cart operations on top of the in-memory Store.
type Service struct {
	Store      *Store
	Products   ProductLookup
	Thresholds catalog.StockThresholds
	Variants   variant.Catalog
	Events     *events.Bus
	Logger     zerolog.Logger
}

func (s *Service) configured() error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create registers a new empty cart.
func (s *Service) Create(ctx context.Context) (string, *Cart, error) {
	if err := s.configured(); err != nil {
		return "", nil, err
	}
	id, c := s.Store.Create()
	s.Logger.Debug().Str("cart_id", id).Msg("cart created")
	return id, c, nil
}

// Get returns the cart for id.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	if err := s.configured(); err != nil {
		return nil, err
	}
	return s.Store.Get(id)
}

// AddItem looks the product up, checks its stock for the requested view and
// merges it into the cart. A Clear issued while the lookup is in flight
// rejects the add with ErrSuperseded.
func (s *Service) AddItem(ctx context.Context, cartID string, in AddItemInput) (LineItem, error) {
	if err := s.configured(); err != nil {
		return LineItem{}, err
	}
	if s.Products == nil {
		return LineItem{}, errors.New("cart service: product lookup not configured")
	}
	ctx, span := obs.StartSpan(ctx, "cart.AddItem",
		attribute.String("cart.id", cartID),
		attribute.String("catalog.product_id", in.ProductID),
	)
	defer span.End()

	c, err := s.Store.Get(cartID)
	if err != nil {
		return LineItem{}, err
	}
	qty := 1
	if in.Qty != nil {
		qty = *in.Qty
	}
	view := in.View
	if view == "" {
		view = catalog.ViewDetail
	}
	threshold, err := s.Thresholds.For(view)
	if err != nil {
		return LineItem{}, err
	}

	ticket := c.Ticket()
	product, err := s.Products.Product(ctx, strings.TrimSpace(in.ProductID))
	if err != nil {
		obs.FailSpan(span, err)
		obs.RecordCartAdd("error")
		return LineItem{}, err
	}
	v, err := variant.Resolve(s.Variants.For(product.Category), in.VariantID)
	if err != nil {
		obs.RecordCartAdd("error")
		return LineItem{}, err
	}
	line, err := c.AddIfCurrent(ticket, product, v, qty, catalog.IsOutOfStock(product, false, threshold))
	if err != nil {
		span.SetAttributes(attribute.String("cart.add_result", addResult(err)))
		obs.RecordCartAdd(addResult(err))
		return LineItem{}, err
	}
	obs.RecordCartAdd("ok")
	s.emit(ctx, events.TopicCartItemAdded, cartID, map[string]any{
		"key":       line.Key.String(),
		"productId": line.Key.ProductID,
		"variantId": line.Key.VariantID,
		"added":     qty,
		"quantity":  line.Quantity,
		"unitPrice": line.UnitPrice,
	})
	return line, nil
}

// SetQuantity overwrites the quantity of a line; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, cartID string, key Key, qty int) error {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	if err := c.SetQuantity(key, qty); err != nil {
		return err
	}
	s.emit(ctx, events.TopicCartQuantitySet, cartID, map[string]any{"key": key.String(), "quantity": qty})
	return nil
}

// RemoveItem drops a line. Removing an absent line succeeds.
func (s *Service) RemoveItem(ctx context.Context, cartID string, key Key) error {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	c.Remove(key)
	s.emit(ctx, events.TopicCartItemRemoved, cartID, map[string]any{"key": key.String()})
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return err
	}
	c.Clear()
	s.emit(ctx, events.TopicCartCleared, cartID, nil)
	return nil
}

// LineTotal returns the total of one line.
func (s *Service) LineTotal(ctx context.Context, cartID string, key Key) (decimal.Decimal, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.LineTotal(key)
}

func (s *Service) emit(ctx context.Context, topic, cartID string, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, cartID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("cart_id", cartID).Msg("emit cart event failed")
	}
}

func addResult(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "error"
	}
}
