package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/pricing"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

var (
	// ErrNotFound indicates the requested line item could not be located.
	ErrNotFound = errors.New("not found")
	// ErrCartNotFound indicates the requested cart does not exist or has expired.
	ErrCartNotFound = fmt.Errorf("cart %w", ErrNotFound)
	// ErrOutOfStock is returned when adding a product flagged unavailable.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrSuperseded is returned when the request that produced the input has been replaced by a newer one.
	ErrSuperseded = errors.New("request superseded")
	// ErrInvalidQuantity is returned for quantities the operation cannot accept.
	ErrInvalidQuantity = pricing.ErrInvalidQuantity
)

const keySeparator = "~"

// MaxQuantity caps a single line. Larger values, including merges that would
// exceed it, are rejected with ErrInvalidQuantity.
const MaxQuantity = 9999

// Key identifies a line item by product and optional variant.
type Key struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
}

// String encodes the key for use in URLs.
func (k Key) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + keySeparator + k.VariantID
}

// ParseKey decodes a key produced by Key.String.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	productID, variantID, _ := strings.Cut(s, keySeparator)
	if productID == "" {
		return Key{}, fmt.Errorf("invalid line item key %q", s)
	}
	return Key{ProductID: productID, VariantID: variantID}, nil
}

// LineItem is one (product, variant) pairing and its quantity.
type LineItem struct {
	Key         Key             `json:"key"`
	Title       string          `json:"title"`
	Image       string          `json:"image,omitempty"`
	VariantName string          `json:"variantName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Total returns UnitPrice × Quantity.
func (li LineItem) Total() decimal.Decimal {
	return pricing.LineTotal(li.UnitPrice, li.Quantity)
}

// Guard reports whether the request that produced some input is still current.
type Guard interface {
	Current() bool
}

// Cart aggregates line items. All methods are safe for concurrent use; mutations
// are serialised per cart.
type Cart struct {
	mu    sync.Mutex
	order []Key
	lines map[Key]*LineItem
	epoch catalog.Generation
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: make(map[Key]*LineItem)}
}

// KeyFor returns the line item key for product in variant v.
func KeyFor(product catalog.Product, v *variant.Variant) Key {
	key := Key{ProductID: product.ID}
	if v != nil {
		key.VariantID = v.ID
	}
	return key
}

// Add merges quantity units of product (in variant v) into the cart. The
// caller supplies the stock status computed for its view. An existing line
// keeps the unit price it was created with.
func (c *Cart) Add(product catalog.Product, v *variant.Variant, quantity int, outOfStock bool) (LineItem, error) {
	return c.AddIfCurrent(nil, product, v, quantity, outOfStock)
}

// AddIfCurrent is Add gated on guard: when the fetch that produced product has
// been superseded the cart is left untouched and ErrSuperseded is returned.
func (c *Cart) AddIfCurrent(guard Guard, product catalog.Product, v *variant.Variant, quantity int, outOfStock bool) (LineItem, error) {
	if outOfStock {
		return LineItem{}, fmt.Errorf("add %s: %w", product.ID, ErrOutOfStock)
	}
	if quantity <= 0 || quantity > MaxQuantity {
		return LineItem{}, fmt.Errorf("add %s: quantity %d: %w", product.ID, quantity, ErrInvalidQuantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if guard != nil && !guard.Current() {
		return LineItem{}, fmt.Errorf("add %s: %w", product.ID, ErrSuperseded)
	}
	return c.addLocked(product, v, quantity)
}

func (c *Cart) addLocked(product catalog.Product, v *variant.Variant, quantity int) (LineItem, error) {
	c.ensureLocked()
	key := KeyFor(product, v)
	if line, ok := c.lines[key]; ok {
		if line.Quantity > MaxQuantity-quantity {
			return LineItem{}, fmt.Errorf("add %s: quantity %d+%d over %d: %w", key, line.Quantity, quantity, MaxQuantity, ErrInvalidQuantity)
		}
		line.Quantity += quantity
		return *line, nil
	}
	line := &LineItem{
		Key:       key,
		Title:     product.Title,
		Image:     product.Image,
		Quantity:  quantity,
		UnitPrice: pricing.UnitPrice(product, v),
	}
	if v != nil {
		line.VariantName = v.Name
	}
	c.lines[key] = line
	c.order = append(c.order, key)
	return *line, nil
}

// Remove deletes the line for key. Removing an absent key is a no-op.
func (c *Cart) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *Cart) removeLocked(key Key) {
	if _, ok := c.lines[key]; !ok {
		return
	}
	delete(c.lines, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// SetQuantity overwrites the quantity for key. Zero removes the line.
func (c *Cart) SetQuantity(key Key, quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("set quantity %s: %d: %w", key, quantity, ErrInvalidQuantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if quantity == 0 {
		c.removeLocked(key)
		return nil
	}
	line, ok := c.lines[key]
	if !ok {
		return fmt.Errorf("set quantity %s: %w", key, ErrNotFound)
	}
	line.Quantity = quantity
	return nil
}

// Line returns a copy of the line for key.
func (c *Cart) Line(key Key) (LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[key]
	if !ok {
		return LineItem{}, fmt.Errorf("line %s: %w", key, ErrNotFound)
	}
	return *line, nil
}

// LineTotal returns unit price × quantity for key.
func (c *Cart) LineTotal(key Key) (decimal.Decimal, error) {
	line, err := c.Line(key)
	if err != nil {
		return decimal.Zero, err
	}
	return line.Total(), nil
}

// GrandTotal sums every line total. An empty cart totals zero.
func (c *Cart) GrandTotal() decimal.Decimal {
	return c.Summary().Total
}

// Summary prices the current contents.
func (c *Cart) Summary() pricing.Summary {
	items := c.Items()
	pricingItems := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		pricingItems = append(pricingItems, pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return pricing.Summarize(pricingItems)
}

// Items returns a snapshot of the line items in first-added order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LineItem, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.lines[key])
	}
	return out
}

// Len returns the number of distinct line items.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Clear empties the cart. Tickets issued before the call stop being current,
// so adds still in flight are rejected instead of refilling the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.lines = make(map[Key]*LineItem)
	c.epoch.Begin()
}

// Ticket snapshots the cart's epoch; pass it to AddIfCurrent once the product
// lookup it guards has finished.
func (c *Cart) Ticket() catalog.Ticket {
	return c.epoch.Observe()
}

func (c *Cart) ensureLocked() {
	if c.lines == nil {
		c.lines = make(map[Key]*LineItem)
	}
}
