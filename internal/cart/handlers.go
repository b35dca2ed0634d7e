package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/common"
	"github.com/noah-isme/storefront-catalog/internal/pricing"
	"github.com/noah-isme/storefront-catalog/internal/storefront"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc       *Service
	Formatter *pricing.Formatter
	// Idempotency wraps the write endpoints when set.
	Idempotency func(http.Handler) http.Handler
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.Idempotency != nil {
			r.Use(h.Idempotency)
		}
		r.Post("/carts", h.Create)
		r.Post("/carts/{id}/items", h.AddItem)
		r.Patch("/carts/{id}/items/{key}", h.UpdateItem)
		r.Delete("/carts/{id}/items/{key}", h.RemoveItem)
		r.Delete("/carts/{id}/items", h.Clear)
	})
	r.Get("/carts/{id}", h.Get)
	r.Get("/carts/{id}/items/{key}/total", h.LineTotal)
}

type lineView struct {
	LineItem
	Key       string           `json:"key"`
	ProductID string           `json:"productId"`
	VariantID string           `json:"variantId,omitempty"`
	UnitPrice storefront.Money `json:"unitPrice"`
	LineTotal storefront.Money `json:"lineTotal"`
}

type cartView struct {
	ID       string           `json:"id"`
	Items    []lineView       `json:"items"`
	Lines    int              `json:"lines"`
	Quantity int              `json:"quantity"`
	Total    storefront.Money `json:"total"`
	Currency string           `json:"currency"`
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId"`
	Qty       *int   `json:"qty" validate:"omitempty,max=9999"`
	View      string `json:"view" validate:"omitempty,oneof=listing detail"`
}

type updateItemPayload struct {
	Qty *int `json:"qty" validate:"required,max=9999"`
}

// Create creates an empty cart and returns its id.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id, c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, h.view(id, c))
}

// Get returns cart contents with line and grand totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(id, c))
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload addItemPayload
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	_, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), AddItemInput{
		ProductID: payload.ProductID,
		VariantID: payload.VariantID,
		Qty:       payload.Qty,
		View:      catalog.View(payload.View),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem sets the quantity for a cart line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	key, err := ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, common.BadRequest(err.Error(), err))
		return
	}
	var payload updateItemPayload
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Svc.SetQuantity(r.Context(), chi.URLParam(r, "id"), key, *payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	key, err := ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, common.BadRequest(err.Error(), err))
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), key); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes every line item.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	if err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LineTotal returns unit price × quantity for one line.
func (h *Handler) LineTotal(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	key, err := ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, common.BadRequest(err.Error(), err))
		return
	}
	total, err := h.Svc.LineTotal(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"key": key.String(), "total": h.money(total)})
}

func (h *Handler) view(id string, c *Cart) cartView {
	items := c.Items()
	out := cartView{ID: id, Items: make([]lineView, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, lineView{
			LineItem:  it,
			Key:       it.Key.String(),
			ProductID: it.Key.ProductID,
			VariantID: it.Key.VariantID,
			UnitPrice: h.money(it.UnitPrice),
			LineTotal: h.money(it.Total()),
		})
	}
	summary := c.Summary()
	out.Lines = summary.Items
	out.Quantity = summary.Quantity
	out.Total = h.money(summary.Total)
	if h.Formatter != nil {
		out.Currency = h.Formatter.Currency()
	}
	return out
}

func (h *Handler) money(amount pricing.Money) storefront.Money {
	m := storefront.Money{Amount: amount}
	if h.Formatter != nil {
		m.Formatted = h.Formatter.Format(amount)
	}
	return m
}

var errorRules = []common.ErrorRule{
	{Target: ErrOutOfStock, Status: http.StatusConflict, Code: "OUT_OF_STOCK", Message: "product is out of stock"},
	{Target: ErrSuperseded, Status: http.StatusConflict, Code: "SUPERSEDED", Message: "cart changed while the request was in flight"},
	{Target: ErrCartNotFound, Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "cart not found"},
	{Target: ErrNotFound, Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "line item not found"},
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unknown error", nil)
		return
	}
	mapped := common.MapError(err, errorRules...)
	if !common.IsAppError(mapped) {
		mapped = storefront.ToAppError(err)
	}
	common.WriteError(w, mapped)
}
