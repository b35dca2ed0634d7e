package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/common"
	"github.com/noah-isme/storefront-catalog/internal/pricing"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/categories", h.Categories)
	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.ProductDetail)
	r.Get("/products/{id}/similar", h.Similar)
	r.Get("/products/{id}/price", h.Price)
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rows, err := h.service.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Products handles GET /api/v1/products?category=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	cards, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cards)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	detail, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, detail)
}

// Similar handles GET /api/v1/products/{id}/similar.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	items, err := h.service.Similar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Price handles GET /api/v1/products/{id}/price?variant=&qty=.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	query := r.URL.Query()
	qty, err := common.AtoiDefault(query.Get("qty"), 1)
	if err != nil {
		writeError(w, common.BadRequest("qty must be an integer", err))
		return
	}
	quote, err := h.service.PricePreview(r.Context(), chi.URLParam(r, "id"), query.Get("variant"), qty)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quote)
}

var errorRules = []common.ErrorRule{
	{Target: catalog.ErrMalformedRecord, Status: http.StatusBadGateway, Code: "MALFORMED_RECORD", Message: "catalog returned a malformed record"},
	{Target: pricing.ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Code: "INVALID_QUANTITY"},
	{Target: catalog.ErrNotFound, Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "product not found"},
	{Target: variant.ErrUnknownVariant, Status: http.StatusNotFound, Code: common.CodeNotFound},
	{Target: catalog.ErrUnknownView, Status: http.StatusBadRequest, Code: common.CodeBadRequest},
}

// ToAppError translates catalog, variant and pricing errors into AppErrors.
// Errors it does not recognise are returned unchanged.
func ToAppError(err error) error {
	return common.MapError(err, errorRules...)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, ToAppError(err))
}
