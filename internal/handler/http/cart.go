package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart := h.service.GetCart(r.Context(), logger.SessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, newCartView(cart))
}

// GetSummary handles GET /api/v1/cart/summary
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	cart := h.service.GetCart(r.Context(), logger.SessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, newSummaryView(cart))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input service.AddItemInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, err := h.service.AddItem(r.Context(), logger.SessionIDFromContext(r.Context()), input)
	h.writeMutation(w, r, m, err)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{id}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateQuantityInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, err := h.service.SetQuantity(r.Context(), logger.SessionIDFromContext(r.Context()),
		chi.URLParam(r, "id"), *input.Quantity)
	h.writeMutation(w, r, m, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.RemoveItem(r.Context(), logger.SessionIDFromContext(r.Context()), chi.URLParam(r, "id"))
	h.writeMutation(w, r, m, err)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Clear(r.Context(), logger.SessionIDFromContext(r.Context()))
	h.writeMutation(w, r, m, err)
}

func (h *CartHandler) writeMutation(w http.ResponseWriter, r *http.Request, m *service.Mutation, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	view := newCartView(m.Cart)
	view.Persisted = &m.Persisted
	httputil.WriteData(w, http.StatusOK, view)
}
