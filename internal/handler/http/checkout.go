package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// CheckoutHandler handles HTTP requests for the checkout flow.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// Begin handles POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	co, err := h.service.Begin(r.Context(), logger.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, newCheckoutView(co))
}

// Get handles GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	co, err := h.service.Get(r.Context(), logger.SessionIDFromContext(r.Context()))
	h.write(w, r, co, err)
}

// SubmitCustomer handles PUT /api/v1/checkout/customer
func (h *CheckoutHandler) SubmitCustomer(w http.ResponseWriter, r *http.Request) {
	var info domain.CustomerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		httputil.WriteValidationError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	co, err := h.service.SubmitCustomer(r.Context(), logger.SessionIDFromContext(r.Context()), info)
	h.write(w, r, co, err)
}

// SubmitPayment handles PUT /api/v1/checkout/payment
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var info domain.PaymentInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		httputil.WriteValidationError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	co, err := h.service.SubmitPayment(r.Context(), logger.SessionIDFromContext(r.Context()), info)
	h.write(w, r, co, err)
}

// Back handles POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	co, exit, err := h.service.Back(r.Context(), logger.SessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if exit {
		httputil.WriteData(w, http.StatusOK, exitView{Exited: true, Redirect: service.CatalogPath})
		return
	}
	httputil.WriteData(w, http.StatusOK, newCheckoutView(co))
}

// FormatCardNumber handles POST /api/v1/checkout/card-number. It echoes
// the card number grouped for display while the form is being filled.
func (h *CheckoutHandler) FormatCardNumber(w http.ResponseWriter, r *http.Request) {
	var input cardNumberInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCardNumberView(input.CardNumber))
}

func (h *CheckoutHandler) write(w http.ResponseWriter, r *http.Request, co domain.Checkout, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCheckoutView(co))
}
