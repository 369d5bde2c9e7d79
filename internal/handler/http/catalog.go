package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CatalogHandler serves product listing and detail. A session keeps its
// listing state across requests; anonymous requests get a one-off query.
type CatalogHandler struct {
	registry *catalog.Registry
	products service.ProductSource
	pageSize int
	logger   *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(registry *catalog.Registry, products service.ProductSource, pageSize int, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		registry: registry,
		products: products,
		pageSize: pageSize,
		logger:   logger,
	}
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := pagination.FromQuery(q, h.pageSize)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	b := h.registry.Browser(logger.SessionIDFromContext(r.Context()))
	snap := b.Apply(r.Context(), catalog.Query{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Page:     params.Page,
		Limit:    params.Limit,
	})
	h.writeSnapshot(w, r, snap)
}

// Retry handles POST /api/v1/products/retry
func (h *CatalogHandler) Retry(w http.ResponseWriter, r *http.Request) {
	b := h.registry.Browser(logger.SessionIDFromContext(r.Context()))
	h.writeSnapshot(w, r, b.Retry(r.Context()))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newProductView(*product))
}

// writeSnapshot answers an error state with the upstream status and keeps
// the listing state in the body so clients can render the retry view.
func (h *CatalogHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, snap catalog.Snapshot) {
	view := newCatalogView(snap)
	if snap.State != catalog.StateError {
		httputil.WriteData(w, http.StatusOK, view)
		return
	}

	code := "CATALOG_UNAVAILABLE"
	var appErr *apperrors.AppError
	if errors.As(snap.Err, &appErr) {
		code = appErr.Code
	}
	httputil.WriteJSON(w, apperrors.HTTPStatus(snap.Err), httputil.Response{
		Data: view,
		Error: &httputil.ErrorResponse{
			Code:      code,
			Message:   snap.Error,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
