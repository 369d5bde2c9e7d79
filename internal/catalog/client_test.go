package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 2 * time.Second
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("catalog-"+t.Name()), logger.Discard())
	return NewClient(server.URL+"/", cb, logger.Discard())
}

func TestQuery_Values(t *testing.T) {
	v := Query{Page: 2, Limit: 12}.Values()
	assert.Equal(t, "limit=12&page=2", v.Encode())

	v = Query{Category: "lamps", Search: "desk lamp", Sort: "price_asc", Page: 1, Limit: 24}.Values()
	assert.Equal(t, "category=lamps&limit=24&page=1&search=desk+lamp&sort=price_asc", v.Encode())
}

func TestClient_ListProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products", r.URL.Path)
		assert.Equal(t, "lamps", r.URL.Query().Get("category"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("search"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"products": []domain.Product{
				{ID: "p-1", Name: "Desk Lamp", Category: "lamps", Price: 4000, Currency: "USD", StockQuantity: 3, Available: true},
			},
			"pagination": domain.Pagination{Page: 3, Pages: 5, Total: 52},
		})
	})

	res, err := client.ListProducts(context.Background(), Query{Category: "lamps", Page: 3, Limit: 12})

	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Desk Lamp", res.Products[0].Name)
	assert.Equal(t, domain.Pagination{Page: 3, Pages: 5, Total: 52}, res.Pagination)
}

func TestClient_ListProducts_EmptyPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination":{"page":1,"pages":0,"total":0}}`))
	})

	res, err := client.ListProducts(context.Background(), Query{Page: 1, Limit: 12})

	require.NoError(t, err)
	assert.NotNil(t, res.Products)
	assert.Empty(t, res.Products)
}

func TestClient_ListProducts_DerivesPageCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[],"pagination":{"page":1,"total":25}}`))
	})

	res, err := client.ListProducts(context.Background(), Query{Page: 1, Limit: 12})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Pagination.Pages)
}

func TestClient_ListProducts_ServerErrorIsRetriable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListProducts(context.Background(), Query{Page: 1, Limit: 12})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}

func TestClient_ListProducts_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products": [`))
	})

	_, err := client.ListProducts(context.Background(), Query{Page: 1, Limit: 12})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestClient_ListProducts_BadRequestPassesThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"unknown sort key"}}`))
	})

	_, err := client.ListProducts(context.Background(), Query{Sort: "bogus", Page: 1, Limit: 12})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "unknown sort key")
}

func TestClient_GetProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/p-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"product":{"id":"p-1","name":"Desk Lamp","price":4000,"discount":10,"currency":"USD","stock_quantity":2,"available":true,"rating":4.5,"images":["/img/a.jpg"]}}`))
	})

	p, err := client.GetProduct(context.Background(), "p-1")

	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, int64(3600), p.FinalPrice())
	assert.Equal(t, 4.5, p.Rating)
	assert.Equal(t, []string{"/img/a.jpg"}, p.Images)
}

func TestClient_GetProduct_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"no such product"}}`))
	})

	_, err := client.GetProduct(context.Background(), "p-404")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "product with id p-404 not found")
}

func TestClient_GetProduct_EmptyEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.GetProduct(context.Background(), "p-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("catalog-unreachable"), logger.Discard())
	client := NewClient(url, cb, logger.Discard())

	_, err := client.GetProduct(context.Background(), "p-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
