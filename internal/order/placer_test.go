package order

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

func sampleCheckout() *domain.Checkout {
	return &domain.Checkout{
		SessionID: "s1",
		Step:      domain.StepPayment,
		Cart: domain.Cart{
			{ID: "p-1", Name: "Lamp", UnitPrice: 4000, Currency: "USD", Quantity: 2},
			{ID: "p-2", Name: "Bulb", UnitPrice: 300, Currency: "USD", Quantity: 1},
		},
		Customer: domain.CustomerInfo{Name: "Ada", Email: "ada@example.com", Phone: "1", Address: "12 Row", City: "London"},
		Payment:  domain.PaymentInfo{Method: domain.PaymentCard, CardNumber: "4111111111111111", CVV: "123"},
	}
}

func newPlacer(t *testing.T, handler http.HandlerFunc) *HTTPPlacer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("order-"+t.Name()), logger.Discard())
	return NewHTTPPlacer(server.URL, cb, logger.Discard())
}

func TestNewRequest(t *testing.T) {
	req := NewRequest(sampleCheckout())

	assert.NotEmpty(t, req.IdempotencyKey)
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, int64(8300), req.TotalAmount)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "card", req.PaymentMethod)
	require.Len(t, req.Items, 2)
	assert.Equal(t, Item{ProductID: "p-1", Name: "Lamp", Price: 4000, Quantity: 2}, req.Items[0])
	assert.Equal(t, "12 Row", req.Customer.AddressLine)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111")
	assert.NotContains(t, string(raw), "cvv")
}

func TestHTTPPlacer_Place(t *testing.T) {
	placer := newPlacer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var body Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s1", body.SessionID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"ord-77"}`))
	})

	id, err := placer.Place(context.Background(), NewRequest(sampleCheckout()))

	require.NoError(t, err)
	assert.Equal(t, "ord-77", id)
}

func TestHTTPPlacer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `boom`, "call order service"},
		{"conflict", http.StatusConflict, `{"error":{"code":"CONFLICT","message":"out of stock"}}`, "out of stock"},
		{"missing id", http.StatusOK, `{}`, "no order_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			placer := newPlacer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := placer.Place(context.Background(), NewRequest(sampleCheckout()))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestHTTPPlacer_ConflictIsAppError(t *testing.T) {
	placer := newPlacer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	_, err := placer.Place(context.Background(), NewRequest(sampleCheckout()))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSimulatedPlacer(t *testing.T) {
	p := NewSimulatedPlacer(0, logger.Discard())

	a, err := p.Place(context.Background(), NewRequest(sampleCheckout()))
	require.NoError(t, err)
	b, err := p.Place(context.Background(), NewRequest(sampleCheckout()))
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, a)
	assert.NotEqual(t, a, b)
}

func TestSimulatedPlacer_HonoursContext(t *testing.T) {
	p := NewSimulatedPlacer(time.Minute, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Place(ctx, NewRequest(sampleCheckout()))
	assert.ErrorIs(t, err, context.Canceled)
}
