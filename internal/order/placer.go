package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Item is one order line.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Customer is the shipping contact of an order.
type Customer struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
}

// Request is the order placement payload.
type Request struct {
	IdempotencyKey string   `json:"-"`
	SessionID      string   `json:"session_id"`
	Items          []Item   `json:"items"`
	Currency       string   `json:"currency"`
	TotalAmount    int64    `json:"total_amount"`
	PaymentMethod  string   `json:"payment_method"`
	Customer       Customer `json:"shipping_address"`
}

// NewRequest builds the placement request of a checkout. Card details are
// not forwarded.
func NewRequest(co *domain.Checkout) Request {
	items := make([]Item, len(co.Cart))
	for i, li := range co.Cart {
		items[i] = Item{
			ProductID: li.ID,
			Name:      li.Name,
			Price:     li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	return Request{
		IdempotencyKey: uuid.NewString(),
		SessionID:      co.SessionID,
		Items:          items,
		Currency:       domain.Currency(co.Cart),
		TotalAmount:    co.Total(),
		PaymentMethod:  string(co.Payment.Method),
		Customer: Customer{
			FullName:    co.Customer.Name,
			Email:       co.Customer.Email,
			Phone:       co.Customer.Phone,
			AddressLine: co.Customer.Address,
			City:        co.Customer.City,
		},
	}
}

// Placer places an order and returns its id.
type Placer interface {
	Place(ctx context.Context, req Request) (string, error)
}

// HTTPPlacer posts orders to the order service.
type HTTPPlacer struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewHTTPPlacer creates a placer for the order service at baseURL.
func NewHTTPPlacer(baseURL string, cb *httpclient.CircuitBreakerClient, logger *slog.Logger) *HTTPPlacer {
	return &HTTPPlacer{
		http:    cb,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type createOrderResponse struct {
	OrderID string `json:"order_id"`
}

// Place posts req to {base}/api/orders.
func (p *HTTPPlacer) Place(ctx context.Context, req Request) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "order.Place")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := p.http.Do(ctx, httpReq)
	if err != nil {
		tracing.RecordError(span, err)
		return "", fmt.Errorf("call order service: %w", err)
	}

	var out createOrderResponse
	if err := httpclient.DecodeJSON(resp, "order", &out); err != nil {
		tracing.RecordError(span, err)
		return "", err
	}
	if out.OrderID == "" {
		return "", errors.New("order service returned no order_id")
	}

	p.logger.InfoContext(ctx, "order created",
		slog.String("session_id", req.SessionID),
		slog.String("order_id", out.OrderID),
	)
	return out.OrderID, nil
}

// SimulatedPlacer stands in for the order service: it waits for latency and
// returns a generated order id.
type SimulatedPlacer struct {
	latency time.Duration
	logger  *slog.Logger
}

// NewSimulatedPlacer creates a simulated placer.
func NewSimulatedPlacer(latency time.Duration, logger *slog.Logger) *SimulatedPlacer {
	return &SimulatedPlacer{latency: latency, logger: logger}
}

// Place waits for the configured latency, or until ctx is done.
func (p *SimulatedPlacer) Place(ctx context.Context, req Request) (string, error) {
	if p.latency > 0 {
		t := time.NewTimer(p.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("simulated order placement: %w", ctx.Err())
		case <-t.C:
		}
	}
	id := "ORD-" + strings.ToUpper(uuid.NewString()[:8])
	p.logger.InfoContext(ctx, "simulated order created",
		slog.String("session_id", req.SessionID),
		slog.String("order_id", id),
	)
	return id, nil
}
