package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/tracing"
)

const upstreamName = "catalog"

// Query holds the listing parameters. Empty strings are omitted.
type Query struct {
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// Values encodes the query for the listing endpoint.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	return v
}

func (q Query) sameFilters(o Query) bool {
	return q.Category == o.Category && q.Search == o.Search && q.Sort == o.Sort
}

// ListResult is one page of products.
type ListResult struct {
	Products   []domain.Product  `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
}

type productEnvelope struct {
	Product *domain.Product `json:"product"`
}

// Client reads the external catalog service.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a catalog client for baseURL.
func NewClient(baseURL string, cb *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	return &Client{
		http:    cb,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ListProducts fetches one page of the product listing.
func (c *Client) ListProducts(ctx context.Context, q Query) (*ListResult, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.ListProducts")
	defer span.End()

	u := c.baseURL + "/api/v1/products?" + q.Values().Encode()

	var res ListResult
	if err := c.http.GetJSON(ctx, u, upstreamName, &res); err != nil {
		tracing.RecordError(span, err)
		return nil, c.translate(ctx, "list products", err)
	}
	if res.Products == nil {
		res.Products = []domain.Product{}
	}
	if res.Pagination.Pages == 0 {
		res.Pagination.Pages = pagination.PageCount(res.Pagination.Total, q.Limit)
	}
	return &res, nil
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.GetProduct")
	defer span.End()

	u := c.baseURL + "/api/v1/products/" + url.PathEscape(id)

	var env productEnvelope
	if err := c.http.GetJSON(ctx, u, upstreamName, &env); err != nil {
		tracing.RecordError(span, err)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, c.translate(ctx, "get product", err)
	}
	if env.Product == nil {
		return nil, apperrors.NotFound("product", id)
	}
	return env.Product, nil
}

// translate keeps platform errors and caller cancellation, and turns
// everything else (transport errors, 5xx, open circuit, bad JSON) into a
// retriable 503.
func (c *Client) translate(ctx context.Context, op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.logger.WarnContext(ctx, "catalog request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, errors.Join(
		apperrors.ServiceUnavailable("the catalog is unavailable, please retry"), err))
}
