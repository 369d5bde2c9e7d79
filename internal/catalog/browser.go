package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// State of a catalog browser.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

const genericLoadError = "products could not be loaded, please retry"

var staleResponses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "storefront_catalog_stale_responses_total",
	Help: "Catalog responses discarded because a newer query was issued",
})

// Lister fetches a page of products. *Client implements it.
type Lister interface {
	ListProducts(ctx context.Context, q Query) (*ListResult, error)
}

// Snapshot is a copy of a browser's state.
type Snapshot struct {
	State      State             `json:"state"`
	Query      Query             `json:"query"`
	Products   []domain.Product  `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
	Error      string            `json:"error,omitempty"`

	// Err is the error of the failed query, if any.
	Err error `json:"-"`
}

// Browser is the catalog listing state of one session. Every Apply issues
// a new query; a response that arrives after a newer query
// was issued is discarded.
type Browser struct {
	lister Lister

	mu         sync.Mutex
	query      Query
	state      State
	products   []domain.Product
	pagination domain.Pagination
	err        error
	issued     uint64
}

// NewBrowser creates a browser on page 1 with the given page size.
func NewBrowser(lister Lister, pageSize int) *Browser {
	return &Browser{
		lister:   lister,
		query:    Query{Page: 1, Limit: pageSize},
		state:    StateLoading,
		products: []domain.Product{},
	}
}

// Retry re-issues the last query.
func (b *Browser) Retry(ctx context.Context) Snapshot {
	return b.update(ctx, func(q *Query) {})
}

// Apply replaces all parameters at once. If category, search or sort
// changed, the page is reset to 1.
func (b *Browser) Apply(ctx context.Context, next Query) Snapshot {
	return b.update(ctx, func(q *Query) {
		if next.Limit < 1 {
			next.Limit = q.Limit
		}
		if next.Page < 1 {
			next.Page = 1
		}
		*q = next
	})
}

// Snapshot returns the current state without querying.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Browser) update(ctx context.Context, edit func(q *Query)) Snapshot {
	b.mu.Lock()
	prev := b.query
	next := prev
	edit(&next)
	if !next.sameFilters(prev) {
		next.Page = 1
	}
	b.issued++
	seq := b.issued
	b.query = next
	b.state = StateLoading
	b.err = nil
	b.mu.Unlock()

	res, err := b.lister.ListProducts(ctx, next)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.issued {
		staleResponses.Inc()
		return b.snapshotLocked()
	}
	if err != nil {
		b.state = StateError
		b.err = err
		return b.snapshotLocked()
	}
	b.state = StateReady
	b.products = res.Products
	b.pagination = res.Pagination
	return b.snapshotLocked()
}

func (b *Browser) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      b.state,
		Query:      b.query,
		Products:   b.products,
		Pagination: b.pagination,
		Err:        b.err,
	}
	if b.err != nil {
		s.Error = userMessage(b.err)
	}
	return s
}

func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return appErr.Message
	}
	return genericLoadError
}
