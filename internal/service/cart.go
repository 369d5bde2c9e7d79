package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct items allowed in a cart.
	MaxItemsPerCart = 50
)

var cartMutations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation and whether the result was persisted",
	},
	[]string{"op", "persisted"},
)

// CartStore persists carts per session. *repository.CartStore implements it.
type CartStore interface {
	Load(ctx context.Context, sessionID string) domain.Cart
	Save(ctx context.Context, sessionID string, cart domain.Cart) error
	Clear(ctx context.Context, sessionID string) error
	LoadSnapshot(ctx context.Context, sessionID string) domain.Cart
	SaveSnapshot(ctx context.Context, sessionID string, cart domain.Cart) error
	ClearSnapshot(ctx context.Context, sessionID string) error
}

// ProductSource looks up catalog products. *catalog.Client implements it.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Broadcaster signals cart changes. *notify.Broadcaster implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID string)
}

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1,lte=100"`
}

// UpdateQuantityInput holds the parameters for updating an item quantity.
// Zero removes the item.
type UpdateQuantityInput struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=100"`
}

// Mutation is the outcome of a cart change. Persisted is false when the
// store rejected the write; the cart is then the un-saved result and no
// signal was broadcast.
type Mutation struct {
	Cart      domain.Cart
	Persisted bool
}

// CartService funnels every cart change through load, pure mutation, save
// and broadcast, one session at a time.
type CartService struct {
	store       CartStore
	products    ProductSource
	broadcaster Broadcaster
	locks       *sessionLocks
	logger      *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(store CartStore, products ProductSource, broadcaster Broadcaster, logger *slog.Logger) *CartService {
	return &CartService{
		store:       store,
		products:    products,
		broadcaster: broadcaster,
		locks:       newSessionLocks(),
		logger:      logger,
	}
}

// GetCart returns the persisted cart of a session.
func (s *CartService) GetCart(ctx context.Context, sessionID string) domain.Cart {
	return s.store.Load(ctx, sessionID)
}

// AddItem adds quantity units of a catalog product, merging into an existing
// line. The line is priced from the catalog at the time of the add.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*Mutation, error) {
	qty := input.Quantity
	if qty < 1 {
		qty = 1
	}

	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("look up product: %w", err)
	}
	if !product.Purchasable() {
		return nil, apperrors.Precondition("PRODUCT_UNAVAILABLE",
			fmt.Sprintf("product %s is not available", product.ID))
	}
	line := domain.LineItemFromProduct(*product)

	return s.mutate(ctx, sessionID, "add", func(c domain.Cart) (domain.Cart, error) {
		existing, ok := c.Find(line.ID)
		if !ok && len(c) >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart cannot hold more than %d distinct items", MaxItemsPerCart))
		}
		if existing.Quantity+qty > MaxQuantityPerItem {
			return nil, apperrors.InvalidField("quantity", fmt.Sprintf("cannot exceed %d per item", MaxQuantityPerItem))
		}
		return domain.AddItem(c, line, qty), nil
	})
}

// SetQuantity replaces the quantity of a line. Zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, sessionID, productID string, qty int) (*Mutation, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, sessionID, productID)
	}
	return s.mutate(ctx, sessionID, "set_quantity", func(c domain.Cart) (domain.Cart, error) {
		if _, ok := c.Find(productID); !ok {
			return nil, apperrors.NotFound("cart item", productID)
		}
		return domain.SetQuantity(c, productID, qty), nil
	})
}

// RemoveItem drops a line. Removing an absent line is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*Mutation, error) {
	return s.mutate(ctx, sessionID, "remove", func(c domain.Cart) (domain.Cart, error) {
		return domain.RemoveItem(c, productID), nil
	})
}

// Clear empties the cart by removing its slot.
func (s *CartService) Clear(ctx context.Context, sessionID string) (*Mutation, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	persisted := s.store.Clear(ctx, sessionID) == nil
	s.finish(ctx, sessionID, "clear", persisted)
	return &Mutation{Cart: domain.Clear(nil), Persisted: persisted}, nil
}

func (s *CartService) mutate(ctx context.Context, sessionID, op string, fn func(domain.Cart) (domain.Cart, error)) (*Mutation, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	next, err := fn(s.store.Load(ctx, sessionID))
	if err != nil {
		return nil, err
	}

	persisted := s.store.Save(ctx, sessionID, next) == nil
	s.finish(ctx, sessionID, op, persisted)
	return &Mutation{Cart: next, Persisted: persisted}, nil
}

func (s *CartService) finish(ctx context.Context, sessionID, op string, persisted bool) {
	cartMutations.WithLabelValues(op, fmt.Sprint(persisted)).Inc()
	if !persisted {
		s.logger.WarnContext(ctx, "cart change not persisted, skipping broadcast",
			slog.String("op", op),
		)
		return
	}
	s.broadcaster.Broadcast(ctx, sessionID)
}
