package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	cartKeyPrefix     = "storefront:cart:"
	snapshotKeyPrefix = "storefront:checkout_cart:"
)

// Slots is a byte-level key/value store. Get returns an error matching
// apperrors.ErrNotFound when the key is absent.
type Slots interface {
	// Get reads the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

var storeErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_store_errors_total",
		Help: "Cart store operations that failed or read an unparseable value",
	},
	[]string{"op"},
)

// CartKey returns the slot key of a session's live cart.
func CartKey(sessionID string) string { return cartKeyPrefix + sessionID }

// SnapshotKey returns the slot key of a session's checkout snapshot.
func SnapshotKey(sessionID string) string { return snapshotKeyPrefix + sessionID }

// CartStore persists whole carts per session. Reads never fail: an absent,
// unparseable or unreachable slot reads as an empty cart.
type CartStore struct {
	slots  Slots
	logger *slog.Logger
}

// NewCartStore creates a cart store on top of slots.
func NewCartStore(slots Slots, logger *slog.Logger) *CartStore {
	return &CartStore{slots: slots, logger: logger}
}

// Load returns the live cart of a session.
func (s *CartStore) Load(ctx context.Context, sessionID string) domain.Cart {
	return s.load(ctx, CartKey(sessionID))
}

// Save overwrites the live cart of a session.
func (s *CartStore) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	return s.save(ctx, CartKey(sessionID), cart)
}

// Clear removes the live cart of a session.
func (s *CartStore) Clear(ctx context.Context, sessionID string) error {
	return s.delete(ctx, CartKey(sessionID))
}

// LoadSnapshot returns the checkout snapshot of a session.
func (s *CartStore) LoadSnapshot(ctx context.Context, sessionID string) domain.Cart {
	return s.load(ctx, SnapshotKey(sessionID))
}

// SaveSnapshot overwrites the checkout snapshot of a session.
func (s *CartStore) SaveSnapshot(ctx context.Context, sessionID string, cart domain.Cart) error {
	return s.save(ctx, SnapshotKey(sessionID), cart)
}

// ClearSnapshot removes the checkout snapshot of a session.
func (s *CartStore) ClearSnapshot(ctx context.Context, sessionID string) error {
	return s.delete(ctx, SnapshotKey(sessionID))
}

func (s *CartStore) load(ctx context.Context, key string) domain.Cart {
	ctx, span := tracing.StartSpan(ctx, "CartStore.Load")
	defer span.End()

	data, err := s.slots.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			storeErrors.WithLabelValues("load").Inc()
			s.logger.WarnContext(ctx, "cart slot unreadable, using empty cart",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return domain.Cart{}
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		storeErrors.WithLabelValues("parse").Inc()
		s.logger.WarnContext(ctx, "cart slot holds malformed value, using empty cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return domain.Cart{}
	}
	if len(cart) == 0 {
		return domain.Cart{}
	}
	if err := cart.Validate(); err != nil {
		storeErrors.WithLabelValues("parse").Inc()
		s.logger.WarnContext(ctx, "cart slot holds invalid cart, using empty cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return domain.Cart{}
	}
	return cart
}

func (s *CartStore) save(ctx context.Context, key string, cart domain.Cart) error {
	ctx, span := tracing.StartSpan(ctx, "CartStore.Save")
	defer span.End()

	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.slots.Set(ctx, key, data); err != nil {
		storeErrors.WithLabelValues("save").Inc()
		tracing.RecordError(span, err)
		s.logger.ErrorContext(ctx, "failed to save cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartStore) delete(ctx context.Context, key string) error {
	if err := s.slots.Delete(ctx, key); err != nil {
		storeErrors.WithLabelValues("clear").Inc()
		s.logger.ErrorContext(ctx, "failed to clear cart",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
