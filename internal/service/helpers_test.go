package service

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/pkg/logger"
)

// --- Mocks ---

type mockProducts struct {
	mock.Mock
}

func (m *mockProducts) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockPlacer struct {
	mock.Mock
}

func (m *mockPlacer) Place(ctx context.Context, req order.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	sessions []string
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append(b.sessions, sessionID)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// toggleSlots wraps in-memory slots and fails writes while failing is set.
type toggleSlots struct {
	*memory.Slots
	mu      sync.Mutex
	failing bool
}

func (s *toggleSlots) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *toggleSlots) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("quota exceeded")
	}
	return s.Slots.Set(ctx, key, value)
}

// --- Test Helpers ---

type fixture struct {
	store       *repository.CartStore
	slots       *toggleSlots
	products    *mockProducts
	broadcaster *recordingBroadcaster
	carts       *CartService
}

func newFixture() *fixture {
	slots := &toggleSlots{Slots: memory.New(0)}
	f := &fixture{
		slots:       slots,
		store:       repository.NewCartStore(slots, logger.Discard()),
		products:    new(mockProducts),
		broadcaster: &recordingBroadcaster{},
	}
	f.carts = NewCartService(f.store, f.products, f.broadcaster, logger.Discard())
	return f
}

func lamp() *domain.Product {
	return &domain.Product{
		ID:            "p-lamp",
		Name:          "Desk Lamp",
		Price:         4000,
		Discount:      25,
		Currency:      "USD",
		StockQuantity: 5,
		Available:     true,
		Images:        []string{"/img/lamp.jpg"},
	}
}

func bulb() *domain.Product {
	return &domain.Product{
		ID:            "p-bulb",
		Name:          "Bulb",
		Price:         300,
		Currency:      "USD",
		StockQuantity: 1,
		Available:     true,
	}
}
