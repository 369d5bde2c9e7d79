package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CatalogPath is where clients are sent when there is nothing to check out.
const CatalogPath = "/products"

const (
	orderFailedMessage = "your order could not be placed, please try again"
	placeTimeout       = 30 * time.Second
)

var (
	checkoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_checkout_transitions_total",
			Help: "Checkout steps reached",
		},
		[]string{"step"},
	)

	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_total",
			Help: "Order placements by result",
		},
		[]string{"result"},
	)
)

// CheckoutService drives one checkout per session. Checkouts live in
// process memory only.
type CheckoutService struct {
	store  CartStore
	carts  *CartService
	placer order.Placer
	logger *slog.Logger
	ttl    time.Duration

	mu        sync.Mutex
	checkouts map[string]*domain.Checkout
	touched   map[string]time.Time
	now       func() time.Time
}

// NewCheckoutService creates a checkout service. Checkouts untouched for
// ttl are dropped by Run.
func NewCheckoutService(store CartStore, carts *CartService, placer order.Placer, ttl time.Duration, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:     store,
		carts:     carts,
		placer:    placer,
		logger:    logger,
		ttl:       ttl,
		checkouts: make(map[string]*domain.Checkout),
		touched:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Begin hands the live cart to checkout and opens a fresh checkout on
// step 1. When the live cart is empty a previously handed-off snapshot is
// used. With neither, EMPTY_CART is returned with a redirect to the catalog.
func (s *CheckoutService) Begin(ctx context.Context, sessionID string) (domain.Checkout, error) {
	s.mu.Lock()
	if co, ok := s.checkouts[sessionID]; ok && co.Placing {
		s.mu.Unlock()
		return domain.Checkout{}, mapCheckoutError(domain.ErrOrderInFlight)
	}
	s.mu.Unlock()

	snapshot := s.store.Load(ctx, sessionID)
	if len(snapshot) == 0 {
		// A leftover snapshot must not reopen checkout for an empty cart.
		if len(s.store.LoadSnapshot(ctx, sessionID)) > 0 {
			_ = s.store.ClearSnapshot(ctx, sessionID)
		}
		return domain.Checkout{}, mapCheckoutError(domain.ErrEmptyCart)
	}
	// Unsaved snapshots still open the checkout from memory.
	_ = s.store.SaveSnapshot(ctx, sessionID, snapshot)

	co, err := domain.NewCheckout(sessionID, snapshot, s.now())
	if err != nil {
		return domain.Checkout{}, mapCheckoutError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkouts[sessionID] = co
	s.touched[sessionID] = s.now()
	checkoutTransitions.WithLabelValues(domain.StepCustomer.String()).Inc()
	s.logger.InfoContext(ctx, "checkout started",
		slog.Int("items", domain.TotalItems(snapshot)),
		slog.Int64("total", co.Total()),
	)
	return *co, nil
}

// Get returns the current checkout of a session.
func (s *CheckoutService) Get(ctx context.Context, sessionID string) (domain.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	co, err := s.lookupLocked(sessionID)
	if err != nil {
		return domain.Checkout{}, err
	}
	return *co, nil
}

// SubmitCustomer validates step 1 and advances to payment.
func (s *CheckoutService) SubmitCustomer(ctx context.Context, sessionID string, info domain.CustomerInfo) (domain.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	co, err := s.lookupLocked(sessionID)
	if err != nil {
		return domain.Checkout{}, err
	}
	if err := co.SubmitCustomer(info); err != nil {
		return *co, mapCheckoutError(err)
	}
	checkoutTransitions.WithLabelValues(domain.StepPayment.String()).Inc()
	return *co, nil
}

// SubmitPayment validates step 2 and places the order. Success moves to the
// confirmation step, clears both cart slots and broadcasts the change.
// Failure stays on payment with a retriable ORDER_FAILED error. A second
// submit while the order is being placed gets ORDER_IN_FLIGHT.
func (s *CheckoutService) SubmitPayment(ctx context.Context, sessionID string, info domain.PaymentInfo) (domain.Checkout, error) {
	s.mu.Lock()
	co, err := s.lookupLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return domain.Checkout{}, err
	}
	if err := co.SubmitPayment(info); err != nil {
		out := *co
		s.mu.Unlock()
		return out, mapCheckoutError(err)
	}
	req := order.NewRequest(co)
	s.mu.Unlock()

	// Placement outlives the request context.
	placeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), placeTimeout)
	orderID, placeErr := s.placer.Place(placeCtx, req)
	cancel()

	s.mu.Lock()
	s.touched[sessionID] = s.now()
	if placeErr != nil {
		co.FailOrder(orderFailedMessage)
		out := *co
		s.mu.Unlock()

		ordersPlaced.WithLabelValues("failed").Inc()
		s.logger.ErrorContext(ctx, "order placement failed",
			slog.String("error", placeErr.Error()),
		)
		return out, apperrors.OrderFailed(orderFailedMessage, placeErr)
	}
	co.CompleteOrder(orderID)
	out := *co
	s.mu.Unlock()

	ordersPlaced.WithLabelValues("placed").Inc()
	checkoutTransitions.WithLabelValues(domain.StepConfirmation.String()).Inc()
	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", orderID),
		slog.Int64("total", out.Total()),
	)

	// The order exists; slot failures are logged by the store and the
	// customer still sees the confirmation.
	_ = s.store.ClearSnapshot(ctx, sessionID)
	if _, err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after order", slog.String("error", err.Error()))
	}
	return out, nil
}

// Back moves from payment to customer info. From customer info it leaves
// checkout: the checkout and the snapshot are dropped and exit is true.
func (s *CheckoutService) Back(ctx context.Context, sessionID string) (co domain.Checkout, exit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.lookupLocked(sessionID)
	if err != nil {
		return domain.Checkout{}, false, err
	}
	exit, err = cur.Back()
	if err != nil {
		return *cur, false, mapCheckoutError(err)
	}
	if exit {
		s.dropLocked(sessionID)
		_ = s.store.ClearSnapshot(ctx, sessionID)
		return domain.Checkout{}, true, nil
	}
	return *cur, false, nil
}

func (s *CheckoutService) lookupLocked(sessionID string) (*domain.Checkout, error) {
	co, ok := s.checkouts[sessionID]
	if !ok {
		return nil, apperrors.Precondition("NO_CHECKOUT", "no checkout in progress").WithRedirect(CatalogPath)
	}
	s.touched[sessionID] = s.now()
	return co, nil
}

func (s *CheckoutService) dropLocked(sessionID string) {
	delete(s.checkouts, sessionID)
	delete(s.touched, sessionID)
}

// Len returns the number of open checkouts.
func (s *CheckoutService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkouts)
}

func (s *CheckoutService) sweep() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	var dropped []string
	for id, at := range s.touched {
		if at.Before(cutoff) && !s.checkouts[id].Placing {
			s.dropLocked(id)
			dropped = append(dropped, id)
		}
	}
	s.mu.Unlock()

	for _, id := range dropped {
		if err := s.store.ClearSnapshot(context.Background(), id); err != nil {
			s.logger.Warn("clearing expired checkout snapshot", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}

// Run drops idle checkouts every interval until ctx is done.
func (s *CheckoutService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func mapCheckoutError(err error) error {
	var fe *domain.FieldError
	switch {
	case errors.As(err, &fe):
		return apperrors.InvalidField(fe.Field, fe.Message)
	case errors.Is(err, domain.ErrEmptyCart):
		return apperrors.Precondition("EMPTY_CART", "your cart is empty").WithRedirect(CatalogPath)
	case errors.Is(err, domain.ErrWrongStep):
		return apperrors.Precondition("WRONG_STEP", err.Error())
	case errors.Is(err, domain.ErrCheckoutComplete):
		return apperrors.Precondition("CHECKOUT_COMPLETE", err.Error())
	case errors.Is(err, domain.ErrOrderInFlight):
		return apperrors.Precondition("ORDER_IN_FLIGHT", err.Error())
	default:
		return fmt.Errorf("checkout: %w", err)
	}
}
