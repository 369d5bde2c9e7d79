package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const relayTimeout = 5 * time.Second

var (
	activeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_subscribers",
		Help: "Open cart change subscriptions in this process",
	})

	signalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_signals_total",
			Help: "Cart change signals by origin",
		},
		[]string{"origin"},
	)

	relayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_relay_failures_total",
		Help: "Cart change relays that returned an error",
	})
)

// Relay forwards a cart change signal beyond this process.
type Relay interface {
	Relay(ctx context.Context, sessionID string) error
}

// RelayFunc adapts a function to Relay.
type RelayFunc func(ctx context.Context, sessionID string) error

// Relay calls f.
func (f RelayFunc) Relay(ctx context.Context, sessionID string) error { return f(ctx, sessionID) }

// Broadcaster fans payload-less cart change signals out to the subscribers
// of a session. Signals coalesce: a subscriber that has not consumed the
// previous signal does not get a second one, since it re-reads the cart
// either way.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	relays []Relay
	closed bool

	inflight sync.WaitGroup
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster that also hands every Broadcast to
// relays.
func NewBroadcaster(logger *slog.Logger, relays ...Relay) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[*Subscription]struct{}),
		relays: relays,
		logger: logger,
	}
}

// AddRelay registers another relay.
func (b *Broadcaster) AddRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relays = append(b.relays, r)
}

// Subscription is one registered observer. Close it when done.
type Subscription struct {
	b         *Broadcaster
	sessionID string
	ch        chan struct{}
	closed    bool
}

// C delivers one value per (coalesced) cart change. It is closed by Close.
func (s *Subscription) C() <-chan struct{} { return s.ch }

// SessionID returns the observed session.
func (s *Subscription) SessionID() string { return s.sessionID }

// Close unregisters the subscription. Once Close returns no further signal
// is delivered, including one already buffered. Close is idempotent.
func (s *Subscription) Close() {
	b := s.b
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked(s)
}

func (b *Broadcaster) closeLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	if set, ok := b.subs[s.sessionID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.sessionID)
		}
	}
	select {
	case <-s.ch:
	default:
	}
	close(s.ch)
	activeSubscribers.Dec()
}

// Subscribe registers an observer of sessionID's cart. After Close on the
// broadcaster, the returned subscription is already closed.
func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	s := &Subscription{b: b, sessionID: sessionID, ch: make(chan struct{}, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[sessionID] = set
	}
	set[s] = struct{}{}
	activeSubscribers.Inc()
	return s
}

// Broadcast signals the local subscribers of sessionID and hands the change
// to every relay in the background. It never blocks on a relay.
func (b *Broadcaster) Broadcast(ctx context.Context, sessionID string) {
	b.notify(sessionID, "local")

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	relayCtx := context.WithoutCancel(ctx)
	for _, r := range b.relays {
		b.inflight.Add(1)
		go func(r Relay) {
			defer b.inflight.Done()
			ctx, cancel := context.WithTimeout(relayCtx, relayTimeout)
			defer cancel()
			if err := r.Relay(ctx, sessionID); err != nil {
				relayFailures.Inc()
				b.logger.WarnContext(ctx, "cart change relay failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
			}
		}(r)
	}
}

// Notify signals local subscribers only. Relay consumers use it so a change
// received from another replica is not relayed again.
func (b *Broadcaster) Notify(sessionID string) {
	b.notify(sessionID, "relay")
}

func (b *Broadcaster) notify(sessionID, origin string) {
	signalsTotal.WithLabelValues(origin).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[sessionID] {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions for sessionID.
func (b *Broadcaster) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Close closes every subscription and waits for in-flight relays.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	for _, set := range b.subs {
		for s := range set {
			b.closeLocked(s)
		}
	}
	b.mu.Unlock()

	b.inflight.Wait()
}

// Wait blocks until in-flight relays have finished.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}
