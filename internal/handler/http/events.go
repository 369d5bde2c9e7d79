package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/logger"
)

const heartbeatInterval = 25 * time.Second

// EventsHandler streams cart-change signals as Server-Sent Events.
type EventsHandler struct {
	broadcaster *notify.Broadcaster
	carts       *service.CartService
	heartbeat   time.Duration
	logger      *slog.Logger
}

// NewEventsHandler creates a new cart events handler.
func NewEventsHandler(broadcaster *notify.Broadcaster, carts *service.CartService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		carts:       carts,
		heartbeat:   heartbeatInterval,
		logger:      logger,
	}
}

// Stream handles GET /api/v1/cart/events. A "ready" event is sent once the
// subscription is live; every signal then yields a "cart_changed" event with
// the fresh cart summary.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := logger.SessionIDFromContext(ctx)
	rc := http.NewResponseController(w)

	sub := h.broadcaster.Subscribe(sessionID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send("ready", newSummaryView(h.carts.GetCart(ctx, sessionID))); err != nil {
		h.logger.WarnContext(ctx, "cart stream not writable", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			if err := send("cart_changed", newSummaryView(h.carts.GetCart(ctx, sessionID))); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
