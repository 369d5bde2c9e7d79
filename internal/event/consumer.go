package event

import (
	"context"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// GroupID returns the consumer group of one instance. Every replica reads
// the whole topic, so each gets its own group.
func GroupID(instanceID string) string {
	return "storefront-" + instanceID
}

// Notifier signals local cart subscribers without relaying again.
type Notifier interface {
	Notify(sessionID string)
}

// ConsumerHandler turns relayed cart changes from other replicas into local
// signals.
type ConsumerHandler struct {
	notifier   Notifier
	instanceID string
	logger     *slog.Logger
}

// NewConsumerHandler creates a handler for this instance.
func NewConsumerHandler(notifier Notifier, instanceID string, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		notifier:   notifier,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Handle processes one event. Unknown types, events without a session and
// events published by this instance are ignored.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != TopicCartChanged {
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if event.Source == h.instanceID {
		return nil
	}
	if event.AggregateID == "" {
		h.logger.WarnContext(ctx, "cart change without session id",
			slog.String("event_id", event.EventID),
			slog.String("source", event.Source),
		)
		return nil
	}

	h.notifier.Notify(event.AggregateID)
	h.logger.DebugContext(ctx, "received relayed cart change",
		slog.String("session_id", event.AggregateID),
		slog.String("source", event.Source),
	)
	return nil
}
