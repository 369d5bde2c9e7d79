package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic and event type for cart change signals.
var TopicCartChanged = pkgkafka.Topic("storefront", "cart_changed")

// Publisher sends events to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer relays cart change signals to other storefront replicas. The
// event carries no payload; the aggregate id is the session id and the
// source is this instance, so the instance can skip its own events.
type Producer struct {
	publisher  Publisher
	instanceID string
	logger     *slog.Logger
}

// NewProducer creates a relay producer for this instance.
func NewProducer(publisher Publisher, instanceID string, logger *slog.Logger) *Producer {
	return &Producer{
		publisher:  publisher,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Relay publishes a cart_changed signal for sessionID.
func (p *Producer) Relay(ctx context.Context, sessionID string) error {
	event, err := pkgkafka.NewEvent(TopicCartChanged, sessionID, p.instanceID, nil)
	if err != nil {
		return fmt.Errorf("create cart_changed event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.publisher.Publish(ctx, TopicCartChanged, event); err != nil {
		return fmt.Errorf("publish cart_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "relayed cart change",
		slog.String("session_id", sessionID),
	)
	return nil
}
