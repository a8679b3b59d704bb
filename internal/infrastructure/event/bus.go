package event

import (
	"context"
	"fmt"
	"strings"

	evbus "github.com/asaskevich/EventBus"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TopicAll receives every published event in addition to its own type topic
const TopicAll = "storefront.*"

// Handler consumes a published domain event
type Handler func(shared.DomainEvent)

// Bus is an in-process pub/sub for cart and session events. Delivery is
// synchronous; subscribers run on the publisher's goroutine after the state
// change is durable, and a panicking subscriber never affects the publisher.
// Subscribers must not publish or subscribe: delivery holds the bus lock.
type Bus struct {
	bus    evbus.Bus
	logger *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{bus: evbus.New(), logger: logger}
}

// Publish delivers events to subscribers of their type and of TopicAll
func (b *Bus) Publish(events ...shared.DomainEvent) {
	for _, e := range events {
		if e == nil {
			continue
		}
		b.bus.Publish(e.EventType(), e)
		b.bus.Publish(TopicAll, e)
	}
}

// Subscribe registers handler for topic: an event type or TopicAll.
// Subscriptions live as long as the bus.
func (b *Bus) Subscribe(topic string, handler Handler) error {
	safe := func(e shared.DomainEvent) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event subscriber panicked",
					zap.String("topic", topic),
					zap.String("event_type", e.EventType()),
					zap.Any("panic", r),
				)
			}
		}()
		handler(e)
	}
	if err := b.bus.Subscribe(topic, safe); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// HasSubscribers reports whether topic has at least one handler
func (b *Bus) HasSubscribers(topic string) bool {
	return b.bus.HasCallback(topic)
}

var _ shared.EventPublisher = (*Bus)(nil)

// RegisterObservers subscribes the audit log line and the store event
// counter to every event.
func RegisterObservers(b *Bus, log *zap.Logger, metrics *telemetry.Metrics) error {
	return b.Subscribe(TopicAll, func(e shared.DomainEvent) {
		ctx := logger.WithProfileID(context.Background(), e.ProfileID())
		logger.WithLogger(ctx, log).Debug("store event",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
		)
		metrics.RecordStoreEvent(ctx, storeOf(e.EventType()), e.EventType())
	})
}

// storeOf maps "CartItemAdded" to "cart"
func storeOf(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "Cart"):
		return "cart"
	case strings.HasPrefix(eventType, "Session"):
		return "session"
	default:
		return "other"
	}
}
