package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"sales-core/internal/models"
	"sales-core/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing document lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishDocumentEvent publishes a lifecycle event keyed by document number,
// so every event of one document lands on the same partition in order.
func (ep *EventPublisher) PublishDocumentEvent(ctx context.Context, event *models.DocumentEvent) error {
	key := fmt.Sprintf("document-%s", event.DocumentNumber)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// EventHandler routes incoming document events to registered handlers
type EventHandler struct {
	handlers map[string]func(context.Context, *models.DocumentEvent) error
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]func(context.Context, *models.DocumentEvent) error),
		logger:   util.GetLogger(),
	}
}

// On registers a handler for one event type
func (eh *EventHandler) On(eventType string, handler func(context.Context, *models.DocumentEvent) error) {
	eh.handlers[eventType] = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	handler, ok := eh.handlers[baseEvent.EventType]
	if !ok {
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
		return nil
	}

	var event models.DocumentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
	}
	return handler(ctx, &event)
}
