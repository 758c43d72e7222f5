package service

import (
	"context"
	"time"

	"sales-core/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes document lifecycle events after commit.
// broker.EventPublisher is the Kafka implementation.
type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, event *models.DocumentEvent) error
}

// NopPublisher drops every event. Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishDocumentEvent(context.Context, *models.DocumentEvent) error {
	return nil
}

func newDocumentEvent(eventType string, h *models.Header, lines []models.Line, reason string) *models.DocumentEvent {
	data := make([]models.LineData, 0, len(lines))
	for _, l := range lines {
		data = append(data, models.LineData{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	return &models.DocumentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		HeaderID:       h.ID,
		DocumentNumber: h.DocumentNumber,
		Kind:           h.Kind,
		Status:         h.Status,
		Total:          h.Total,
		Reason:         reason,
		Lines:          data,
	}
}
