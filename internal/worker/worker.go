package worker

import (
	"context"

	"sales-core/internal/broker"
	"sales-core/internal/models"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

// AuditRecorder stores each processed event id once
type AuditRecorder interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// AuditWorker consumes document lifecycle events and records them idempotently
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	recorder     AuditRecorder
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, recorder AuditRecorder) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		recorder:     recorder,
		logger:       util.GetLogger(),
	}

	for _, eventType := range []string{
		models.EventTypeDocumentFinalized,
		models.EventTypeDocumentVoided,
		models.EventTypeDocumentReactivated,
	} {
		w.eventHandler.On(eventType, w.HandleDocumentEvent)
	}
	return w
}

// HandleDocumentEvent records event unless it was seen before
func (w *AuditWorker) HandleDocumentEvent(ctx context.Context, event *models.DocumentEvent) error {
	ctx, span := util.StartDocumentSpan(ctx, "AuditWorker.HandleDocumentEvent", event.DocumentNumber)
	defer span.End()

	processed, err := w.recorder.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.recorder.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return err
	}

	util.AuditEventsTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Document event recorded",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("document_number", event.DocumentNumber),
		zap.String("status", event.Status))
	return nil
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
