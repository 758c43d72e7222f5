package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

// InactivationEngine voids finalized sales and reactivates voided ones. The
// stock movement and status flip of each call share one transaction.
type InactivationEngine struct {
	ledger    store.Ledger
	stock     *StockEngine
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewInactivationEngine creates a new inactivation engine
func NewInactivationEngine(ledger store.Ledger, stock *StockEngine, publisher EventPublisher) *InactivationEngine {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &InactivationEngine{
		ledger:    ledger,
		stock:     stock,
		publisher: publisher,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// InactivateSale voids a finalized sale, returning its quantities to stock
func (e *InactivationEngine) InactivateSale(ctx context.Context, documentNumber, reason string) (*models.Header, error) {
	ctx, span := util.StartDocumentSpan(ctx, "InactivationEngine.InactivateSale", documentNumber)
	defer span.End()

	// A blank reason is stored as no reason.
	var voidReason *string
	if reason = strings.TrimSpace(reason); reason != "" {
		voidReason = &reason
	}

	var (
		header *models.Header
		lines  []models.Line
	)
	err := e.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		header, err = lockSale(ctx, tx, documentNumber)
		if err != nil {
			return err
		}

		switch header.Status {
		case models.StatusVoided:
			return fmt.Errorf("%w: %s", apperror.ErrAlreadyVoided, documentNumber)
		case models.StatusFinalized:
		default:
			return fmt.Errorf("%w: %s is %s", apperror.ErrNotFinalized, documentNumber, header.Status)
		}

		lines, err = tx.ListLines(ctx, header.ID)
		if err != nil {
			return err
		}
		if err := e.stock.Restore(ctx, tx, lines); err != nil {
			return err
		}

		voidedAt := e.now()
		if err := tx.UpdateHeaderStatus(ctx, header.ID, models.StatusVoided, voidReason, &voidedAt); err != nil {
			return err
		}
		header.Status = models.StatusVoided
		header.VoidReason = voidReason
		header.VoidedAt = &voidedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.DocumentsVoidedTotal.Inc()
	e.publish(ctx, newDocumentEvent(models.EventTypeDocumentVoided, header, lines, reason))

	e.logger.Info("Sale voided",
		zap.String("document_number", documentNumber),
		zap.String("reason", reason),
		zap.Int("lines", len(lines)))
	return header, nil
}

// ReactivateSale takes the stock of a voided sale again and marks it finalized.
// It fails with InsufficientStock if any item can no longer cover its line.
func (e *InactivationEngine) ReactivateSale(ctx context.Context, documentNumber string) (*models.Header, error) {
	ctx, span := util.StartDocumentSpan(ctx, "InactivationEngine.ReactivateSale", documentNumber)
	defer span.End()

	var (
		header *models.Header
		lines  []models.Line
	)
	err := e.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		header, err = lockSale(ctx, tx, documentNumber)
		if err != nil {
			return err
		}
		if header.Status != models.StatusVoided {
			return fmt.Errorf("%w: %s is %s", apperror.ErrNotVoided, documentNumber, header.Status)
		}

		lines, err = tx.ListLines(ctx, header.ID)
		if err != nil {
			return err
		}
		if err := e.stock.ReserveAndCommit(ctx, tx, lines); err != nil {
			return err
		}

		if err := tx.UpdateHeaderStatus(ctx, header.ID, models.StatusFinalized, nil, nil); err != nil {
			return err
		}
		header.Status = models.StatusFinalized
		header.VoidReason = nil
		header.VoidedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.DocumentsReactivatedTotal.Inc()
	e.publish(ctx, newDocumentEvent(models.EventTypeDocumentReactivated, header, lines, ""))

	e.logger.Info("Sale reactivated", zap.String("document_number", documentNumber))
	return header, nil
}

func lockSale(ctx context.Context, tx store.Tx, documentNumber string) (*models.Header, error) {
	header, err := tx.LockHeaderByNumber(ctx, documentNumber)
	if err != nil {
		return nil, err
	}
	if header.Kind != models.KindSale {
		return nil, apperror.NewNotFoundError("sale", documentNumber)
	}
	return header, nil
}

func (e *InactivationEngine) publish(ctx context.Context, event *models.DocumentEvent) {
	if err := e.publisher.PublishDocumentEvent(ctx, event); err != nil {
		e.logger.Error("Failed to publish document event",
			zap.String("event_type", event.EventType),
			zap.String("document_number", event.DocumentNumber),
			zap.Error(err))
	}
}
