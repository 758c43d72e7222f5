package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/staging"
	"sales-core/internal/store"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

// Finalizer turns drafts and open sales into finalized documents. Stock
// decrement and the header, line and payment writes share one transaction.
type Finalizer struct {
	ledger    store.Ledger
	stage     *staging.Stage
	stock     *StockEngine
	numberer  *Numberer
	publisher EventPublisher
	saleScope string
	now       func() time.Time
	logger    *zap.Logger
}

// NewFinalizer creates a new finalizer
func NewFinalizer(
	ledger store.Ledger,
	stage *staging.Stage,
	stock *StockEngine,
	numberer *Numberer,
	publisher EventPublisher,
	saleScope string,
) *Finalizer {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Finalizer{
		ledger:    ledger,
		stage:     stage,
		stock:     stock,
		numberer:  numberer,
		publisher: publisher,
		saleScope: saleScope,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// WithClock overrides the time source used for card expiry checks
func (f *Finalizer) WithClock(now func() time.Time) *Finalizer {
	f.now = now
	return f
}

// FinalizeStagedSale finalizes the sale staged by actorID
func (f *Finalizer) FinalizeStagedSale(ctx context.Context, actorID int64, instrument PaymentInstrument) (*models.Header, error) {
	ctx, span := util.StartSpan(ctx, "Finalizer.FinalizeStagedSale")
	defer span.End()

	return f.finalizeStaged(ctx, actorID, models.KindSale, instrument)
}

// FinalizeStagedPurchase finalizes the purchase staged by actorID
func (f *Finalizer) FinalizeStagedPurchase(ctx context.Context, actorID int64, instrument PaymentInstrument) (*models.Header, error) {
	ctx, span := util.StartSpan(ctx, "Finalizer.FinalizeStagedPurchase")
	defer span.End()

	return f.finalizeStaged(ctx, actorID, models.KindPurchase, instrument)
}

func (f *Finalizer) finalizeStaged(ctx context.Context, actorID int64, kind string, instrument PaymentInstrument) (*models.Header, error) {
	draft, err := f.stage.Consume(ctx, actorID, kind)
	if err != nil {
		if errors.Is(err, apperror.ErrExpiredStaging) {
			util.DocumentsFailedTotal.WithLabelValues("expired_staging").Inc()
		}
		return nil, err
	}

	header, lines, err := f.persistDraft(ctx, draft, instrument)
	if err != nil {
		f.recordFailure(err)
		f.restoreDraft(ctx, draft, err)
		return nil, err
	}

	util.DocumentsFinalizedTotal.WithLabelValues(kind, "staged").Inc()
	util.PaymentsRecordedTotal.WithLabelValues(header.PaymentMethod).Inc()
	f.publish(ctx, newDocumentEvent(models.EventTypeDocumentFinalized, header, lines, ""))

	f.logger.Info("Document finalized",
		zap.String("kind", kind),
		zap.String("document_number", header.DocumentNumber),
		zap.Int64("actor_id", actorID),
		zap.String("total", header.Total.StringFixed(2)))
	return header, nil
}

func (f *Finalizer) persistDraft(ctx context.Context, draft *models.Draft, instrument PaymentInstrument) (*models.Header, []models.Line, error) {
	if err := ValidateInstrument(draft.PaymentMethod, instrument, draft.Total, f.now()); err != nil {
		return nil, nil, err
	}

	header := &models.Header{
		Kind:           draft.Kind,
		DocumentNumber: draft.DocumentNumber,
		ActorID:        draft.ActorID,
		Customer:       draft.Customer,
		Subtotal:       draft.Subtotal,
		Tax:            draft.Tax,
		Discount:       draft.Discount,
		Total:          draft.Total,
		PaymentMethod:  draft.PaymentMethod,
		Status:         models.StatusFinalized,
	}
	lines := append([]models.Line(nil), draft.Lines...)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		exists, err := tx.DocumentNumberExists(ctx, draft.DocumentNumber)
		if err != nil {
			return fmt.Errorf("failed to check document number: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", apperror.ErrDuplicateDocumentNumber, draft.DocumentNumber)
		}

		if err := f.stock.ReserveAndCommit(ctx, tx, lines); err != nil {
			return err
		}
		if err := tx.InsertHeader(ctx, header); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, header.ID, lines); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, newPayment(header.ID, draft.PaymentMethod, instrument, draft.Total))
	})
	if err != nil {
		return nil, nil, err
	}
	return header, lines, nil
}

// restoreDraft gives the actor a retry after a failed attempt. A duplicate
// number means the draft may already be on file, so it is not put back.
func (f *Finalizer) restoreDraft(ctx context.Context, draft *models.Draft, cause error) {
	if errors.Is(cause, apperror.ErrDuplicateDocumentNumber) {
		f.logger.Error("Staged draft collides with an existing document",
			zap.String("document_number", draft.DocumentNumber),
			zap.Error(cause))
		return
	}

	restored, err := f.stage.Restore(ctx, draft)
	if err != nil {
		f.logger.Warn("Failed to restore draft after failed finalization",
			zap.String("document_number", draft.DocumentNumber),
			zap.Error(err))
		return
	}
	f.logger.Info("Finalization failed",
		zap.String("document_number", draft.DocumentNumber),
		zap.Bool("draft_restored", restored),
		zap.Error(cause))
}

// OpenDirectSale records a sale with status OPEN and no stock effect. It is
// finalized later through FinalizeDirectSale.
func (f *Finalizer) OpenDirectSale(ctx context.Context, actorID int64, items []ItemRequest, customer models.Customer, paymentMethod string) (*models.Header, error) {
	ctx, span := util.StartSpan(ctx, "Finalizer.OpenDirectSale")
	defer span.End()

	if actorID <= 0 {
		return nil, apperror.NewFieldError("actor_id", "is required")
	}
	if paymentMethod != models.PaymentMethodCard && paymentMethod != models.PaymentMethodCash {
		return nil, apperror.NewFieldError("payment_method", "must be CARD or CASH")
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, apperror.NewFieldError("customer.name", "is required")
	}

	var header *models.Header
	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		lines, err := resolveLines(ctx, tx.GetItem, items, false)
		if err != nil {
			return err
		}
		totals := CalculateTotals(pricedQuantities(lines))

		number, err := f.numberer.NextTx(ctx, tx, f.saleScope)
		if err != nil {
			return err
		}

		header = &models.Header{
			Kind:           models.KindSale,
			DocumentNumber: number,
			ActorID:        actorID,
			Customer:       customer,
			Subtotal:       totals.Subtotal,
			Tax:            totals.Tax,
			Discount:       totals.Discount,
			Total:          totals.Total,
			PaymentMethod:  paymentMethod,
			Status:         models.StatusOpen,
		}
		if err := tx.InsertHeader(ctx, header); err != nil {
			return err
		}
		return tx.InsertLines(ctx, header.ID, lines)
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("Direct sale opened",
		zap.Int64("header_id", header.ID),
		zap.String("document_number", header.DocumentNumber))
	return header, nil
}

// FinalizeDirectSale commits stock and payment for an OPEN sale and advances it to FINALIZED
func (f *Finalizer) FinalizeDirectSale(ctx context.Context, headerID int64, instrument PaymentInstrument) (*models.Header, error) {
	ctx, span := util.StartSpan(ctx, "Finalizer.FinalizeDirectSale")
	defer span.End()

	var (
		header *models.Header
		lines  []models.Line
	)
	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		header, err = tx.LockHeaderByID(ctx, headerID)
		if err != nil {
			return err
		}
		if header.Kind != models.KindSale {
			return apperror.NewNotFoundError("sale", headerID)
		}
		if header.Status != models.StatusOpen {
			return fmt.Errorf("%w: %s is %s", apperror.ErrNotOpen, header.DocumentNumber, header.Status)
		}
		if err := ValidateInstrument(header.PaymentMethod, instrument, header.Total, f.now()); err != nil {
			return err
		}

		lines, err = tx.ListLines(ctx, header.ID)
		if err != nil {
			return err
		}
		if err := f.stock.ReserveAndCommit(ctx, tx, lines); err != nil {
			return err
		}
		if err := tx.UpdateHeaderStatus(ctx, header.ID, models.StatusFinalized, nil, nil); err != nil {
			return err
		}
		header.Status = models.StatusFinalized
		return tx.InsertPayment(ctx, newPayment(header.ID, header.PaymentMethod, instrument, header.Total))
	})
	if err != nil {
		f.recordFailure(err)
		return nil, err
	}

	util.DocumentsFinalizedTotal.WithLabelValues(models.KindSale, "direct").Inc()
	util.PaymentsRecordedTotal.WithLabelValues(header.PaymentMethod).Inc()
	f.publish(ctx, newDocumentEvent(models.EventTypeDocumentFinalized, header, lines, ""))

	f.logger.Info("Direct sale finalized",
		zap.Int64("header_id", header.ID),
		zap.String("document_number", header.DocumentNumber))
	return header, nil
}

func (f *Finalizer) recordFailure(err error) {
	reason := "system"
	switch {
	case apperror.IsKind(err, apperror.KindValidation):
		reason = "validation"
	case apperror.IsKind(err, apperror.KindInsufficientStock):
		reason = "insufficient_stock"
	case apperror.IsKind(err, apperror.KindNotFound):
		reason = "not_found"
	case apperror.IsKind(err, apperror.KindConflict):
		reason = "conflict"
	}
	util.DocumentsFailedTotal.WithLabelValues(reason).Inc()
}

func (f *Finalizer) publish(ctx context.Context, event *models.DocumentEvent) {
	if err := f.publisher.PublishDocumentEvent(ctx, event); err != nil {
		f.logger.Error("Failed to publish document event",
			zap.String("event_type", event.EventType),
			zap.String("document_number", event.DocumentNumber),
			zap.Error(err))
	}
}
