package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeStagedSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 10)

	draft, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 4}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)

	header, err := f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	require.NoError(t, err)

	assert.Equal(t, draft.DocumentNumber, header.DocumentNumber)
	assert.Equal(t, models.StatusFinalized, header.Status)
	assert.Equal(t, models.KindSale, header.Kind)
	assert.Equal(t, "113.00", header.Total.StringFixed(2))
	assert.Equal(t, 6, f.quantity(t, a.ID))

	doc, err := f.documents.GetDocument(ctx, header.DocumentNumber)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 4, doc.Lines[0].Quantity)
	require.Len(t, doc.Payments, 1)
	assert.Equal(t, "****-****-****-1111", doc.Payments[0].InstrumentRef)
	assert.Equal(t, "113.00", doc.Payments[0].Amount.StringFixed(2))

	assert.Equal(t, []string{models.EventTypeDocumentFinalized}, f.publisher.types())

	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	assert.ErrorIs(t, err, apperror.ErrExpiredStaging)
	assert.Equal(t, 1, f.ledger.CountHeaders())
}

func TestFinalizeStagedPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 10)

	customer := walkIn
	customer.DeliveryAddress = "Av. Central 12"
	_, err := f.drafts.StagePurchaseDraft(ctx, 9, []ItemRequest{{ItemID: a.ID, Quantity: 2}}, customer)
	require.NoError(t, err)

	// a sale slot for the same actor is independent
	_, err = f.finalizer.FinalizeStagedSale(ctx, 9, validCard())
	assert.ErrorIs(t, err, apperror.ErrExpiredStaging)

	header, err := f.finalizer.FinalizeStagedPurchase(ctx, 9, validCard())
	require.NoError(t, err)
	assert.Equal(t, models.KindPurchase, header.Kind)
	assert.Equal(t, "ORD-0000000001", header.DocumentNumber)
	assert.Equal(t, "Av. Central 12", header.DeliveryAddress)
	assert.Equal(t, 8, f.quantity(t, a.ID))
}

func TestFinalizeWithCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 10)

	_, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 4}}, walkIn, models.PaymentMethodCash)
	require.NoError(t, err)

	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, PaymentInstrument{AmountReceived: d("100.00")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Zero(t, f.ledger.CountHeaders())
	assert.Equal(t, 10, f.quantity(t, a.ID))

	// the failed attempt put the draft back
	header, err := f.finalizer.FinalizeStagedSale(ctx, 7, PaymentInstrument{AmountReceived: d("120.00"), Notes: "paid in bills"})
	require.NoError(t, err)

	doc, err := f.documents.GetDocument(ctx, header.DocumentNumber)
	require.NoError(t, err)
	require.Len(t, doc.Payments, 1)
	assert.Equal(t, models.PaymentMethodCash, doc.Payments[0].Method)
	assert.Equal(t, "120.00", doc.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, "OBS: paid in bills", doc.Payments[0].InstrumentRef)
}

func TestFinalizeInsufficientStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 5)
	b := f.addItem("Emma", "10.00", 5)

	_, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 2}, {ItemID: b.ID, Quantity: 4}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)

	// someone else takes most of b before the first checkout completes
	_, err = f.drafts.StageSaleDraft(ctx, 8, []ItemRequest{{ItemID: b.ID, Quantity: 3}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)
	_, err = f.finalizer.FinalizeStagedSale(ctx, 8, validCard())
	require.NoError(t, err)

	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	var stockErr *apperror.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ItemID)
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 5, f.quantity(t, a.ID))
	assert.Equal(t, 2, f.quantity(t, b.ID))
	assert.Equal(t, 1, f.ledger.CountHeaders())
	assert.Equal(t, 1, f.ledger.CountPayments())

	_, err = f.stage.Peek(ctx, 7, models.KindSale)
	assert.NoError(t, err, "draft should be available for a retry")
}

func TestConcurrentCheckoutsOnScarceItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.addItem("Dune", "25.00", 5)

	for _, actor := range []int64{1, 2} {
		_, err := f.drafts.StageSaleDraft(ctx, actor, []ItemRequest{{ItemID: x.ID, Quantity: 3}}, walkIn, models.PaymentMethodCard)
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, actor := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, actor int64) {
			defer wg.Done()
			_, errs[i] = f.finalizer.FinalizeStagedSale(ctx, actor, validCard())
		}(i, actor)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *apperror.InsufficientStockError
		require.True(t, errors.As(err, &stockErr), "unexpected error: %v", err)
		assert.Equal(t, x.ID, stockErr.ItemID)
		assert.Equal(t, 2, stockErr.Available)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, f.quantity(t, x.ID))
}

func TestFinalizeRejectsDuplicateDocumentNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 5)

	draft, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 1}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)

	err = f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertHeader(ctx, &models.Header{Kind: models.KindSale, DocumentNumber: draft.DocumentNumber, Status: models.StatusFinalized})
	})
	require.NoError(t, err)

	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	assert.ErrorIs(t, err, apperror.ErrDuplicateDocumentNumber)
	assert.True(t, apperror.IsKind(err, apperror.KindSystem))
	assert.Equal(t, 5, f.quantity(t, a.ID))

	_, err = f.stage.Peek(ctx, 7, models.KindSale)
	assert.ErrorIs(t, err, apperror.ErrExpiredStaging)
}

func TestDirectSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 5)
	b := f.addItem("Emma", "10.00", 5)

	header, err := f.finalizer.OpenDirectSale(ctx, 3, []ItemRequest{{ItemID: a.ID, Quantity: 2}, {ItemID: b.ID, Quantity: 1}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, header.Status)
	assert.Equal(t, "67.80", header.Total.StringFixed(2))
	assert.Equal(t, 5, f.quantity(t, a.ID))

	_, err = f.finalizer.FinalizeDirectSale(ctx, header.ID, PaymentInstrument{CardNumber: "123"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	finalized, err := f.finalizer.FinalizeDirectSale(ctx, header.ID, validCard())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, finalized.Status)
	assert.Equal(t, header.DocumentNumber, finalized.DocumentNumber)
	assert.Equal(t, 3, f.quantity(t, a.ID))
	assert.Equal(t, 4, f.quantity(t, b.ID))
	assert.Equal(t, 1, f.ledger.CountHeaders())
	assert.Equal(t, 1, f.ledger.CountPayments())

	_, err = f.finalizer.FinalizeDirectSale(ctx, header.ID, validCard())
	assert.ErrorIs(t, err, apperror.ErrNotOpen)
	assert.Equal(t, 3, f.quantity(t, a.ID))

	_, err = f.finalizer.FinalizeDirectSale(ctx, 9999, validCard())
	assert.True(t, apperror.IsNotFound(err))
}

func TestDirectSaleInsufficientStockStaysOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 1)

	header, err := f.finalizer.OpenDirectSale(ctx, 3, []ItemRequest{{ItemID: a.ID, Quantity: 2}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)

	_, err = f.finalizer.FinalizeDirectSale(ctx, header.ID, validCard())
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientStock))

	doc, err := f.documents.GetDocument(ctx, header.DocumentNumber)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, doc.Header.Status)
	assert.Empty(t, doc.Payments)
	assert.Equal(t, 1, f.quantity(t, a.ID))
}

func TestFailedFinalizeDoesNotRestoreSupersededDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 10)

	_, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 5}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)
	inFlight, err := f.stage.Consume(ctx, 7, models.KindSale)
	require.NoError(t, err)

	// the actor starts over while the first attempt is still running
	_, err = f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 1}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)
	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	require.NoError(t, err)
	require.Equal(t, 9, f.quantity(t, a.ID))

	f.finalizer.restoreDraft(ctx, inFlight, errors.New("payment gateway timeout"))

	_, err = f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	assert.ErrorIs(t, err, apperror.ErrExpiredStaging)
	assert.Equal(t, 9, f.quantity(t, a.ID))
	assert.Equal(t, 1, f.ledger.CountHeaders())
}

func TestFinalizeKeepsStagedPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "25.00", 10)

	_, err := f.drafts.StageSaleDraft(ctx, 7, []ItemRequest{{ItemID: a.ID, Quantity: 4}}, walkIn, models.PaymentMethodCard)
	require.NoError(t, err)

	f.ledger.SetItemPrice(a.ID, d("40.00"))

	header, err := f.finalizer.FinalizeStagedSale(ctx, 7, validCard())
	require.NoError(t, err)
	assert.Equal(t, "100.00", header.Subtotal.StringFixed(2))
	assert.Equal(t, "113.00", header.Total.StringFixed(2))

	doc, err := f.documents.GetDocument(ctx, header.DocumentNumber)
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "25.00", doc.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "100.00", doc.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "113.00", doc.Payments[0].Amount.StringFixed(2))
}
