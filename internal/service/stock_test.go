package service

import (
	"context"
	"errors"
	"testing"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAndCommitDecrementsAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 5)
	b := f.addItem("Emma", "7.99", 4)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return f.stock.ReserveAndCommit(ctx, tx, []models.Line{
			{ItemID: b.ID, Quantity: 2},
			{ItemID: a.ID, Quantity: 3},
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.quantity(t, a.ID))
	assert.Equal(t, 2, f.quantity(t, b.ID))
}

func TestReserveAndCommitIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 5)
	b := f.addItem("Emma", "7.99", 1)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return f.stock.ReserveAndCommit(ctx, tx, []models.Line{
			{ItemID: a.ID, Quantity: 3},
			{ItemID: b.ID, Quantity: 2},
		})
	})

	var stockErr *apperror.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ItemID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)

	assert.Equal(t, 5, f.quantity(t, a.ID))
	assert.Equal(t, 1, f.quantity(t, b.ID))
}

func TestReserveAndCommitMergesRepeatedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 3)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return f.stock.ReserveAndCommit(ctx, tx, []models.Line{
			{ItemID: a.ID, Quantity: 2},
			{ItemID: a.ID, Quantity: 2},
		})
	})

	var stockErr *apperror.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, f.quantity(t, a.ID))
}

func TestReserveAndCommitRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 3)

	tests := []struct {
		name  string
		lines []models.Line
		kind  apperror.Kind
	}{
		{"empty", nil, apperror.KindValidation},
		{"zero quantity", []models.Line{{ItemID: a.ID, Quantity: 0}}, apperror.KindValidation},
		{"unknown item", []models.Line{{ItemID: a.ID, Quantity: 1}, {ItemID: 999, Quantity: 1}}, apperror.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
				return f.stock.ReserveAndCommit(ctx, tx, tt.lines)
			})
			assert.True(t, apperror.IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, 3, f.quantity(t, a.ID))
		})
	}
}

func TestRestoreAddsQuantitiesBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 0)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return f.stock.Restore(ctx, tx, []models.Line{{ItemID: a.ID, Quantity: 3}})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.quantity(t, a.ID))
}

func TestRestoreOfDeletedItemIsInconsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addItem("Dune", "12.50", 1)
	b := f.addItem("Emma", "7.99", 1)
	f.ledger.DeleteItem(b.ID)

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return f.stock.Restore(ctx, tx, []models.Line{
			{ItemID: a.ID, Quantity: 1},
			{ItemID: b.ID, Quantity: 1},
		})
	})
	assert.True(t, apperror.IsKind(err, apperror.KindSystem))
	assert.Equal(t, 1, f.quantity(t, a.ID))
}
