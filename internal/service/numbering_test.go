package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStartsAtOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.numberer.Next(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "01-0000000001", first)

	second, err := f.numberer.Next(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "01-0000000002", second)

	other, err := f.numberer.Next(ctx, "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-0000000001", other)
}

func TestNextContinuesAfterExistingDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertHeader(ctx, &models.Header{Kind: models.KindSale, DocumentNumber: "01-0000000041"})
	})
	require.NoError(t, err)

	next, err := f.numberer.Next(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "01-0000000042", next)
}

func TestNextFailsOnCorruptLastNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ledger.WithinTx(ctx, func(tx store.Tx) error {
		return tx.InsertHeader(ctx, &models.Header{Kind: models.KindSale, DocumentNumber: "01-00000000XX"})
	})
	require.NoError(t, err)

	_, err = f.numberer.Next(ctx, "01")
	assert.ErrorIs(t, err, apperror.ErrCorruptSequence)
	assert.True(t, apperror.IsKind(err, apperror.KindSystem))
}

func TestNextRejectsBadScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.numberer.Next(context.Background(), "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	for _, scope := range []string{"A-B", "0_", "0%", "01 "} {
		_, err = f.numberer.Next(context.Background(), scope)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation), scope)
	}
}

func TestConcurrentNextIsDistinctAndContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number, err := f.numberer.Next(ctx, "01")
			assert.NoError(t, err)
			numbers[i] = number
		}(i)
	}
	wg.Wait()

	sort.Strings(numbers)
	for i, number := range numbers {
		assert.Equal(t, FormatDocumentNumber("01", int64(i+1)), number)
	}
}
