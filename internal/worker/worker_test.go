package worker

import (
	"context"
	"testing"
	"time"

	"sales-core/internal/models"
	"sales-core/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDocumentEventIsIdempotent(t *testing.T) {
	ledger := memory.New()
	w := NewAuditWorker(nil, ledger)
	ctx := context.Background()

	event := &models.DocumentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-42",
			EventType: models.EventTypeDocumentFinalized,
			Timestamp: time.Now(),
		},
		DocumentNumber: "01-0000000042",
		Status:         models.StatusFinalized,
	}

	require.NoError(t, w.HandleDocumentEvent(ctx, event))
	require.NoError(t, w.HandleDocumentEvent(ctx, event))

	processed, err := ledger.IsEventProcessed(ctx, "evt-42")
	require.NoError(t, err)
	assert.True(t, processed)
}
