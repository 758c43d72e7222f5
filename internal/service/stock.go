package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

// StockEngine is the only writer of item quantities. It works inside the
// caller's transaction so the stock change commits or rolls back together with
// the document writes.
type StockEngine struct {
	logger *zap.Logger
}

// NewStockEngine creates a new stock engine
func NewStockEngine() *StockEngine {
	return &StockEngine{logger: util.GetLogger()}
}

type stockDemand struct {
	itemID   int64
	quantity int
}

// aggregate merges lines per item and orders them by ascending item id, the
// global lock order shared by every caller.
func aggregate(lines []models.Line) ([]stockDemand, error) {
	if len(lines) == 0 {
		return nil, apperror.NewFieldError("lines", "at least one line is required")
	}

	totals := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, apperror.NewFieldError("quantity",
				fmt.Sprintf("must be at least 1 for item %d", l.ItemID))
		}
		totals[l.ItemID] += l.Quantity
	}

	demands := make([]stockDemand, 0, len(totals))
	for id, qty := range totals {
		demands = append(demands, stockDemand{itemID: id, quantity: qty})
	}
	sort.Slice(demands, func(i, j int) bool { return demands[i].itemID < demands[j].itemID })
	return demands, nil
}

// ReserveAndCommit decrements stock for every line or for none. All items are
// locked before any is checked, and nothing is written unless every check passes.
func (e *StockEngine) ReserveAndCommit(ctx context.Context, tx store.Tx, lines []models.Line) error {
	ctx, span := util.StartSpan(ctx, "StockEngine.ReserveAndCommit")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockCommitLatency.Observe(time.Since(start).Seconds())
	}()

	demands, err := aggregate(lines)
	if err != nil {
		return err
	}

	locked := make([]*models.Item, len(demands))
	for i, dm := range demands {
		item, err := tx.LockItemForUpdate(ctx, dm.itemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				util.StockRejectionsTotal.WithLabelValues("item_not_found").Inc()
			}
			return err
		}
		locked[i] = item
	}

	for i, dm := range demands {
		if locked[i].Quantity < dm.quantity {
			util.StockRejectionsTotal.WithLabelValues("insufficient_stock").Inc()
			return &apperror.InsufficientStockError{
				ItemID:    dm.itemID,
				Available: locked[i].Quantity,
				Requested: dm.quantity,
			}
		}
	}

	for i, dm := range demands {
		if err := tx.SetItemQuantity(ctx, dm.itemID, locked[i].Quantity-dm.quantity); err != nil {
			return fmt.Errorf("failed to commit stock: %w", err)
		}
	}

	return nil
}

// Restore adds the line quantities back. A missing item means lines reference a
// deleted item, which is reported as an inconsistency rather than skipped.
func (e *StockEngine) Restore(ctx context.Context, tx store.Tx, lines []models.Line) error {
	ctx, span := util.StartSpan(ctx, "StockEngine.Restore")
	defer span.End()

	demands, err := aggregate(lines)
	if err != nil {
		return err
	}

	for _, dm := range demands {
		item, err := tx.LockItemForUpdate(ctx, dm.itemID)
		if apperror.IsNotFound(err) {
			e.logger.Error("Stock restore hit a missing item",
				zap.Int64("item_id", dm.itemID),
				zap.Int("quantity", dm.quantity))
			return fmt.Errorf("%w: %v", apperror.NewInconsistencyError(
				fmt.Sprintf("cannot restore stock, item %d no longer exists", dm.itemID)), err)
		}
		if err != nil {
			return err
		}

		if err := tx.SetItemQuantity(ctx, dm.itemID, item.Quantity+dm.quantity); err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	return nil
}
