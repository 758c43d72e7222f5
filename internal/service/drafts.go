package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/staging"
	"sales-core/internal/store"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

// ItemRequest is one requested (item, quantity) pair
type ItemRequest struct {
	ItemID   int64 `json:"item_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required"`
}

// Series names the numbering scopes for sales and purchases
type Series struct {
	Sale     string
	Purchase string
}

// DraftService prices carts and stages them for later finalization
type DraftService struct {
	ledger   store.Ledger
	numberer *Numberer
	stage    *staging.Stage
	series   Series
	logger   *zap.Logger
}

// NewDraftService creates a new draft service
func NewDraftService(ledger store.Ledger, numberer *Numberer, stage *staging.Stage, series Series) *DraftService {
	return &DraftService{
		ledger:   ledger,
		numberer: numberer,
		stage:    stage,
		series:   series,
		logger:   util.GetLogger(),
	}
}

// StageSaleDraft prices a sale cart and stages it for actorID, replacing any
// unfinished sale the actor had staged.
func (s *DraftService) StageSaleDraft(ctx context.Context, actorID int64, items []ItemRequest, customer models.Customer, paymentMethod string) (*models.Draft, error) {
	ctx, span := util.StartSpan(ctx, "DraftService.StageSaleDraft")
	defer span.End()

	if paymentMethod != models.PaymentMethodCard && paymentMethod != models.PaymentMethodCash {
		return nil, apperror.NewFieldError("payment_method", "must be CARD or CASH")
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, apperror.NewFieldError("customer.name", "is required")
	}

	return s.stageDraft(ctx, models.KindSale, s.series.Sale, actorID, items, customer, paymentMethod)
}

// StagePurchaseDraft prices an online purchase cart and stages it for actorID.
// Purchases are always paid by card.
func (s *DraftService) StagePurchaseDraft(ctx context.Context, actorID int64, items []ItemRequest, customer models.Customer) (*models.Draft, error) {
	ctx, span := util.StartSpan(ctx, "DraftService.StagePurchaseDraft")
	defer span.End()

	if strings.TrimSpace(customer.DeliveryAddress) == "" {
		return nil, apperror.NewFieldError("customer.delivery_address", "is required")
	}

	return s.stageDraft(ctx, models.KindPurchase, s.series.Purchase, actorID, items, customer, models.PaymentMethodCard)
}

func (s *DraftService) stageDraft(ctx context.Context, kind, scope string, actorID int64, items []ItemRequest, customer models.Customer, paymentMethod string) (*models.Draft, error) {
	if actorID <= 0 {
		return nil, apperror.NewFieldError("actor_id", "is required")
	}

	lines, err := resolveLines(ctx, s.ledger.GetItem, items, true)
	if err != nil {
		return nil, err
	}
	totals := CalculateTotals(pricedQuantities(lines))

	number, err := s.numberer.Next(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate document number: %w", err)
	}

	draft := &models.Draft{
		Kind:           kind,
		ActorID:        actorID,
		DocumentNumber: number,
		Customer:       customer,
		Lines:          lines,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Discount:       totals.Discount,
		Total:          totals.Total,
		PaymentMethod:  paymentMethod,
	}

	if _, err := s.stage.Stage(ctx, draft); err != nil {
		return nil, err
	}

	s.logger.Info("Draft staged",
		zap.String("kind", kind),
		zap.Int64("actor_id", actorID),
		zap.String("document_number", number),
		zap.String("total", draft.Total.StringFixed(2)))
	return draft, nil
}

type itemLookup func(ctx context.Context, id int64) (*models.Item, error)

// resolveLines merges duplicate items and freezes current title and price into
// each line. With precheck, quantities above current stock are rejected early;
// the authoritative check still happens when stock is committed.
func resolveLines(ctx context.Context, lookup itemLookup, items []ItemRequest, precheck bool) ([]models.Line, error) {
	if len(items) == 0 {
		return nil, apperror.NewFieldError("items", "at least one item is required")
	}

	quantities := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, apperror.NewFieldError("quantity",
				fmt.Sprintf("must be at least 1 for item %d", it.ItemID))
		}
		quantities[it.ItemID] += it.Quantity
	}

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]models.Line, 0, len(ids))
	for _, id := range ids {
		item, err := lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !item.Active {
			return nil, apperror.NewFieldError("items", fmt.Sprintf("item %d is not available for sale", id))
		}
		qty := quantities[id]
		if precheck && item.Quantity < qty {
			return nil, &apperror.InsufficientStockError{ItemID: id, Available: item.Quantity, Requested: qty}
		}

		lines = append(lines, models.Line{
			ItemID:    id,
			Title:     item.Title,
			Quantity:  qty,
			UnitPrice: item.Price,
			Subtotal:  LineSubtotal(item.Price, qty),
		})
	}
	return lines, nil
}

func pricedQuantities(lines []models.Line) []PricedQuantity {
	out := make([]PricedQuantity, len(lines))
	for i, l := range lines {
		out[i] = PricedQuantity{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	return out
}
