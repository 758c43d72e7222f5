// Package memory is an in-process ledger used for local development and tests.
// A single mutex is held for the whole of each transaction, which gives every
// transaction exclusive access and makes row locks implicit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/store"

	"github.com/shopspring/decimal"
)

type state struct {
	items       map[int64]models.Item
	headers     map[int64]models.Header
	numbers     map[string]int64
	lines       map[int64][]models.Line
	payments    map[int64][]models.Payment
	paymentRefs map[string]struct{}
	counters    map[string]int64
	events      map[string]models.ProcessedEvent
	nextID      int64
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{
		st: &state{
			items:       make(map[int64]models.Item),
			headers:     make(map[int64]models.Header),
			numbers:     make(map[string]int64),
			lines:       make(map[int64][]models.Line),
			payments:    make(map[int64][]models.Payment),
			paymentRefs: make(map[string]struct{}),
			counters:    make(map[string]int64),
			events:      make(map[string]models.ProcessedEvent),
		},
		now: time.Now,
	}
}

func (s *state) clone() *state {
	c := &state{
		items:       make(map[int64]models.Item, len(s.items)),
		headers:     make(map[int64]models.Header, len(s.headers)),
		numbers:     make(map[string]int64, len(s.numbers)),
		lines:       make(map[int64][]models.Line, len(s.lines)),
		payments:    make(map[int64][]models.Payment, len(s.payments)),
		paymentRefs: make(map[string]struct{}, len(s.paymentRefs)),
		counters:    make(map[string]int64, len(s.counters)),
		events:      make(map[string]models.ProcessedEvent, len(s.events)),
		nextID:      s.nextID,
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.headers {
		c.headers[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]models.Line(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = append([]models.Payment(nil), v...)
	}
	for k := range s.paymentRefs {
		c.paymentRefs[k] = struct{}{}
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// AddItem registers a catalog item and returns it with its assigned id
func (s *Store) AddItem(item models.Item) models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.st.id()
	item.UpdatedAt = s.now()
	s.st.items[item.ID] = item
	return item
}

// SetItemPrice changes an item's catalog price
func (s *Store) SetItemPrice(id int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.st.items[id]
	if !ok {
		return
	}
	item.Price = price
	item.UpdatedAt = s.now()
	s.st.items[id] = item
}

// DeleteItem removes an item from the catalog
func (s *Store) DeleteItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.items, id)
}

// WithinTx runs fn with exclusive access; on error every write made by fn is discarded
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&memTx{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.st}).GetItem(ctx, id)
}

func (s *Store) GetHeaderByNumber(ctx context.Context, number string) (*models.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.st}).LockHeaderByNumber(ctx, number)
}

func (s *Store) ListLines(ctx context.Context, headerID int64) ([]models.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{st: s.st}).ListLines(ctx, headerID)
}

func (s *Store) ListPayments(ctx context.Context, headerID int64) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Payment(nil), s.st.payments[headerID]...), nil
}

// CountHeaders returns how many documents are persisted
func (s *Store) CountHeaders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.headers)
}

// CountPayments returns how many payments are persisted
func (s *Store) CountPayments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.paymentRefs)
}

func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.events[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.events[eventID]; !ok {
		s.st.events[eventID] = models.ProcessedEvent{EventID: eventID, EventType: eventType, ProcessedAt: s.now()}
	}
	return nil
}

type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) GetItem(_ context.Context, id int64) (*models.Item, error) {
	item, ok := t.st.items[id]
	if !ok {
		return nil, apperror.NewNotFoundError("item", id)
	}
	return &item, nil
}

func (t *memTx) LockItemForUpdate(ctx context.Context, id int64) (*models.Item, error) {
	return t.GetItem(ctx, id)
}

func (t *memTx) SetItemQuantity(_ context.Context, id int64, quantity int) error {
	item, ok := t.st.items[id]
	if !ok {
		return apperror.NewNotFoundError("item", id)
	}
	if quantity < 0 {
		return fmt.Errorf("item %d quantity would become %d", id, quantity)
	}
	item.Quantity = quantity
	item.UpdatedAt = t.now()
	t.st.items[id] = item
	return nil
}

func (t *memTx) IncrementCounter(_ context.Context, scope string) (int64, bool, error) {
	value, ok := t.st.counters[scope]
	if !ok {
		return 0, false, nil
	}
	value++
	t.st.counters[scope] = value
	return value, true, nil
}

func (t *memTx) SeedCounter(_ context.Context, scope string, value int64) (int64, error) {
	if current, ok := t.st.counters[scope]; ok {
		value = current + 1
	}
	t.st.counters[scope] = value
	return value, nil
}

func (t *memTx) LastDocumentNumber(_ context.Context, prefix string) (string, error) {
	var numbers []string
	for number := range t.st.numbers {
		if strings.HasPrefix(number, prefix+"-") {
			numbers = append(numbers, number)
		}
	}
	if len(numbers) == 0 {
		return "", nil
	}
	sort.Strings(numbers)
	return numbers[len(numbers)-1], nil
}

func (t *memTx) DocumentNumberExists(_ context.Context, number string) (bool, error) {
	_, ok := t.st.numbers[number]
	return ok, nil
}

func (t *memTx) InsertHeader(_ context.Context, h *models.Header) error {
	if _, ok := t.st.numbers[h.DocumentNumber]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateDocumentNumber, h.DocumentNumber)
	}
	h.ID = t.st.id()
	h.CreatedAt = t.now()
	h.UpdatedAt = h.CreatedAt
	t.st.headers[h.ID] = *h
	t.st.numbers[h.DocumentNumber] = h.ID
	return nil
}

func (t *memTx) InsertLines(_ context.Context, headerID int64, lines []models.Line) error {
	if _, ok := t.st.headers[headerID]; !ok {
		return apperror.NewNotFoundError("document", headerID)
	}
	for i := range lines {
		if _, ok := t.st.items[lines[i].ItemID]; !ok {
			return apperror.NewNotFoundError("item", lines[i].ItemID)
		}
		lines[i].ID = t.st.id()
		lines[i].HeaderID = headerID
		t.st.lines[headerID] = append(t.st.lines[headerID], lines[i])
	}
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	if _, ok := t.st.paymentRefs[p.TransactionRef]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicatePaymentReference, p.TransactionRef)
	}
	if _, ok := t.st.headers[p.HeaderID]; !ok {
		return apperror.NewNotFoundError("document", p.HeaderID)
	}
	p.ID = t.st.id()
	p.CreatedAt = t.now()
	t.st.payments[p.HeaderID] = append(t.st.payments[p.HeaderID], *p)
	t.st.paymentRefs[p.TransactionRef] = struct{}{}
	return nil
}

func (t *memTx) LockHeaderByNumber(ctx context.Context, number string) (*models.Header, error) {
	id, ok := t.st.numbers[number]
	if !ok {
		return nil, apperror.NewNotFoundError("document", number)
	}
	return t.LockHeaderByID(ctx, id)
}

func (t *memTx) LockHeaderByID(_ context.Context, id int64) (*models.Header, error) {
	h, ok := t.st.headers[id]
	if !ok {
		return nil, apperror.NewNotFoundError("document", id)
	}
	return &h, nil
}

func (t *memTx) ListLines(_ context.Context, headerID int64) ([]models.Line, error) {
	return append([]models.Line(nil), t.st.lines[headerID]...), nil
}

func (t *memTx) UpdateHeaderStatus(_ context.Context, id int64, status string, reason *string, voidedAt *time.Time) error {
	h, ok := t.st.headers[id]
	if !ok {
		return apperror.NewNotFoundError("document", id)
	}
	h.Status = status
	h.VoidReason = reason
	h.VoidedAt = voidedAt
	h.UpdatedAt = t.now()
	t.st.headers[id] = h
	return nil
}
