package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
)

const headerColumns = `id, kind, document_number, actor_id, customer_name, customer_contact,
	customer_identification, delivery_address, subtotal, tax, discount, total, payment_method,
	status, void_reason, voided_at, created_at, updated_at`

func getHeader(ctx context.Context, q queryer, where string, arg interface{}, forUpdate bool) (*models.Header, error) {
	query := "SELECT " + headerColumns + " FROM transaction_headers WHERE " + where + " = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var header models.Header
	err := q.GetContext(ctx, &header, query, arg)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFoundError("document", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %v: %w", arg, err)
	}
	return &header, nil
}

func listLines(ctx context.Context, q queryer, headerID int64) ([]models.Line, error) {
	var lines []models.Line
	err := q.SelectContext(ctx, &lines,
		`SELECT id, header_id, item_id, title, quantity, unit_price, subtotal
		FROM transaction_lines WHERE header_id = $1 ORDER BY id`, headerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines of document %d: %w", headerID, err)
	}
	return lines, nil
}

// GetHeaderByNumber retrieves a document header by its document number
func (s *Store) GetHeaderByNumber(ctx context.Context, number string) (*models.Header, error) {
	return getHeader(ctx, s.db, "document_number", number, false)
}

// ListLines retrieves all lines for a document
func (s *Store) ListLines(ctx context.Context, headerID int64) ([]models.Line, error) {
	return listLines(ctx, s.db, headerID)
}

// ListPayments retrieves payments recorded for a document
func (s *Store) ListPayments(ctx context.Context, headerID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		`SELECT id, header_id, method, amount, status, instrument_ref, transaction_ref, created_at
		FROM payments WHERE header_id = $1 ORDER BY created_at`, headerID)
	return payments, err
}

func (t *sqlTx) DocumentNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM transaction_headers WHERE document_number = $1)", number)
	return exists, err
}

func (t *sqlTx) InsertHeader(ctx context.Context, h *models.Header) error {
	query := `
		INSERT INTO transaction_headers (kind, document_number, actor_id, customer_name,
			customer_contact, customer_identification, delivery_address, subtotal, tax,
			discount, total, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		h.Kind, h.DocumentNumber, h.ActorID, h.Name, h.Contact, h.Identification,
		h.DeliveryAddress, h.Subtotal, h.Tax, h.Discount, h.Total, h.PaymentMethod, h.Status,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return mapPQError(fmt.Errorf("failed to insert document %s: %w", h.DocumentNumber, err))
	}
	return nil
}

func (t *sqlTx) InsertLines(ctx context.Context, headerID int64, lines []models.Line) error {
	query := `
		INSERT INTO transaction_lines (header_id, item_id, title, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range lines {
		line := &lines[i]
		line.HeaderID = headerID
		if err := t.tx.GetContext(ctx, &line.ID, query,
			headerID, line.ItemID, line.Title, line.Quantity, line.UnitPrice, line.Subtotal); err != nil {
			return fmt.Errorf("failed to insert line for item %d: %w", line.ItemID, err)
		}
	}
	return nil
}

func (t *sqlTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (header_id, method, amount, status, instrument_ref, transaction_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := t.tx.QueryRowxContext(ctx, query,
		p.HeaderID, p.Method, p.Amount, p.Status, p.InstrumentRef, p.TransactionRef,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return mapPQError(fmt.Errorf("failed to insert payment %s: %w", p.TransactionRef, err))
	}
	return nil
}

func (t *sqlTx) LockHeaderByNumber(ctx context.Context, number string) (*models.Header, error) {
	return getHeader(ctx, t.tx, "document_number", number, true)
}

func (t *sqlTx) LockHeaderByID(ctx context.Context, id int64) (*models.Header, error) {
	return getHeader(ctx, t.tx, "id", id, true)
}

func (t *sqlTx) ListLines(ctx context.Context, headerID int64) ([]models.Line, error) {
	return listLines(ctx, t.tx, headerID)
}

func (t *sqlTx) UpdateHeaderStatus(ctx context.Context, id int64, status string, reason *string, voidedAt *time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transaction_headers
		SET status = $1, void_reason = $2, voided_at = $3, updated_at = NOW()
		WHERE id = $4`,
		status, reason, voidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update status of document %d: %w", id, err)
	}
	return nil
}
