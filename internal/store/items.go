package store

import (
	"context"
	"database/sql"
	"fmt"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
)

const itemColumns = "id, title, price, quantity, active, updated_at"

func getItem(ctx context.Context, q queryer, id int64, forUpdate bool) (*models.Item, error) {
	query := "SELECT " + itemColumns + " FROM items WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var item models.Item
	err := q.GetContext(ctx, &item, query, id)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFoundError("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", id, err)
	}
	return &item, nil
}

// GetItem retrieves an item by ID
func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return getItem(ctx, s.db, id, false)
}

// CreateItem inserts a catalog item; used by seeding and tests
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (title, price, quantity, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		item.Title, item.Price, item.Quantity, item.Active).Scan(&item.ID, &item.UpdatedAt)
}

func (t *sqlTx) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return getItem(ctx, t.tx, id, false)
}

func (t *sqlTx) LockItemForUpdate(ctx context.Context, id int64) (*models.Item, error) {
	return getItem(ctx, t.tx, id, true)
}

func (t *sqlTx) SetItemQuantity(ctx context.Context, id int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE items SET quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, id)
	if err != nil {
		return fmt.Errorf("failed to update stock of item %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFoundError("item", id)
	}
	return nil
}
