package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (t *sqlTx) IncrementCounter(ctx context.Context, scope string) (int64, bool, error) {
	var value int64
	err := t.tx.GetContext(ctx, &value,
		"UPDATE document_counters SET last_value = last_value + 1 WHERE scope = $1 RETURNING last_value",
		scope)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment counter %s: %w", scope, err)
	}
	return value, true, nil
}

func (t *sqlTx) SeedCounter(ctx context.Context, scope string, value int64) (int64, error) {
	var next int64
	err := t.tx.GetContext(ctx, &next,
		`INSERT INTO document_counters (scope, last_value) VALUES ($1, $2)
		ON CONFLICT (scope) DO UPDATE SET last_value = document_counters.last_value + 1
		RETURNING last_value`,
		scope, value)
	if err != nil {
		return 0, fmt.Errorf("failed to seed counter %s: %w", scope, err)
	}
	return next, nil
}

// LastDocumentNumber returns the highest number issued under prefix, or "" when there is none
func (t *sqlTx) LastDocumentNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := t.tx.GetContext(ctx, &number,
		`SELECT document_number FROM transaction_headers
		WHERE document_number LIKE $1 || '-%'
		ORDER BY document_number DESC LIMIT 1`,
		prefix)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last document number for %s: %w", prefix, err)
	}
	return number, nil
}
