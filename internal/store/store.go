package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Ledger is the durable store behind the finalization core.
type Ledger interface {
	// WithinTx runs fn in a single transaction; fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetHeaderByNumber(ctx context.Context, number string) (*models.Header, error)
	ListLines(ctx context.Context, headerID int64) ([]models.Line, error)
	ListPayments(ctx context.Context, headerID int64) ([]models.Payment, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Tx is the unit of work. Row locks taken through it are held until commit or rollback.
type Tx interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	// LockItemForUpdate holds the item's stock row until the transaction ends.
	LockItemForUpdate(ctx context.Context, id int64) (*models.Item, error)
	SetItemQuantity(ctx context.Context, id int64, quantity int) error

	// IncrementCounter bumps the counter for scope; ok is false when the scope has no counter yet.
	IncrementCounter(ctx context.Context, scope string) (value int64, ok bool, err error)
	// SeedCounter creates the counter at value, or increments it if a concurrent caller created it first.
	SeedCounter(ctx context.Context, scope string, value int64) (int64, error)
	LastDocumentNumber(ctx context.Context, prefix string) (string, error)
	DocumentNumberExists(ctx context.Context, number string) (bool, error)

	InsertHeader(ctx context.Context, header *models.Header) error
	InsertLines(ctx context.Context, headerID int64, lines []models.Line) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
	LockHeaderByNumber(ctx context.Context, number string) (*models.Header, error)
	LockHeaderByID(ctx context.Context, id int64) (*models.Header, error)
	ListLines(ctx context.Context, headerID int64) ([]models.Line, error)
	UpdateHeaderStatus(ctx context.Context, id int64, status string, reason *string, voidedAt *time.Time) error
}

// Unique constraint names from migrations/001_init.sql
const (
	constraintDocumentNumber = "transaction_headers_document_number_key"
	constraintPaymentRef     = "payments_transaction_ref_key"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn inside a read-committed transaction
func (s *Store) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapPQError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sqlTx struct {
	tx *sqlx.Tx
}

// mapPQError turns unique violations on the document constraints into system errors
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch pqErr.Constraint {
	case constraintDocumentNumber:
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateDocumentNumber, pqErr.Detail)
	case constraintPaymentRef:
		return fmt.Errorf("%w: %s", apperror.ErrDuplicatePaymentReference, pqErr.Detail)
	}
	return err
}

var (
	_ Ledger = (*Store)(nil)
	_ Tx     = (*sqlTx)(nil)
)
