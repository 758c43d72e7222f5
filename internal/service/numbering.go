package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/store"
	"sales-core/internal/util"

	"go.uber.org/zap"
)

const sequenceDigits = 10

// Scopes are used as a LIKE prefix when seeding a counter, so they must not
// carry pattern characters.
var scopePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Numberer hands out document numbers of the form <scope>-<10 digit sequence>.
// The per-scope counter row is locked for the duration of the allocating
// transaction, so concurrent callers on any number of instances serialize on it.
type Numberer struct {
	ledger store.Ledger
	logger *zap.Logger
}

// NewNumberer creates a new document numberer
func NewNumberer(ledger store.Ledger) *Numberer {
	return &Numberer{
		ledger: ledger,
		logger: util.GetLogger(),
	}
}

// FormatDocumentNumber composes a document number from scope and sequence
func FormatDocumentNumber(scope string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", scope, sequenceDigits, seq)
}

// Next allocates the next number for scope in its own transaction
func (n *Numberer) Next(ctx context.Context, scope string) (string, error) {
	ctx, span := util.StartSpan(ctx, "Numberer.Next")
	defer span.End()

	var number string
	err := n.ledger.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		number, err = n.NextTx(ctx, tx, scope)
		return err
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

// NextTx allocates the next number for scope inside an existing transaction
func (n *Numberer) NextTx(ctx context.Context, tx store.Tx, scope string) (string, error) {
	if !scopePattern.MatchString(scope) {
		return "", apperror.NewFieldError("scope", "must be a non-empty alphanumeric code")
	}

	start := time.Now()
	defer func() {
		util.NumberingLatency.Observe(time.Since(start).Seconds())
	}()

	seq, ok, err := tx.IncrementCounter(ctx, scope)
	if err != nil {
		return "", err
	}

	if !ok {
		// First allocation for this scope: continue after any documents already on file.
		last, err := tx.LastDocumentNumber(ctx, scope)
		if err != nil {
			return "", err
		}
		prev, err := n.parseSequence(scope, last)
		if err != nil {
			return "", err
		}
		seq, err = tx.SeedCounter(ctx, scope, prev+1)
		if err != nil {
			return "", err
		}
	}

	return FormatDocumentNumber(scope, seq), nil
}

// parseSequence extracts the numeric suffix of last; "" means no prior document.
func (n *Numberer) parseSequence(scope, last string) (int64, error) {
	if last == "" {
		return 0, nil
	}

	suffix := strings.TrimPrefix(last, scope+"-")
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || seq < 0 {
		n.logger.Error("Corrupt document number, refusing to restart sequence",
			zap.String("scope", scope),
			zap.String("last_number", last))
		return 0, fmt.Errorf("%w: last number %q", apperror.ErrCorruptSequence, last)
	}
	return seq, nil
}
