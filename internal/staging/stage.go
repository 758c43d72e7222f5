// Package staging holds one pending draft per actor and document kind until it
// is consumed by finalization or expires.
package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is a keyed single-value store with expiry. Each slot has a
// generation key holding the id of the last draft staged into it.
// redisclient.Client and MemoryBackend implement it.
type Backend interface {
	StageDraft(ctx context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error)
	TakeDraft(ctx context.Context, key string) ([]byte, error)
	RestoreDraft(ctx context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error)
	PeekDraft(ctx context.Context, key string) ([]byte, error)
}

type Stage struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewStage creates a stage whose drafts live for ttl
func NewStage(backend Backend, ttl time.Duration) *Stage {
	return &Stage{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// WithClock overrides the time source, for tests
func (s *Stage) WithClock(now func() time.Time) *Stage {
	s.now = now
	return s
}

func slotKey(actorID int64, kind string) string {
	return fmt.Sprintf("draft:%s:%d", kind, actorID)
}

func generationKey(actorID int64, kind string) string {
	return fmt.Sprintf("draft:gen:%s:%d", kind, actorID)
}

// Stage stores draft in its owner's slot, replacing whatever was there
func (s *Stage) Stage(ctx context.Context, draft *models.Draft) (string, error) {
	now := s.now()
	draft.ID = uuid.New().String()
	draft.CreatedAt = now
	draft.ExpiresAt = now.Add(s.ttl)

	payload, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to encode draft: %w", err)
	}

	replaced, err := s.backend.StageDraft(ctx,
		slotKey(draft.ActorID, draft.Kind), generationKey(draft.ActorID, draft.Kind),
		draft.ID, payload, s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to stage draft: %w", err)
	}

	util.DraftsStagedTotal.WithLabelValues(draft.Kind).Inc()
	if replaced {
		util.DraftsReplacedTotal.WithLabelValues(draft.Kind).Inc()
		s.logger.Info("Replaced pending draft",
			zap.Int64("actor_id", draft.ActorID),
			zap.String("kind", draft.Kind))
	}
	return draft.ID, nil
}

// Peek returns the staged draft without consuming it
func (s *Stage) Peek(ctx context.Context, actorID int64, kind string) (*models.Draft, error) {
	payload, err := s.backend.PeekDraft(ctx, slotKey(actorID, kind))
	if err != nil {
		return nil, err
	}
	return s.decode(payload)
}

// Consume takes the staged draft out of its slot. Exactly one caller gets it;
// everyone else sees apperror.ErrExpiredStaging.
func (s *Stage) Consume(ctx context.Context, actorID int64, kind string) (*models.Draft, error) {
	payload, err := s.backend.TakeDraft(ctx, slotKey(actorID, kind))
	if err != nil {
		return nil, err
	}
	return s.decode(payload)
}

// Restore returns a consumed draft to its slot. It does nothing when the
// draft has expired or another draft was staged for the slot since.
func (s *Stage) Restore(ctx context.Context, draft *models.Draft) (bool, error) {
	remaining := draft.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return false, nil
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return false, fmt.Errorf("failed to encode draft: %w", err)
	}
	return s.backend.RestoreDraft(ctx,
		slotKey(draft.ActorID, draft.Kind), generationKey(draft.ActorID, draft.Kind),
		draft.ID, payload, remaining)
}

func (s *Stage) decode(payload []byte) (*models.Draft, error) {
	if payload == nil {
		return nil, apperror.ErrExpiredStaging
	}

	var draft models.Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	if draft.Expired(s.now()) {
		return nil, apperror.ErrExpiredStaging
	}
	return &draft, nil
}
