package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/stage_draft.lua
var stageDraftScript string

//go:embed scripts/take_draft.lua
var takeDraftScript string

//go:embed scripts/restore_draft.lua
var restoreDraftScript string

type Client struct {
	rdb           *redis.Client
	stageScript   *redis.Script
	takeScript    *redis.Script
	restoreScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		stageScript:   redis.NewScript(stageDraftScript),
		takeScript:    redis.NewScript(takeDraftScript),
		restoreScript: redis.NewScript(restoreDraftScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// StageDraft atomically replaces the slot at key and marks draftID as the
// slot's current generation. Returns true if an older draft was overwritten.
func (c *Client) StageDraft(ctx context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error) {
	keys := []string{key, generationKey}
	_, err := c.stageScript.Run(ctx, c.rdb, keys, payload, ttl.Milliseconds(), draftID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stage draft script failed: %w", err)
	}
	return true, nil
}

// TakeDraft atomically reads and clears the slot at key.
// Returns nil if the slot is empty.
func (c *Client) TakeDraft(ctx context.Context, key string) ([]byte, error) {
	result, err := c.takeScript.Run(ctx, c.rdb, []string{key}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take draft script failed: %w", err)
	}

	payload, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result type %T", result)
	}
	return []byte(payload), nil
}

// RestoreDraft puts a draft back when draftID is still the slot's generation
// and the slot is empty
func (c *Client) RestoreDraft(ctx context.Context, key, generationKey, draftID string, payload []byte, ttl time.Duration) (bool, error) {
	keys := []string{key, generationKey}
	result, err := c.restoreScript.Run(ctx, c.rdb, keys, payload, ttl.Milliseconds(), draftID).Result()
	if err != nil {
		return false, fmt.Errorf("restore draft script failed: %w", err)
	}

	restored, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}
	return restored == 1, nil
}

// PeekDraft reads the slot without clearing it
func (c *Client) PeekDraft(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	return payload, nil
}
