package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestStageAndTakeDraft(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	replaced, err := c.StageDraft(ctx, "draft:SALE:1", "draft:gen:SALE:1", "a", []byte(`{"id":"a"}`), time.Minute)
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = c.StageDraft(ctx, "draft:SALE:1", "draft:gen:SALE:1", "b", []byte(`{"id":"b"}`), time.Minute)
	require.NoError(t, err)
	assert.True(t, replaced)

	payload, err := c.TakeDraft(ctx, "draft:SALE:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b"}`, string(payload))

	payload, err = c.TakeDraft(ctx, "draft:SALE:1")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDraftExpiresWithTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := c.StageDraft(ctx, "draft:SALE:2", "draft:gen:SALE:2", "x", []byte("x"), 30*time.Minute)
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	payload, err := c.TakeDraft(ctx, "draft:SALE:2")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestRestoreDraftDoesNotOverwrite(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	const slot, gen = "draft:PURCHASE:3", "draft:gen:PURCHASE:3"

	_, err := c.StageDraft(ctx, slot, gen, "old", []byte("old"), time.Minute)
	require.NoError(t, err)
	_, err = c.TakeDraft(ctx, slot)
	require.NoError(t, err)

	ok, err := c.RestoreDraft(ctx, slot, gen, "old", []byte("old"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.RestoreDraft(ctx, slot, gen, "old", []byte("old again"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	payload, err := c.PeekDraft(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, "old", string(payload))
}

func TestRestoreDraftSkipsSupersededGeneration(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	const slot, gen = "draft:SALE:4", "draft:gen:SALE:4"

	_, err := c.StageDraft(ctx, slot, gen, "a", []byte("a"), time.Minute)
	require.NoError(t, err)
	_, err = c.TakeDraft(ctx, slot)
	require.NoError(t, err)

	// a newer draft is staged and consumed while "a" is still in flight
	_, err = c.StageDraft(ctx, slot, gen, "b", []byte("b"), time.Minute)
	require.NoError(t, err)
	_, err = c.TakeDraft(ctx, slot)
	require.NoError(t, err)

	ok, err := c.RestoreDraft(ctx, slot, gen, "a", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(slot))

	ok, err = c.RestoreDraft(ctx, "draft:SALE:5", "draft:gen:SALE:5", "c", []byte("c"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a slot with no generation takes nothing back")
}
