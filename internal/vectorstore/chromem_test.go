package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/recall/pkg/types"
)

func newChromemIndex(t *testing.T) *ChromemProvider {
	t.Helper()
	p, err := NewChromemProvider("")
	require.NoError(t, err)
	require.NoError(t, p.CreateIndex(context.Background(), "chat-test", 3, "cosine"))
	return p
}

func TestChromemIndexLifecycle(t *testing.T) {
	p, err := NewChromemProvider("")
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := p.IndexExists(ctx, "chat-test")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, p.CreateIndex(ctx, "chat-test", 3, "cosine"))

	exists, err = p.IndexExists(ctx, "chat-test")
	require.NoError(t, err)
	assert.True(t, exists)

	require.Error(t, p.CreateIndex(ctx, "chat-test", 3, "cosine"), "duplicate create must fail")

	require.NoError(t, p.DeleteIndex(ctx, "chat-test"))
	assert.ErrorIs(t, p.DeleteIndex(ctx, "chat-test"), ErrIndexNotFound)
}

func TestChromemUpsertAndQuery(t *testing.T) {
	p := newChromemIndex(t)
	ctx := context.Background()

	records := []types.VectorRecord{
		{ID: "a", Vector: []float32{1, 0, 0}, Role: "user", Text: "about cats", Timestamp: 100, OwnerID: "u1"},
		{ID: "b", Vector: []float32{0, 1, 0}, Role: "assistant", Text: "about dogs", Timestamp: 200, OwnerID: "u1"},
	}
	require.NoError(t, p.Upsert(ctx, "chat-test", "u1", records))

	matches, err := p.Query(ctx, "chat-test", "u1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].Record.ID)
	assert.Equal(t, "about cats", matches[0].Record.Text)
	assert.Equal(t, int64(100), matches[0].Record.Timestamp)
	assert.Equal(t, types.Role("user"), matches[0].Record.Role)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestChromemQueryEmptyNamespace(t *testing.T) {
	p := newChromemIndex(t)

	matches, err := p.Query(context.Background(), "chat-test", "nobody", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemQueryMissingIndex(t *testing.T) {
	p, err := NewChromemProvider("")
	require.NoError(t, err)

	_, err = p.Query(context.Background(), "missing", "", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestChromemNamespacesAreIsolated(t *testing.T) {
	p := newChromemIndex(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "chat-test", "u1", []types.VectorRecord{
		{ID: "a", Vector: []float32{1, 0, 0}, Role: "user", Text: "u1 secret", Timestamp: 1, OwnerID: "u1"},
	}))
	require.NoError(t, p.Upsert(ctx, "chat-test", "u2", []types.VectorRecord{
		{ID: "b", Vector: []float32{1, 0, 0}, Role: "user", Text: "u2 secret", Timestamp: 2, OwnerID: "u2"},
	}))

	matches, err := p.Query(ctx, "chat-test", "u1", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "u1 secret", matches[0].Record.Text)
}

func TestChromemDeleteNamespace(t *testing.T) {
	p := newChromemIndex(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "chat-test", "u1", []types.VectorRecord{
		{ID: "a", Vector: []float32{1, 0, 0}, Role: "user", Text: "hi", Timestamp: 1, OwnerID: "u1"},
	}))

	require.NoError(t, p.DeleteNamespace(ctx, "chat-test", "u1"))

	matches, err := p.Query(ctx, "chat-test", "u1", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The index itself survives namespace teardown.
	exists, err := p.IndexExists(ctx, "chat-test")
	require.NoError(t, err)
	assert.True(t, exists)

	// Deleting a namespace that never existed is a no-op.
	require.NoError(t, p.DeleteNamespace(ctx, "chat-test", "ghost"))
}
