package docstore_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateproof/internal/docstore"
	"estateproof/pkg/platform/sentinel"
)

func TestInMemoryStore_PutAndResolve(t *testing.T) {
	store := docstore.NewInMemory()
	ctx := context.Background()
	content := []byte("registered deed, plot 14, marine drive")

	meta, err := store.Put(ctx, content, "application/pdf")
	require.NoError(t, err)

	digest := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(digest[:]), meta.Ref)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, "application/pdf", meta.ContentType)
	assert.False(t, meta.StoredAt.IsZero())

	got, err := store.Resolve(ctx, meta.Ref)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestInMemoryStore_PutIsIdempotent(t *testing.T) {
	store := docstore.NewInMemory()
	ctx := context.Background()
	content := []byte("the same scanned page")

	first, err := store.Put(ctx, content, "image/png")
	require.NoError(t, err)

	second, err := store.Put(ctx, content, "application/octet-stream")
	require.NoError(t, err)

	assert.Equal(t, first.Ref, second.Ref)
	assert.Equal(t, first.StoredAt, second.StoredAt)
	// First declared type wins; content identity is the hash.
	assert.Equal(t, "image/png", second.ContentType)
}

func TestInMemoryStore_PutEmptyContent(t *testing.T) {
	store := docstore.NewInMemory()
	_, err := store.Put(context.Background(), nil, "application/pdf")
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestInMemoryStore_ResolveMissing(t *testing.T) {
	store := docstore.NewInMemory()
	_, err := store.Resolve(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_HandsOutCopies(t *testing.T) {
	store := docstore.NewInMemory()
	ctx := context.Background()

	meta, err := store.Put(ctx, []byte("tax receipt 2025"), "application/pdf")
	require.NoError(t, err)

	meta.ContentType = "text/plain"

	got, err := store.Resolve(ctx, meta.Ref)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", got.ContentType)
}

func TestInMemoryStore_Preload(t *testing.T) {
	store := docstore.NewInMemory()
	ctx := context.Background()

	err := store.Preload(ctx, docstore.DocumentMeta{Ref: "a1b2c3d4e5f60718", Size: 2048, ContentType: "application/pdf"})
	require.NoError(t, err)

	got, err := store.Resolve(ctx, "a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.Size)
	assert.False(t, got.StoredAt.IsZero(), "zero StoredAt should be stamped")

	stamped := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Preload(ctx, docstore.DocumentMeta{Ref: "b2c3d4e5f6071829", StoredAt: stamped}))
	got, err = store.Resolve(ctx, "b2c3d4e5f6071829")
	require.NoError(t, err)
	assert.Equal(t, stamped, got.StoredAt)

	assert.ErrorIs(t, store.Preload(ctx, docstore.DocumentMeta{}), sentinel.ErrInvalidState)
}
