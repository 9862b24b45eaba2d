package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadgerStore(ctx, root, BadgerStoreConfig{})
	require.NoError(t, err)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.Append(ctx, Entry{ID: "X", Path: "a.txt"}))
	require.NoError(t, store.Append(ctx, Entry{ID: "Y", Path: "docs/b.pdf"}))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(ctx, root, BadgerStoreConfig{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X": "a.txt", "Y": "docs/b.pdf"}, entries)
}

func TestBadgerStore_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(ctx, "", BadgerStoreConfig{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Append(ctx, Entry{ID: "X", Path: "a.txt"}))
	assert.ErrorIs(t, store.Append(ctx, Entry{ID: "X", Path: "b.txt"}), ErrInvalidEntry)

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", entries["X"])
}

func TestBadgerStore_RejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBadgerStore(ctx, "", BadgerStoreConfig{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.ErrorIs(t, store.Append(ctx, Entry{ID: "X", Path: "my file"}), ErrInvalidEntry)
}
