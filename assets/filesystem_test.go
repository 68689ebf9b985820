package assets

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryStore() *FilesystemStore {
	return NewFilesystemStore(afero.NewMemMapFs(), newTestLogger())
}

func TestFilesystemStore_PutGetExists(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	require.NoError(t, store.Put(ctx, Key("guide", "css/site.css"), []byte("body{}"), "text/css"))

	object, err := store.Get(ctx, "guide/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(object.Data))
	assert.Equal(t, "text/css", object.ContentType)

	exists, err := store.Exists(ctx, "guide/css/site.css")
	require.NoError(t, err)
	assert.True(t, exists)

	// a directory is not an object
	exists, err = store.Exists(ctx, "guide/css")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilesystemStore_GetMissing(t *testing.T) {
	store := newMemoryStore()

	_, err := store.Get(context.Background(), "nope/index.html")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(context.Background(), "guide/index.html", []byte("x"), "text/html"))
	_, err = store.Get(context.Background(), "guide")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	require.NoError(t, store.Put(ctx, "guide/index.html", []byte("a much longer first version"), "text/html"))
	require.NoError(t, store.Put(ctx, "guide/index.html", []byte("short"), "text/html"))

	object, err := store.Get(ctx, "guide/index.html")
	require.NoError(t, err)
	assert.Equal(t, "short", string(object.Data))
}

func TestFilesystemStore_DeletePrefixAndListPrefixes(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	require.NoError(t, store.Put(ctx, "guide/index.html", []byte("x"), "text/html"))
	require.NoError(t, store.Put(ctx, "guide/img/a.png", []byte("x"), "image/png"))
	require.NoError(t, store.Put(ctx, "guide-2/index.html", []byte("x"), "text/html"))

	slugs, err := store.ListPrefixes(ctx)
	require.NoError(t, err)
	sort.Strings(slugs)
	assert.Equal(t, []string{"guide", "guide-2"}, slugs)

	require.NoError(t, store.DeletePrefix(ctx, SlugPrefix("guide")))

	exists, err := store.Exists(ctx, "guide/index.html")
	require.NoError(t, err)
	assert.False(t, exists)

	// the neighbouring slug sharing a name prefix survives
	exists, err = store.Exists(ctx, "guide-2/index.html")
	require.NoError(t, err)
	assert.True(t, exists)

	// idempotent
	require.NoError(t, store.DeletePrefix(ctx, SlugPrefix("guide")))
}

func TestFilesystemStore_RefusesEmptyPrefix(t *testing.T) {
	store := newMemoryStore()
	require.Error(t, store.DeletePrefix(context.Background(), "/"))
	require.Error(t, store.DeletePrefix(context.Background(), ""))
}

func TestNewOsFilesystemStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewOsFilesystemStore(t.TempDir()+"/assets", newTestLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "guide/index.html", []byte("<html></html>"), "text/html"))
	object, err := store.Get(ctx, "guide/index.html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", object.ContentType)
}
