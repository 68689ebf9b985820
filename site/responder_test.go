package site

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/assets"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/augment"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
)

// fakeRecords answers lookups from a fixed slug set and counts every call.
type fakeRecords struct {
	leadMagnets map[string]*models.LeadMagnet
	lookups     int
}

func (records *fakeRecords) GetLeadMagnetBySlug(ctx context.Context, slug string) (*models.LeadMagnet, error) {
	records.lookups++
	leadMagnet, ok := records.leadMagnets[slug]
	if !ok {
		return nil, db.ErrRecordNotFound
	}
	return leadMagnet, nil
}

// spyStore counts reads so the traversal tests can prove storage was never touched.
type spyStore struct {
	assets.Store
	gets int
}

func (store *spyStore) Get(ctx context.Context, key string) (*assets.Object, error) {
	store.gets++
	return store.Store.Get(ctx, key)
}

type testResponder struct {
	responder *Responder
	records   *fakeRecords
	store     *spyStore
}

func newTestResponder(t *testing.T) *testResponder {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := &spyStore{Store: assets.NewFilesystemStore(afero.NewMemMapFs(), logger)}
	require.NoError(t, store.Put(ctx, "guide/index.html", []byte("<html><head><title>G</title></head><body><form></form></body></html>"), "text/html; charset=utf-8"))
	require.NoError(t, store.Put(ctx, "guide/css/a.css", []byte("body{}"), "text/css; charset=utf-8"))
	require.NoError(t, store.Put(ctx, "guide/img/logo.png", []byte("png"), "image/png"))
	require.NoError(t, store.Put(ctx, "archived/index.html", []byte("<html><head></head><body></body></html>"), "text/html; charset=utf-8"))
	// stored files without a record
	require.NoError(t, store.Put(ctx, "orphan/index.html", []byte("<html></html>"), "text/html; charset=utf-8"))

	records := &fakeRecords{leadMagnets: map[string]*models.LeadMagnet{
		"guide":    {ID: "1", Slug: "guide", Name: "Guide", Status: models.StatusActive},
		"archived": {ID: "2", Slug: "archived", Name: "Old", Status: models.StatusArchived},
		"empty":    {ID: "3", Slug: "empty", Name: "Empty", Status: models.StatusActive},
	}}

	augmenter, err := augment.New(augment.Options{ContainerID: "GTM-TEST123"})
	require.NoError(t, err)

	return &testResponder{
		responder: NewResponder(records, store, augmenter, logger),
		records:   records,
		store:     store,
	}
}

func TestServeRoot_AugmentsIndex(t *testing.T) {
	env := newTestResponder(t)

	asset, err := env.responder.ServeRoot(context.Background(), "guide")
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", asset.ContentType)
	assert.Equal(t, "no-cache", asset.CacheControl)

	body := string(asset.Body)
	assert.Contains(t, body, "GTM-TEST123")
	assert.Contains(t, body, "data-lm-form-handler")
	assert.Contains(t, body, "<title>G</title>")
	assert.Less(t, strings.Index(body, "data-lm-form-handler"), strings.Index(body, "</head>"))
}

func TestServeRoot_ArchivedIsStillServed(t *testing.T) {
	env := newTestResponder(t)

	asset, err := env.responder.ServeRoot(context.Background(), "archived")
	require.NoError(t, err)
	assert.Contains(t, string(asset.Body), "data-lm-form-handler")
}

func TestServeRoot_NotFound(t *testing.T) {
	env := newTestResponder(t)
	ctx := context.Background()

	_, err := env.responder.ServeRoot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// assets exist but no record points at them
	_, err = env.responder.ServeRoot(ctx, "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	// record exists but nothing was stored
	_, err = env.responder.ServeRoot(ctx, "empty")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServeAsset(t *testing.T) {
	env := newTestResponder(t)
	ctx := context.Background()

	css, err := env.responder.ServeAsset(ctx, "guide", []string{"css", "a.css"})
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(css.Body))
	assert.Equal(t, "text/css", css.ContentType)
	assert.Equal(t, "public, max-age=3600", css.CacheControl)

	png, err := env.responder.ServeAsset(ctx, "guide", []string{"img", "logo.png"})
	require.NoError(t, err)
	assert.Equal(t, "image/png", png.ContentType)

	// index.html requested directly is served raw, not augmented
	raw, err := env.responder.ServeAsset(ctx, "guide", []string{"index.html"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw.Body), "data-lm-form-handler")

	_, err = env.responder.ServeAsset(ctx, "guide", []string{"css", "missing.css"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.responder.ServeAsset(ctx, "orphan", []string{"index.html"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServeAsset_EmptyPathDelegatesToRoot(t *testing.T) {
	env := newTestResponder(t)

	asset, err := env.responder.ServeAsset(context.Background(), "guide", []string{""})
	require.NoError(t, err)
	assert.Equal(t, "no-cache", asset.CacheControl)
	assert.Contains(t, string(asset.Body), "data-lm-form-handler")
}

func TestServeAsset_TraversalIsForbiddenWithoutReading(t *testing.T) {
	env := newTestResponder(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		slug     string
		segments []string
	}{
		{"parent in path", "guide", []string{"..", "..", "etc", "passwd"}},
		{"parent inside segment", "guide", []string{"css", "..", "..", "orphan", "index.html"}},
		{"home expansion", "guide", []string{"~", ".ssh", "id_rsa"}},
		{"parent slug", "..", []string{"etc", "passwd"}},
		{"tilde slug", "~root", []string{"index.html"}},
		{"empty slug", "", []string{"index.html"}},
		{"backslash", "guide", []string{"..\\..\\secret"}},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := env.responder.ServeAsset(ctx, testCase.slug, testCase.segments)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}

	_, err := env.responder.ServeRoot(ctx, "../guide")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, 0, env.store.gets, "store must not be read for forbidden paths")
	assert.Equal(t, 0, env.records.lookups, "records must not be read for forbidden paths")
}

// brokenStore fails every read with a backend error.
type brokenStore struct {
	assets.Store
}

func (brokenStore) Get(ctx context.Context, key string) (*assets.Object, error) {
	return nil, errors.New("connection reset")
}

func TestServeAsset_BackendErrorIsNotNotFound(t *testing.T) {
	env := newTestResponder(t)
	env.responder.assetStore = brokenStore{}

	_, err := env.responder.ServeAsset(context.Background(), "guide", []string{"css", "a.css"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
}
