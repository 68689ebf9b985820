// Package site answers the public /lm/{slug} requests: it resolves the stored file
// for a request path and, for the root document, injects the tag manager and form handler.
// it knows nothing about HTTP, handlers.SiteHandler turns an Asset or an error into a response.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/assets"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/augment"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
)

var (
	// ErrForbidden is returned for slugs or paths that try to leave the bundle (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the lead magnet or the file does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")
)

const (
	rootDocument = "index.html"

	rootContentType  = "text/html; charset=utf-8"
	rootCacheControl = "no-cache"

	// bundle files never change under the same slug, only the root document is augmented per response
	assetCacheControl = "public, max-age=3600"
)

// Asset is a resolved response body with the headers it must be served with.
type Asset struct {
	Body         []byte
	ContentType  string
	CacheControl string
}

// LeadMagnetFinder is the record lookup the responder needs. *db.Database satisfies it.
type LeadMagnetFinder interface {
	GetLeadMagnetBySlug(ctx context.Context, slug string) (*models.LeadMagnet, error)
}

// Responder resolves public requests against the record store and the asset store.
type Responder struct {
	records    LeadMagnetFinder
	assetStore assets.Store
	augmenter  *augment.Augmenter
	logger     *slog.Logger
}

// NewResponder constructs a Responder with its required dependencies.
func NewResponder(records LeadMagnetFinder, assetStore assets.Store, augmenter *augment.Augmenter, logger *slog.Logger) *Responder {
	return &Responder{
		records:    records,
		assetStore: assetStore,
		augmenter:  augmenter,
		logger:     logger,
	}
}

// ServeAsset resolves GET /lm/{slug}/{path...}. segments are the already decoded path segments.
// both guards run before anything is read, so a traversal attempt never touches storage.
func (responder *Responder) ServeAsset(ctx context.Context, slug string, segments []string) (*Asset, error) {
	if !isSafeSlug(slug) {
		return nil, ErrForbidden
	}

	relativePath := strings.Join(segments, "/")
	if !isSafeRelativePath(relativePath) {
		return nil, ErrForbidden
	}

	// /lm/{slug}/ is the same page as /lm/{slug}
	if strings.Trim(relativePath, "/") == "" {
		return responder.ServeRoot(ctx, slug)
	}

	if err := responder.requireLeadMagnet(ctx, slug); err != nil {
		return nil, err
	}

	object, err := responder.getObject(ctx, assets.Key(slug, relativePath))
	if err != nil {
		return nil, err
	}

	return &Asset{
		Body:         object.Data,
		ContentType:  assets.ContentTypeFor(relativePath),
		CacheControl: assetCacheControl,
	}, nil
}

// ServeRoot resolves GET /lm/{slug}: the stored index.html with the tag manager
// and form handler injected. the augmented page is built per response, never stored.
func (responder *Responder) ServeRoot(ctx context.Context, slug string) (*Asset, error) {
	if !isSafeSlug(slug) {
		return nil, ErrForbidden
	}

	if err := responder.requireLeadMagnet(ctx, slug); err != nil {
		return nil, err
	}

	object, err := responder.getObject(ctx, assets.Key(slug, rootDocument))
	if err != nil {
		return nil, err
	}

	augmented := responder.augmenter.Augment(string(object.Data), slug)
	return &Asset{
		Body:         []byte(augmented),
		ContentType:  rootContentType,
		CacheControl: rootCacheControl,
	}, nil
}

// requireLeadMagnet makes sure a record exists for slug. archived lead magnets are still served,
// stored files without a record (an unfinished or failed publish) are not.
func (responder *Responder) requireLeadMagnet(ctx context.Context, slug string) error {
	_, err := responder.records.GetLeadMagnetBySlug(ctx, slug)
	if errors.Is(err, db.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up lead magnet %q: %w", slug, err)
	}
	return nil
}

func (responder *Responder) getObject(ctx context.Context, key string) (*assets.Object, error) {
	object, err := responder.assetStore.Get(ctx, key)
	if errors.Is(err, assets.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %q: %w", key, err)
	}
	return object, nil
}

// isSafeSlug rejects empty slugs and anything that could name another directory.
func isSafeSlug(slug string) bool {
	return slug != "" &&
		!strings.Contains(slug, "..") &&
		!strings.Contains(slug, "~") &&
		!strings.Contains(slug, "/") &&
		!strings.Contains(slug, "\\")
}

// isSafeRelativePath rejects parent references and home expansion anywhere in the joined path,
// including the encoded forms once the router has decoded them ("%2e%2e" -> "..").
func isSafeRelativePath(relativePath string) bool {
	return !strings.Contains(relativePath, "..") &&
		!strings.Contains(relativePath, "~") &&
		!strings.Contains(relativePath, "\\")
}
