// Package assets stores the files of every published lead magnet under "<slug>/<relative path>" keys.
// the Store interface has two implementations: a filesystem store (local dev, single node)
// and an S3 store (any S3 compatible object storage, e.g. Cloudflare R2).
// callers only ever see the interface, so the backend is a config switch.
package assets

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key.
// callers map it to HTTP 404, every other error is a backend failure (500).
var ErrNotFound = errors.New("asset not found")

// Object is one stored asset as returned by Get.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the blob store behind the publisher and the static responder.
// keys are "<slug>/<relative path>", never starting with "/".
// implementations must be safe for concurrent use: the publisher writes one bundle
// with several goroutines at once.
type Store interface {
	// Put creates or overwrites the object at key
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object at key, or ErrNotFound
	Get(ctx context.Context, key string) (*Object, error)

	// Exists reports whether an object is stored at key
	Exists(ctx context.Context, key string) (bool, error)

	// DeletePrefix removes every object whose key starts with prefix. idempotent.
	DeletePrefix(ctx context.Context, prefix string) error

	// ListPrefixes returns the distinct first key segments, one per stored bundle.
	// used by the orphan sweep to find bundles that no record points at.
	ListPrefixes(ctx context.Context) ([]string, error)
}

// Key builds the store key for a file of a lead magnet bundle.
func Key(slug string, relativePath string) string {
	return slug + "/" + strings.TrimPrefix(relativePath, "/")
}

// SlugPrefix is the key prefix that holds every file of one bundle.
// the trailing slash keeps "guide" from also matching "guide-2/...".
func SlugPrefix(slug string) string {
	return slug + "/"
}
