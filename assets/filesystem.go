package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FilesystemStore keeps assets as plain files: key "guide/css/a.css" lives at <root>/guide/css/a.css.
// it is built on afero so production uses the OS filesystem (wrapped in a BasePathFs that refuses
// paths escaping the root) and tests use an in-memory filesystem with no temp dir cleanup.
// the content type is not persisted, it is derived from the key on every Get.
type FilesystemStore struct {
	filesystem afero.Fs
	logger     *slog.Logger
}

// NewFilesystemStore wraps an existing afero filesystem. keys are resolved from its root.
func NewFilesystemStore(filesystem afero.Fs, logger *slog.Logger) *FilesystemStore {
	return &FilesystemStore{filesystem: filesystem, logger: logger}
}

// NewOsFilesystemStore creates the root directory if needed and returns a store rooted there.
func NewOsFilesystemStore(rootDirectory string, logger *slog.Logger) (*FilesystemStore, error) {
	// 0755: owner read/write/execute, group and others read/execute
	if err := os.MkdirAll(rootDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset root %q: %w", rootDirectory, err)
	}

	// BasePathFs joins every path onto rootDirectory and rejects anything that would
	// resolve outside it. a second line of defence behind the responder's traversal guard.
	baseFilesystem := afero.NewBasePathFs(afero.NewOsFs(), rootDirectory)

	logger.Info("filesystem asset store ready", "root", rootDirectory)
	return NewFilesystemStore(baseFilesystem, logger), nil
}

// Put writes data to the file for key, creating parent directories as needed.
func (store *FilesystemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	filePath := keyToPath(key)

	if err := store.filesystem.MkdirAll(path.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", key, err)
	}
	// 0644: owner read/write, group and others read-only
	if err := afero.WriteFile(store.filesystem, filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write asset %q: %w", key, err)
	}
	return nil
}

// Get reads the file for key. directories and missing files both give ErrNotFound.
func (store *FilesystemStore) Get(ctx context.Context, key string) (*Object, error) {
	filePath := keyToPath(key)

	fileInfo, err := store.filesystem.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat asset %q: %w", key, err)
	}
	if fileInfo.IsDir() {
		return nil, ErrNotFound
	}

	data, err := afero.ReadFile(store.filesystem, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %q: %w", key, err)
	}

	return &Object{Data: data, ContentType: ContentTypeFor(key)}, nil
}

// Exists reports whether a regular file is stored for key.
func (store *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	fileInfo, err := store.filesystem.Stat(keyToPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat asset %q: %w", key, err)
	}
	return !fileInfo.IsDir(), nil
}

// DeletePrefix removes the directory holding every key under prefix.
// only whole-directory prefixes ("guide/") are supported, which is all the publisher uses.
// RemoveAll returns nil if the path does not exist, making this idempotent.
func (store *FilesystemStore) DeletePrefix(ctx context.Context, prefix string) error {
	directory := strings.Trim(prefix, "/")
	if directory == "" {
		// an empty prefix would wipe every bundle
		return fmt.Errorf("refusing to delete empty asset prefix")
	}

	if err := store.filesystem.RemoveAll(keyToPath(directory)); err != nil {
		return fmt.Errorf("failed to remove asset prefix %q: %w", prefix, err)
	}
	store.logger.Info("asset prefix removed", "prefix", prefix)
	return nil
}

// ListPrefixes returns the names of the top-level directories.
func (store *FilesystemStore) ListPrefixes(ctx context.Context) ([]string, error) {
	directoryEntries, err := afero.ReadDir(store.filesystem, "/")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list asset root: %w", err)
	}

	var slugs []string
	for _, entry := range directoryEntries {
		if entry.IsDir() {
			slugs = append(slugs, entry.Name())
		}
	}
	return slugs, nil
}

// keyToPath turns a store key into an absolute path inside the afero filesystem.
func keyToPath(key string) string {
	return "/" + strings.TrimPrefix(key, "/")
}
