package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipDirectory_RoundTripsThroughNormalize(t *testing.T) {
	sourceDirectory := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sourceDirectory, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDirectory, "index.html"), []byte("<html></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDirectory, "css", "style.css"), []byte("body{}"), 0644))

	zipData, err := ZipDirectory(sourceDirectory)
	require.NoError(t, err)
	require.True(t, LooksLikeZip(zipData))

	entries, err := Normalize(zipData)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"index.html":    "<html></html>",
		"css/style.css": "body{}",
	}, entryMap(entries))
}

func TestZipDirectory_RejectsSymlinks(t *testing.T) {
	sourceDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceDirectory, "index.html"), []byte("<html></html>"), 0644))
	if err := os.Symlink("/etc/hosts", filepath.Join(sourceDirectory, "hosts")); err != nil {
		t.Skipf("symlinks not supported here: %v", err)
	}

	_, err := ZipDirectory(sourceDirectory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlink not allowed")
}

func TestZipDirectory_RequiresDirectory(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0644))

	_, err := ZipDirectory(filePath)
	require.Error(t, err)
}
