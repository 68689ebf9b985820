// Package archive turns an uploaded ZIP into the flat list of files that make up a lead magnet.
// nothing here touches the disk or the asset store: the archive is read from memory,
// validated as a whole, and only then handed back to the caller as entries.
// a bad archive therefore never leaves half-written files behind.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// DefaultDecompressionLimit caps the total decompressed size of one archive (100MB).
// the compressed upload is already size limited by the HTTP layer, but a zip bomb
// can expand a few KB into gigabytes, so the decompressed side needs its own cap.
const DefaultDecompressionLimit int64 = 100 * 1024 * 1024

// rootDocumentName is the file every lead magnet must have at its root.
const rootDocumentName = "index.html"

var (
	// ErrCorruptArchive means the bytes could not be decoded as a ZIP at all
	ErrCorruptArchive = errors.New("archive could not be read as a zip file")

	// ErrUnsafePath means at least one entry tried to escape the bundle root
	// ("../x", "/etc/passwd", "C:\x"). the whole archive is rejected, not just the entry.
	ErrUnsafePath = errors.New("ZIP contains invalid paths")

	// ErrMissingIndex means no index.html exists at the bundle root after prefix stripping
	ErrMissingIndex = errors.New("ZIP must contain an index.html file")

	// ErrArchiveTooLarge means the decompressed contents exceed the decompression limit
	ErrArchiveTooLarge = errors.New("archive exceeds the decompressed size limit")
)

// junkPatterns are OS artefacts that sneak into zips made with Finder or Explorer.
// an entry is junk if its path equals a pattern, starts with one, or contains one
// as a nested segment ("assets/.DS_Store").
var junkPatterns = []string{
	"__MACOSX/",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// windowsDrivePrefix matches "C:" style roots, which are absolute on Windows
// even though they do not start with a slash.
var windowsDrivePrefix = regexp.MustCompile(`^[A-Za-z]:`)

// Entry is one file of the normalized bundle.
// Path is relative to the bundle root, uses forward slashes, never starts with "/"
// and never contains a ".." segment. directories are never emitted as entries,
// they only exist implicitly as path prefixes.
type Entry struct {
	Path string
	Data []byte
}

// Normalize is NormalizeWithLimit with the default decompression limit.
func Normalize(raw []byte) ([]Entry, error) {
	return NormalizeWithLimit(raw, DefaultDecompressionLimit)
}

// NormalizeWithLimit decodes a ZIP held in memory and returns its files with:
//   - OS junk removed (__MACOSX/, .DS_Store, Thumbs.db, desktop.ini)
//   - the whole archive rejected if any file path is absolute or contains ".."
//   - a single wrapper directory stripped, detected by where index.html lives
//     (site/index.html + site/css/a.css -> index.html + css/a.css)
//   - duplicate paths resolved by keeping the last one in archive order
//
// the returned entries are sorted by path so uploads are deterministic.
// the caller gets either every entry or an error, never a partial list.
func NormalizeWithLimit(raw []byte, maxDecompressedBytes int64) ([]Entry, error) {
	// zip.NewReader reads the central directory at the end of the data.
	// a truncated or non-zip payload fails here before any entry is looked at.
	// with GODEBUG=zipinsecurepath=0 the reader comes back together with ErrInsecurePath.
	// that case is not fatal here, the per-entry check below produces the proper ErrUnsafePath.
	zipReader, errOpenZip := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if errOpenZip != nil && !(errors.Is(errOpenZip, zip.ErrInsecurePath) && zipReader != nil) {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, errOpenZip)
	}

	// ===== pass 1: filter junk and directories, validate every path
	// paths are checked on the original names, before any prefix stripping,
	// so "site/../../etc/passwd" cannot be laundered by the strip step.
	var fileEntries []*zip.File
	for _, zipEntry := range zipReader.File {
		entryName := normalizeSeparators(zipEntry.Name)

		if isJunkEntry(entryName) {
			continue
		}
		if zipEntry.FileInfo().IsDir() || strings.HasSuffix(entryName, "/") {
			continue
		}
		if isUnsafePath(entryName) {
			return nil, fmt.Errorf("%w: entry %q", ErrUnsafePath, zipEntry.Name)
		}

		fileEntries = append(fileEntries, zipEntry)
	}

	// ===== pass 2: find the wrapper prefix
	stripPrefix := detectStripPrefix(fileEntries)

	// ===== pass 3: decompress, strip, dedupe
	entriesByPath := make(map[string][]byte, len(fileEntries))
	var totalDecompressedSize int64

	for _, zipEntry := range fileEntries {
		relativePath := strings.TrimPrefix(normalizeSeparators(zipEntry.Name), stripPrefix)
		relativePath = strings.TrimPrefix(relativePath, "./")
		if relativePath == "" {
			continue
		}

		// the declared size is only a hint (it can lie), so the real guard is the
		// LimitReader inside readZipEntry. this check just fails fast on honest headers.
		if totalDecompressedSize+int64(zipEntry.UncompressedSize64) > maxDecompressedBytes {
			return nil, ErrArchiveTooLarge
		}

		content, errRead := readZipEntry(zipEntry, maxDecompressedBytes-totalDecompressedSize)
		if errRead != nil {
			return nil, errRead
		}
		totalDecompressedSize += int64(len(content))

		// later entries overwrite earlier ones (last write wins)
		entriesByPath[relativePath] = content
	}

	if _, hasIndex := entriesByPath[rootDocumentName]; !hasIndex {
		return nil, ErrMissingIndex
	}

	entries := make([]Entry, 0, len(entriesByPath))
	for relativePath, content := range entriesByPath {
		entries = append(entries, Entry{Path: relativePath, Data: content})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

// readZipEntry decompresses one entry, reading at most remainingBudget bytes.
// one extra byte is requested so "exactly at the limit" and "over the limit" can be told apart.
// separated from the loop so the entry's ReadCloser is closed before the next one opens.
func readZipEntry(zipEntry *zip.File, remainingBudget int64) ([]byte, error) {
	zipEntryReadCloser, errOpenZipEntry := zipEntry.Open()
	if errOpenZipEntry != nil {
		return nil, fmt.Errorf("%w: failed to open entry %q: %w", ErrCorruptArchive, zipEntry.Name, errOpenZipEntry)
	}
	defer zipEntryReadCloser.Close()

	content, errRead := io.ReadAll(io.LimitReader(zipEntryReadCloser, remainingBudget+1))
	if errRead != nil {
		return nil, fmt.Errorf("%w: failed to read entry %q: %w", ErrCorruptArchive, zipEntry.Name, errRead)
	}
	if int64(len(content)) > remainingBudget {
		return nil, ErrArchiveTooLarge
	}
	return content, nil
}

// detectStripPrefix returns the directory part of the first file named index.html.
// an archive zipped as "my-site/" has "my-site/index.html", so "my-site/" is stripped from
// every entry that has it. entries outside that prefix keep their path unchanged.
// if there is no index.html anywhere the prefix is empty and the missing index
// is reported later, after stripping.
func detectStripPrefix(fileEntries []*zip.File) string {
	for _, zipEntry := range fileEntries {
		entryName := normalizeSeparators(zipEntry.Name)
		if entryName == rootDocumentName || strings.HasSuffix(entryName, "/"+rootDocumentName) {
			return strings.TrimSuffix(entryName, rootDocumentName)
		}
	}
	return ""
}

// isJunkEntry reports whether the path is an OS artefact that should be dropped silently.
func isJunkEntry(entryName string) bool {
	for _, pattern := range junkPatterns {
		if entryName == pattern ||
			strings.HasPrefix(entryName, pattern) ||
			strings.Contains(entryName, "/"+pattern) {
			return true
		}
	}
	return false
}

// isUnsafePath reports whether an entry would resolve outside the bundle root.
// example malicious entry names: "../../etc/passwd", "/etc/passwd", "C:/Windows/x", "a/../../b"
func isUnsafePath(entryName string) bool {
	if strings.HasPrefix(entryName, "/") || windowsDrivePrefix.MatchString(entryName) {
		return true
	}
	for _, segment := range strings.Split(entryName, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// normalizeSeparators converts Windows backslashes so every later check only deals with "/".
// zips created by some Windows tools store "css\style.css" instead of "css/style.css".
func normalizeSeparators(entryName string) string {
	return strings.ReplaceAll(entryName, "\\", "/")
}

// LooksLikeZip reports whether data starts with one of the ZIP signatures:
// local file header (PK\x03\x04), empty archive (PK\x05\x06) or spanned archive (PK\x07\x08).
// used to reject obviously wrong uploads (a PDF renamed to .zip) before decoding.
func LooksLikeZip(data []byte) bool {
	if len(data) < 4 || data[0] != 'P' || data[1] != 'K' {
		return false
	}
	switch {
	case data[2] == 0x03 && data[3] == 0x04:
		return true
	case data[2] == 0x05 && data[3] == 0x06:
		return true
	case data[2] == 0x07 && data[3] == 0x08:
		return true
	}
	return false
}
