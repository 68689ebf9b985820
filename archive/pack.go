package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ZipDirectory packs the regular files under sourceDirectory into an in-memory ZIP.
// entry names are relative to sourceDirectory and always use forward slashes.
// used by the CLI so a folder upload goes through exactly the same Normalize
// path as a browser ZIP upload.
// Symlinks and non-regular files (device nodes, FIFOs, sockets) are rejected,
// a symlink could point outside the folder and pull arbitrary host files into a public page.
func ZipDirectory(sourceDirectory string) ([]byte, error) {
	sourceInfo, err := os.Stat(sourceDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory %q: %w", sourceDirectory, err)
	}
	if !sourceInfo.IsDir() {
		return nil, fmt.Errorf("source path %q is not a directory", sourceDirectory)
	}

	zipBuffer := new(bytes.Buffer)
	zipWriter := zip.NewWriter(zipBuffer)

	// WalkDir traverses the tree without calling os.Stat for every entry.
	// DirEntry.Type carries enough metadata to detect directories and symlinks.
	errWalk := filepath.WalkDir(sourceDirectory, func(sourcePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.Type()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlink not allowed in lead magnet folder: %q", sourcePath)
		}

		// directories are implied by file paths inside a zip, no entry needed
		if entry.IsDir() {
			return nil
		}

		// opening a FIFO blocks forever and a device node can yield arbitrary kernel data
		if !entry.Type().IsRegular() {
			return fmt.Errorf("unsupported file type in lead magnet folder: %q (type: %v)", sourcePath, entry.Type())
		}

		relativePath, err := filepath.Rel(sourceDirectory, sourcePath)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %q: %w", sourcePath, err)
		}

		return addFileToZip(zipWriter, sourcePath, filepath.ToSlash(relativePath))
	})
	if errWalk != nil {
		return nil, errWalk
	}

	// Close writes the central directory. without it the bytes are not a readable zip.
	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip for %q: %w", sourceDirectory, err)
	}

	return zipBuffer.Bytes(), nil
}

// addFileToZip streams one file from disk into the zip writer under entryName.
// separate function so the source file handle is closed before the walk moves on.
func addFileToZip(zipWriter *zip.Writer, sourcePath string, entryName string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file %q: %w", sourcePath, err)
	}
	defer sourceFile.Close()

	entryWriter, err := zipWriter.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %q: %w", entryName, err)
	}

	if _, err := io.Copy(entryWriter, sourceFile); err != nil {
		return fmt.Errorf("failed to copy %q into zip: %w", sourcePath, err)
	}
	return nil
}
