package assembler

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
)

// zipEpoch is the fixed timestamp written into every entry so identical
// inputs produce byte-identical archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// addEntry writes one file entry with deterministic metadata.
func addEntry(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

// copyEntry streams a source archive entry into the output under its own
// name, normalizing separators and stamping deterministic metadata.
func copyEntry(zw *zip.Writer, src *zip.File) error {
	name := strings.ReplaceAll(src.Name, "\\", "/")

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}

	r, err := src.Open()
	if err != nil {
		return fmt.Errorf("failed to open source entry %s: %w", src.Name, err)
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to copy entry %s: %w", name, err)
	}
	return nil
}

// isDirectoryEntry reports whether an archive entry is a directory-only
// entry. The consuming runtime rejects archives containing these, so the
// writer must never emit one.
func isDirectoryEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// verifyNoDirectoryEntries re-opens a finished archive and asserts the
// writer's no-directory-entries guarantee actually held.
func verifyNoDirectoryEntries(path string) error {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to reopen output archive: %w", err)
	}
	defer rc.Close()

	for _, f := range rc.File {
		if isDirectoryEntry(f) {
			return fmt.Errorf("output archive contains directory entry %q", f.Name)
		}
	}
	return nil
}
