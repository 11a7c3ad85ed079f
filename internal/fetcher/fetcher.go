// Package fetcher pulls component archives from remote sources (HTTPS
// catalogs and OCI registries) into the local component cache. It is the
// only part of the toolchain that writes to the cache directory; the
// resolution and assembly code treats the cache as read only.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/netutil"
)

// SourceType discriminates how a component reference is fetched.
type SourceType string

const (
	SourceHTTPS SourceType = "https"
	SourceOCI   SourceType = "oci"
)

// Ref is a parsed remote component reference, either an HTTPS archive URL
// or an oci:// image reference whose layer carries the archive.
type Ref struct {
	Type SourceType

	// URL is set for HTTPS refs.
	URL string

	// Image is set for OCI refs, e.g. "registry.example.com/components/course.quiz:1.4".
	Image string
}

// ParseRef parses a remote reference string. HTTPS URLs must point at a
// component archive; oci:// prefixes name an image reference.
func ParseRef(raw string) (*Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty reference")
	}

	if strings.HasPrefix(raw, "oci://") {
		image := strings.TrimPrefix(raw, "oci://")
		if image == "" {
			return nil, fmt.Errorf("oci reference has no image path")
		}
		return &Ref{Type: SourceOCI, Image: image}, nil
	}

	if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") {
		return &Ref{Type: SourceHTTPS, URL: raw}, nil
	}

	return nil, fmt.Errorf("unsupported reference %q (expected https:// URL or oci:// image)", raw)
}

// FetchResult describes an archive that was pulled and installed into the
// cache directory.
type FetchResult struct {
	Component *models.ComponentMetadata

	// FileName is the archive name under the cache directory, e.g.
	// "Course.Quiz-1.4.cpk".
	FileName string

	// SHA256 of the archive as transferred.
	SHA256 string

	// Digest is the pinned OCI digest when the source was a registry.
	Digest string
}

// Fetcher installs remote component archives into a cache directory.
type Fetcher struct {
	CacheDir string
	Config   netutil.DownloadConfig
}

// Fetch pulls the archive behind ref, verifies it carries a component
// descriptor, and installs it under the cache directory using the
// component's canonical versioned file name.
func (f *Fetcher) Fetch(ctx context.Context, ref *Ref) (*FetchResult, error) {
	switch ref.Type {
	case SourceHTTPS:
		res, err := netutil.DownloadArchive(ctx, ref.URL, f.Config)
		if err != nil {
			return nil, err
		}
		defer res.Cleanup()
		return f.install(res.Path, res.SHA256, "")
	case SourceOCI:
		path, sha, digest, cleanup, err := pullOCIArchive(ctx, ref.Image)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		return f.install(path, sha, digest)
	default:
		return nil, fmt.Errorf("unknown source type %q", ref.Type)
	}
}

// install reads the descriptor out of a downloaded archive and moves it
// into the cache under the component's versioned name. An existing archive
// with the same name is replaced.
func (f *Fetcher) install(srcPath, sha256Hex, digest string) (*FetchResult, error) {
	meta, err := cache.ReadMetadataFromFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("downloaded archive is not a valid component archive: %w", err)
	}

	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	fileName := meta.DirName() + models.ArchiveExt
	dest := filepath.Join(f.CacheDir, fileName)
	if err := copyFile(srcPath, dest); err != nil {
		return nil, fmt.Errorf("failed to install %s into cache: %w", fileName, err)
	}

	return &FetchResult{
		Component: meta,
		FileName:  fileName,
		SHA256:    sha256Hex,
		Digest:    digest,
	}, nil
}

// copyFile copies across filesystems; the temp download dir and the cache
// dir are not guaranteed to share a device, so os.Rename is not enough.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".edupack-install-*")
	if err != nil {
		return err
	}
	tmpName := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpName)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, dest)
}

// Catalog is a remote component source backed by a plain HTTPS catalog
// that serves archives at <BaseURL>/<MachineName>.cpk. It implements the
// resolver's metadata fallback: a dependency missing from the local cache
// is fetched, installed, and its descriptor returned, so the rest of the
// build sees it as a normal cache hit.
type Catalog struct {
	BaseURL string
	Fetcher *Fetcher
}

// Metadata fetches the named component from the catalog into the cache and
// returns its descriptor.
func (c *Catalog) Metadata(ctx context.Context, name string) (*models.ComponentMetadata, error) {
	ref := &Ref{
		Type: SourceHTTPS,
		URL:  strings.TrimSuffix(c.BaseURL, "/") + "/" + name + models.ArchiveExt,
	}
	res, err := c.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch of %s failed: %w", name, err)
	}
	if res.Component.MachineName != name {
		return nil, fmt.Errorf("catalog served %s when asked for %s", res.Component.MachineName, name)
	}
	return res.Component, nil
}
