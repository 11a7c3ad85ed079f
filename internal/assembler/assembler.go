// Package assembler builds the final distributable package: one archive
// holding the manifest, the serialized content tree, caller-supplied media,
// and the full file tree of every component in the resolved dependency
// closure. Each Assemble call is a fresh, self-contained pipeline with no
// state carried across invocations; a failure aborts the whole build and
// leaves no partial output behind.
package assembler

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
)

// MediaFile is one caller-provided file to embed, at its relative path
// inside the package's content directory, verbatim.
type MediaFile struct {
	Path string
	Data []byte
}

// Options parameterize one build.
type Options struct {
	Title         string
	Language      string
	RootComponent string

	// Content is the serialized content tree; the assembler embeds it
	// untouched at the fixed content location.
	Content []byte

	// Closure is the resolved dependency set, root included.
	Closure []models.ComponentVersion

	Media      []MediaFile
	OutputPath string
}

// Result describes a finished build.
type Result struct {
	OutputPath   string          `json:"outputPath"`
	Manifest     models.Manifest `json:"manifest"`
	BundledFiles int             `json:"bundledFiles"`
	SHA256       string          `json:"sha256"`
}

// BundleError marks a component that could not be resolved to any usable
// source at bundling time. This is always fatal: skipping or substituting
// would produce an archive the target runtime rejects or silently fails to
// render.
type BundleError struct {
	Component string
	Reason    string
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("cannot bundle component %s: %s", e.Component, e.Reason)
}

// Assembler builds packages out of a read-only component cache.
type Assembler struct {
	store *cache.Store
}

func New(store *cache.Store) *Assembler {
	return &Assembler{store: store}
}

// bundleSource pairs a component with the cached archive its files come from.
type bundleSource struct {
	version  models.ComponentVersion
	fileName string
}

// Assemble runs the full pipeline: manifest, layout detection, component
// bundling, media, content, and the no-directory-entries guarantee.
func (a *Assembler) Assemble(ctx context.Context, opts Options) (result *Result, err error) {
	if len(opts.Closure) == 0 {
		return nil, fmt.Errorf("refusing to assemble with an empty dependency closure")
	}
	if opts.Content == nil {
		return nil, fmt.Errorf("refusing to assemble without a content tree")
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("no output path given")
	}

	// Locate every closure component's source archive up front. A missing
	// component means the output would be structurally incomplete, so this
	// is where a NotFound diagnostic hardens into a fatal error.
	sources := make([]bundleSource, 0, len(opts.Closure))
	for _, v := range opts.Closure {
		entry, ferr := a.store.Find(v.MachineName)
		if ferr != nil {
			return nil, ferr
		}
		if entry.Status == models.CacheNotFound {
			return nil, &BundleError{Component: v.Key(), Reason: "no usable archive in cache"}
		}
		sources = append(sources, bundleSource{version: v, fileName: entry.MatchedFileName})
	}

	// Layout components are implied by content nesting, never declared, so
	// the resolver cannot see them. Scan the selected archives for them.
	hits, err := detectLayoutComponents(a.store, uniqueFileNames(sources))
	if err != nil {
		return nil, err
	}

	inClosure := make(map[string]bool, len(opts.Closure))
	for _, v := range opts.Closure {
		inClosure[v.Key()] = true
	}
	for _, hit := range hits {
		if inClosure[hit.version.Key()] {
			continue
		}
		inClosure[hit.version.Key()] = true
		sources = append(sources, bundleSource{version: hit.version, fileName: hit.sourceFileName})
	}

	manifestComponents := make([]models.ComponentVersion, 0, len(sources))
	for _, s := range sources {
		manifestComponents = append(manifestComponents, s.version)
	}
	sortComponents(manifestComponents)
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].version.Key() < sources[j].version.Key()
	})

	manifest := BuildManifest(opts.Title, opts.Language, opts.RootComponent, manifestComponents)

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output archive: %w", err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(opts.OutputPath)
		}
	}()

	zw := zip.NewWriter(out)
	bundled, err := a.writeArchive(zw, manifest, opts, sources)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if err = out.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize output archive: %w", err)
	}

	if err = verifyNoDirectoryEntries(opts.OutputPath); err != nil {
		return nil, err
	}

	digest, err := hashFile(opts.OutputPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		OutputPath:   opts.OutputPath,
		Manifest:     manifest,
		BundledFiles: bundled,
		SHA256:       digest,
	}, nil
}

func (a *Assembler) writeArchive(zw *zip.Writer, manifest models.Manifest, opts Options, sources []bundleSource) (int, error) {
	manifestJSON, err := ManifestToJSON(manifest)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := addEntry(zw, models.ManifestFileName, manifestJSON); err != nil {
		return 0, err
	}

	if err := addEntry(zw, models.ContentFileName, opts.Content); err != nil {
		return 0, err
	}

	media := make([]MediaFile, len(opts.Media))
	copy(media, opts.Media)
	sort.Slice(media, func(i, j int) bool { return media[i].Path < media[j].Path })
	for _, m := range media {
		rel := strings.TrimPrefix(path.Clean(strings.ReplaceAll(m.Path, "\\", "/")), "/")
		if rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
			return 0, fmt.Errorf("invalid media path %q", m.Path)
		}
		if err := addEntry(zw, models.ContentDir+rel, m.Data); err != nil {
			return 0, err
		}
	}

	written := make(map[string]bool)
	bundled := 0
	for _, src := range sources {
		n, err := a.copyComponentTree(zw, src, written)
		if err != nil {
			return 0, err
		}
		bundled += n
	}
	return bundled, nil
}

// copyComponentTree copies every file under a component's directory prefix
// from its source archive, skipping pure directory entries. The prefix is
// matched case-insensitively: cache contents with drifted casing still
// bundle, mirroring the cache lookup's fallback.
func (a *Assembler) copyComponentTree(zw *zip.Writer, src bundleSource, written map[string]bool) (int, error) {
	rc, err := a.store.OpenArchive(src.fileName)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	prefix := strings.ToLower(src.version.DirName()) + "/"
	copied := 0

	for _, f := range rc.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}
		if isDirectoryEntry(f) {
			continue
		}
		if written[name] {
			continue
		}
		written[name] = true

		if err := copyEntry(zw, f); err != nil {
			return 0, err
		}
		copied++
	}

	if copied == 0 {
		return 0, &BundleError{
			Component: src.version.Key(),
			Reason:    fmt.Sprintf("archive %s holds no files under %s/", src.fileName, src.version.DirName()),
		}
	}
	return copied, nil
}

func uniqueFileNames(sources []bundleSource) []string {
	seen := make(map[string]bool, len(sources))
	var names []string
	for _, s := range sources {
		if seen[s.fileName] {
			continue
		}
		seen[s.fileName] = true
		names = append(names, s.fileName)
	}
	return names
}

func sortComponents(components []models.ComponentVersion) {
	sort.Slice(components, func(i, j int) bool {
		if components[i].MachineName != components[j].MachineName {
			return components[i].MachineName < components[j].MachineName
		}
		if components[i].Major != components[j].Major {
			return components[i].Major < components[j].Major
		}
		return components[i].Minor < components[j].Minor
	})
}

func hashFile(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
