// Package cache reads the local component cache: a directory of component
// archives, one per component, named either MachineName.cpk (legacy,
// unversioned) or MachineName-Major.Minor.cpk. The store is strictly
// read-only; cache population belongs to external tooling, so concurrent
// builds may share one cache directory without coordination.
package cache

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edupack/edupack/internal/models"
)

// Store provides name-matched access to cached component archives.
type Store struct {
	dir string
}

// NewStore opens a cache directory. The directory does not have to exist;
// an absent directory simply behaves as an empty cache.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// List returns the archive file names currently in the cache, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), models.ArchiveExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Find locates the best cached archive for a requested component name.
// A case-sensitive match yields status Ok; when only a case-insensitive
// match exists the entry is reported as CaseMismatch so operators can fix
// the cache contents, but builds may still proceed with it.
func (s *Store) Find(name string) (models.CacheEntry, error) {
	names, err := s.List()
	if err != nil {
		return models.CacheEntry{}, err
	}

	entry := models.CacheEntry{RequestedName: name, Status: models.CacheNotFound}

	if match, ok := bestMatch(names, name, false); ok {
		entry.Status = models.CacheOk
		entry.MatchedFileName = match
		entry.ResolvedVersion = versionOf(name, match)
		return entry, nil
	}

	if match, ok := bestMatch(names, name, true); ok {
		entry.Status = models.CacheCaseMismatch
		entry.MatchedFileName = match
		entry.ResolvedVersion = versionOf(models.NormalizeName(match), match)
		entry.Detail = fmt.Sprintf("requested %q matched %q only case-insensitively", name, match)
		return entry, nil
	}

	return entry, nil
}

// FindExact locates a case-sensitive match only.
func (s *Store) FindExact(name string) (string, bool, error) {
	names, err := s.List()
	if err != nil {
		return "", false, err
	}
	match, ok := bestMatch(names, name, false)
	return match, ok, nil
}

// ExtractVersion parses the Major.Minor pair out of an archive file name.
// Legacy unversioned names report ok=false; that is not an error.
func ExtractVersion(fileName string) (major, minor uint, ok bool) {
	base := strings.TrimSuffix(fileName, models.ArchiveExt)
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0, 0, false
	}
	return models.ParseVersionSuffix(base[i+1:])
}

// matches reports whether a cache file name is a candidate for a requested
// component name: its base name equals the name, or starts with name + "-"
// (the versioned naming convention).
func matches(fileName, name string, fold bool) bool {
	base := strings.TrimSuffix(fileName, models.ArchiveExt)
	if fold {
		base = strings.ToLower(base)
		name = strings.ToLower(name)
	}
	return base == name || strings.HasPrefix(base, name+"-")
}

// bestMatch selects among candidates by numerically highest (major, minor).
// String comparison would order 1.9 above 1.10; versions must be parsed.
func bestMatch(names []string, requested string, fold bool) (string, bool) {
	var (
		best        string
		bestMajor   uint
		bestMinor   uint
		bestVersion bool
		found       bool
	)

	for _, fileName := range names {
		if !matches(fileName, requested, fold) {
			continue
		}
		major, minor, versioned := ExtractVersion(fileName)
		switch {
		case !found:
		case versioned && !bestVersion:
			// versioned beats legacy unversioned
		case versioned && (major > bestMajor || (major == bestMajor && minor > bestMinor)):
		default:
			continue
		}
		best, bestMajor, bestMinor, bestVersion, found = fileName, major, minor, versioned, true
	}

	return best, found
}

func versionOf(name, fileName string) *models.ComponentVersion {
	major, minor, ok := ExtractVersion(fileName)
	if !ok {
		return nil
	}
	return &models.ComponentVersion{MachineName: name, Major: major, Minor: minor}
}

// OpenArchive opens a cached archive for reading.
func (s *Store) OpenArchive(fileName string) (*zip.ReadCloser, error) {
	rc, err := zip.OpenReader(filepath.Join(s.dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open cached archive %s: %w", fileName, err)
	}
	return rc, nil
}

// ReadMetadata reads a component's self-describing descriptor from inside
// its cached archive.
func (s *Store) ReadMetadata(fileName string) (*models.ComponentMetadata, error) {
	return ReadMetadataFromFile(filepath.Join(s.dir, fileName))
}

// ReadMetadataFromFile reads a component descriptor out of an archive at an
// arbitrary path, e.g. one just downloaded and not yet placed in the cache.
func ReadMetadataFromFile(path string) (*models.ComponentMetadata, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer rc.Close()

	fileName := filepath.Base(path)
	for _, f := range rc.File {
		if !isDescriptor(f.Name) {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open descriptor in %s: %w", fileName, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor in %s: %w", fileName, err)
		}

		var meta models.ComponentMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("corrupt descriptor in %s: %w", fileName, err)
		}
		return &meta, nil
	}

	return nil, fmt.Errorf("archive %s has no %s descriptor", fileName, models.DescriptorFileName)
}

// isDescriptor matches Name-Major.Minor/component.json at the archive root.
func isDescriptor(entryName string) bool {
	entryName = strings.ReplaceAll(entryName, "\\", "/")
	parts := strings.Split(entryName, "/")
	return len(parts) == 2 && parts[1] == models.DescriptorFileName
}
