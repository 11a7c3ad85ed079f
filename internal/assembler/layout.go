package assembler

import (
	"strings"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
)

// layoutComponents is the fixed table of structural wrapper components the
// content format nests every leaf item inside. They never appear in any
// preloadedDependencies list, so the resolver cannot discover them; the
// assembler adds them to the bundle whenever a selected source archive
// carries them. Keeping this an explicit table keeps the behavior auditable.
var layoutComponents = []string{
	"Layout.Column",
	"Layout.Row",
}

// layoutHit records a layout component found inside an already-selected
// source archive, together with the archive it can be copied from.
type layoutHit struct {
	version        models.ComponentVersion
	sourceFileName string
}

// detectLayoutComponents scans the already-selected source archives for
// directory prefixes matching a known layout component name, using the
// name-Major.Minor/ naming convention, compared case-insensitively. This
// step never fails: a layout component that cannot be found simply is not
// added, and bundling will fail loudly later if the runtime needed it.
func detectLayoutComponents(store *cache.Store, sourceFileNames []string) ([]layoutHit, error) {
	seen := make(map[string]bool)
	var hits []layoutHit

	for _, fileName := range sourceFileNames {
		rc, err := store.OpenArchive(fileName)
		if err != nil {
			return nil, err
		}

		for _, f := range rc.File {
			dir, ok := topLevelDir(f.Name)
			if !ok {
				continue
			}
			version, ok := matchLayoutDir(dir)
			if !ok || seen[version.Key()] {
				continue
			}
			seen[version.Key()] = true
			hits = append(hits, layoutHit{version: version, sourceFileName: fileName})
		}

		rc.Close()
	}

	return hits, nil
}

// EffectiveDependencies returns the dependency list a build of the given
// closure would record in its manifest: the closure itself plus any layout
// components detected inside the closure's cached archives, in canonical
// order. Components missing from the cache contribute no archive to scan and
// pass through unchanged; whether absence matters is the caller's concern.
func EffectiveDependencies(store *cache.Store, closure []models.ComponentVersion) ([]models.ComponentVersion, error) {
	seenFile := make(map[string]bool, len(closure))
	var fileNames []string
	for _, v := range closure {
		entry, err := store.Find(v.MachineName)
		if err != nil {
			return nil, err
		}
		if entry.Status == models.CacheNotFound || seenFile[entry.MatchedFileName] {
			continue
		}
		seenFile[entry.MatchedFileName] = true
		fileNames = append(fileNames, entry.MatchedFileName)
	}

	hits, err := detectLayoutComponents(store, fileNames)
	if err != nil {
		return nil, err
	}

	out := make([]models.ComponentVersion, 0, len(closure)+len(hits))
	out = append(out, closure...)
	present := make(map[string]bool, len(closure))
	for _, v := range closure {
		present[v.Key()] = true
	}
	for _, hit := range hits {
		if present[hit.version.Key()] {
			continue
		}
		present[hit.version.Key()] = true
		out = append(out, hit.version)
	}
	sortComponents(out)
	return out, nil
}

// topLevelDir extracts the first path segment of an archive entry name.
func topLevelDir(entryName string) (string, bool) {
	entryName = strings.ReplaceAll(entryName, "\\", "/")
	i := strings.Index(entryName, "/")
	if i <= 0 {
		return "", false
	}
	return entryName[:i], true
}

// matchLayoutDir matches a directory name like "Layout.Column-1.3" against
// the layout table and extracts its version.
func matchLayoutDir(dir string) (models.ComponentVersion, bool) {
	i := strings.LastIndex(dir, "-")
	if i <= 0 {
		return models.ComponentVersion{}, false
	}
	name, suffix := dir[:i], dir[i+1:]

	major, minor, ok := models.ParseVersionSuffix(suffix)
	if !ok {
		return models.ComponentVersion{}, false
	}

	for _, known := range layoutComponents {
		if strings.EqualFold(name, known) {
			// keep the canonical table casing in the manifest
			return models.ComponentVersion{MachineName: known, Major: major, Minor: minor}, true
		}
	}
	return models.ComponentVersion{}, false
}
