// Package preflight diffs a resolved component list against the local cache
// before assembly touches anything. It is purely diagnostic: entries report
// how each requirement matched, the cache is never modified, and nothing here
// decides pass or fail; that is the caller's (or the policy engine's) call.
package preflight

import (
	"fmt"

	"github.com/edupack/edupack/internal/cache"
	"github.com/edupack/edupack/internal/models"
)

// Report aggregates the per-component diagnostics of one preflight pass.
type Report struct {
	Entries []models.CacheEntry `json:"entries"`
	Summary Summary             `json:"summary"`
}

// Summary counts entries by status.
type Summary struct {
	Ok              int `json:"ok"`
	CaseMismatch    int `json:"caseMismatch"`
	VersionMismatch int `json:"versionMismatch"`
	NotFound        int `json:"notFound"`
	Total           int `json:"total"`
}

// Clean reports whether every requirement matched exactly.
func (s Summary) Clean() bool {
	return s.Ok == s.Total
}

func (r *Report) add(entry models.CacheEntry) {
	r.Entries = append(r.Entries, entry)
	switch entry.Status {
	case models.CacheOk:
		r.Summary.Ok++
	case models.CacheCaseMismatch:
		r.Summary.CaseMismatch++
	case models.CacheVersionMismatch:
		r.Summary.VersionMismatch++
	case models.CacheNotFound:
		r.Summary.NotFound++
	}
	r.Summary.Total++
}

// ValidateAll classifies every required component against the cache.
//
// An exact match without an extractable version is a legacy unversioned
// archive and still counts as Ok. A case-insensitive match is a warning, not
// a failure; builds may proceed with it. NotFound only becomes fatal later,
// at bundle time, if no remote source can supply the component either.
func ValidateAll(store *cache.Store, requiredNames []string) (*Report, error) {
	report := &Report{Entries: make([]models.CacheEntry, 0, len(requiredNames))}

	for _, name := range requiredNames {
		entry, err := store.Find(name)
		if err != nil {
			return nil, fmt.Errorf("preflight lookup for %q failed: %w", name, err)
		}
		report.add(entry)
	}

	return report, nil
}

// ValidateClosure classifies a resolved closure against the cache, versions
// included: each component's declared major.minor is checked against what the
// matched archive actually holds. Name-only findings (case mismatches,
// missing archives) come out the same way ValidateAll reports them.
func ValidateClosure(store *cache.Store, components []models.ComponentVersion) (*Report, error) {
	report := &Report{Entries: make([]models.CacheEntry, 0, len(components))}

	for _, c := range components {
		entry, err := CheckVersionMismatch(store, c.MachineName, c)
		if err != nil {
			return nil, err
		}
		report.add(entry)
	}

	return report, nil
}

// CheckVersionMismatch compares a caller-declared expected version against
// what the cache actually holds. A mismatch is reported, never raised; the
// caller decides whether it matters.
func CheckVersionMismatch(store *cache.Store, name string, declared models.ComponentVersion) (models.CacheEntry, error) {
	entry, err := store.Find(name)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("version check lookup for %q failed: %w", name, err)
	}
	if entry.Status == models.CacheNotFound {
		return entry, nil
	}

	// Find already settled the name match, case drift included, so only the
	// version numbers are compared here. An archive with the right version
	// under a differently-cased name keeps its case_mismatch status.
	if entry.ResolvedVersion != nil &&
		(entry.ResolvedVersion.Major != declared.Major || entry.ResolvedVersion.Minor != declared.Minor) {
		entry.Status = models.CacheVersionMismatch
		entry.Detail = fmt.Sprintf("declared %d.%d but cache holds %d.%d",
			declared.Major, declared.Minor,
			entry.ResolvedVersion.Major, entry.ResolvedVersion.Minor)
	}
	return entry, nil
}
