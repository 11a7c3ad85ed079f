package policy

import (
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/preflight"
)

// BuildInput converts a preflight report and resolved closure into the map
// CEL rules evaluate against. Field names are part of the policy-file
// contract; renaming one breaks operator policies.
func BuildInput(report *preflight.Report, components []models.ComponentVersion) map[string]any {
	entries := make([]any, 0, len(report.Entries))
	for _, e := range report.Entries {
		entry := map[string]any{
			"requested_name": e.RequestedName,
			"matched_file":   e.MatchedFileName,
			"status":         string(e.Status),
		}
		if e.ResolvedVersion != nil {
			entry["resolved_version"] = e.ResolvedVersion.Key()
		}
		entries = append(entries, entry)
	}

	closure := make([]any, 0, len(components))
	for _, c := range components {
		closure = append(closure, c.Key())
	}

	return map[string]any{
		"entries":    entries,
		"components": closure,
		"summary": map[string]any{
			"ok":               report.Summary.Ok,
			"case_mismatch":    report.Summary.CaseMismatch,
			"version_mismatch": report.Summary.VersionMismatch,
			"not_found":        report.Summary.NotFound,
			"total":            report.Summary.Total,
		},
	}
}
