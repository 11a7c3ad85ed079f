package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/edupack/edupack/internal/differ"
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/preflight"
)

// FailOnLevel threshold for failure
type FailOnLevel string

const (
	FailOnCritical FailOnLevel = "critical"
	FailOnModerate FailOnLevel = "moderate"
	FailOnInfo     FailOnLevel = "info"
)

// ParseFailOnLevel from string
func ParseFailOnLevel(s string) (FailOnLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return FailOnCritical, nil
	case "moderate":
		return FailOnModerate, nil
	case "info":
		return FailOnInfo, nil
	default:
		return "", fmt.Errorf("invalid fail-on level: %s (use critical, moderate, or info)", s)
	}
}

// ShouldFail checks limits
func (f FailOnLevel) ShouldFail(severity differ.SeverityLevel) bool {
	switch f {
	case FailOnCritical:
		return severity == differ.SeverityCritical
	case FailOnModerate:
		return severity >= differ.SeverityModerate
	case FailOnInfo:
		return true // all severities fail
	default:
		return severity == differ.SeverityCritical
	}
}

// StatusSeverity ranks a cache status. A missing component breaks the build
// outright; a stale version likely breaks it at render time; a case-only
// mismatch still assembles and runs.
func StatusSeverity(status models.CacheStatus) differ.SeverityLevel {
	switch status {
	case models.CacheNotFound:
		return differ.SeverityCritical
	case models.CacheVersionMismatch:
		return differ.SeverityModerate
	default:
		return differ.SeverityInfo
	}
}

// CheckResult output structure
type CheckResult struct {
	Root     string            `json:"root"`
	CacheDir string            `json:"cacheDir"`
	Summary  preflight.Summary `json:"summary"`
	Problems []ProblemItem     `json:"problems"`
	Policy   *PolicyDecision   `json:"policy,omitempty"`
	FailOn   string            `json:"failOn"`
	Outcome  string            `json:"outcome"` // "PASS" or "FAIL"
}

// ProblemItem detail for every non-exact cache match
type ProblemItem struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Severity  string `json:"severity"`
	Matched   string `json:"matched,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// PolicyDecision result
type PolicyDecision struct {
	Preset  string   `json:"preset"`
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons,omitempty"`
}

// BuildCheckResult from components
func BuildCheckResult(
	root string,
	cacheDir string,
	report *preflight.Report,
	policyResults []models.PolicyResult,
	policyPreset string,
	failOn FailOnLevel,
) *CheckResult {
	result := &CheckResult{
		Root:     root,
		CacheDir: cacheDir,
		Problems: []ProblemItem{},
		FailOn:   string(failOn),
		Outcome:  "PASS",
	}

	if report != nil {
		result.Summary = report.Summary
		for _, e := range report.Entries {
			if e.Status == models.CacheOk {
				continue
			}
			result.Problems = append(result.Problems, ProblemItem{
				Component: e.RequestedName,
				Status:    string(e.Status),
				Severity:  differ.SeverityString(StatusSeverity(e.Status)),
				Matched:   e.MatchedFileName,
				Detail:    e.Detail,
			})
		}
	}

	if len(policyResults) > 0 {
		decision := &PolicyDecision{
			Preset: policyPreset,
			Passed: true,
		}
		for _, pr := range policyResults {
			if !pr.Passed && pr.Severity == models.PolicySeverityError {
				decision.Passed = false
				decision.Reasons = append(decision.Reasons, fmt.Sprintf("%s: %s", pr.RuleName, pr.FailureMsg))
			}
		}
		result.Policy = decision
	}

	if result.Policy != nil && !result.Policy.Passed {
		result.Outcome = "FAIL"
	} else if shouldFailOnProblems(report, failOn) {
		result.Outcome = "FAIL"
	}

	return result
}

// shouldFailOnProblems checks threshold
func shouldFailOnProblems(report *preflight.Report, failOn FailOnLevel) bool {
	if report == nil || report.Summary.Clean() {
		return false
	}
	for _, e := range report.Entries {
		if e.Status == models.CacheOk {
			continue
		}
		if failOn.ShouldFail(StatusSeverity(e.Status)) {
			return true
		}
	}
	return false
}

// FormatTextOutput human readable
func FormatTextOutput(result *CheckResult) string {
	var sb strings.Builder

	policyName := "none"
	if result.Policy != nil {
		policyName = result.Policy.Preset
	}

	if result.Outcome == "PASS" {
		sb.WriteString(fmt.Sprintf("%sedupack check: PASS%s (policy=%s, fail-on=%s)\n",
			colorGreen, colorReset, policyName, result.FailOn))
	} else {
		sb.WriteString(fmt.Sprintf("%sedupack check: FAIL%s (policy=%s, fail-on=%s)\n",
			colorRed, colorReset, policyName, result.FailOn))
	}

	sb.WriteString(fmt.Sprintf("Root: %s\n", result.Root))
	sb.WriteString(fmt.Sprintf("Cache: %s (%d of %d exact)\n", result.CacheDir, result.Summary.Ok, result.Summary.Total))
	sb.WriteString("\n")

	if len(result.Problems) > 0 {
		groups := groupProblemsBySeverity(result.Problems)

		if len(groups["critical"]) > 0 {
			sb.WriteString(fmt.Sprintf("%sCRITICAL (%d)%s\n", colorRed, len(groups["critical"]), colorReset))
			for _, p := range groups["critical"] {
				formatProblemItem(&sb, p, colorRed)
			}
			sb.WriteString("\n")
		}

		if len(groups["moderate"]) > 0 {
			sb.WriteString(fmt.Sprintf("%sMODERATE (%d)%s\n", colorYellow, len(groups["moderate"]), colorReset))
			for _, p := range groups["moderate"] {
				formatProblemItem(&sb, p, colorYellow)
			}
			sb.WriteString("\n")
		}

		if len(groups["info"]) > 0 {
			sb.WriteString(fmt.Sprintf("INFO (%d)\n", len(groups["info"])))
			for _, p := range groups["info"] {
				formatProblemItem(&sb, p, "")
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("%s✓ Every component matched the cache exactly%s\n\n", colorGreen, colorReset))
	}

	if result.Policy != nil {
		if result.Policy.Passed {
			sb.WriteString(fmt.Sprintf("Policy: %sPASS%s\n", colorGreen, colorReset))
		} else {
			sb.WriteString(fmt.Sprintf("Policy: %sDENY%s\n", colorRed, colorReset))
			for _, reason := range result.Policy.Reasons {
				sb.WriteString(fmt.Sprintf("- %s\n", reason))
			}
		}
	}

	return sb.String()
}

// groupProblemsBySeverity helper
func groupProblemsBySeverity(problems []ProblemItem) map[string][]ProblemItem {
	groups := map[string][]ProblemItem{
		"critical": {},
		"moderate": {},
		"info":     {},
	}

	for _, p := range problems {
		groups[p.Severity] = append(groups[p.Severity], p)
	}

	// Sort each group by component for deterministic output
	for k := range groups {
		sort.Slice(groups[k], func(i, j int) bool {
			return groups[k][i].Component < groups[k][j].Component
		})
	}

	return groups
}

func formatProblemItem(sb *strings.Builder, p ProblemItem, color string) {
	if color != "" {
		sb.WriteString(fmt.Sprintf("%s- %s: %s%s\n", color, p.Status, p.Component, colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", p.Status, p.Component))
	}

	if p.Matched != "" {
		sb.WriteString(fmt.Sprintf("    matched %s\n", p.Matched))
	}
	if p.Detail != "" {
		sb.WriteString(fmt.Sprintf("    %s\n", p.Detail))
	}
}

// FormatJSONOutput raw json
func FormatJSONOutput(result *CheckResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}
