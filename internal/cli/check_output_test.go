package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/edupack/edupack/internal/differ"
	"github.com/edupack/edupack/internal/models"
	"github.com/edupack/edupack/internal/preflight"
)

func TestParseFailOnLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    FailOnLevel
		wantErr bool
	}{
		{"critical", FailOnCritical, false},
		{"moderate", FailOnModerate, false},
		{"info", FailOnInfo, false},
		{"CRITICAL", FailOnCritical, false},
		{"bogus", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFailOnLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFailOnLevel(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFailOnLevel(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFailOnLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStatusSeverity(t *testing.T) {
	if StatusSeverity(models.CacheNotFound) != differ.SeverityCritical {
		t.Error("not_found should be critical")
	}
	if StatusSeverity(models.CacheVersionMismatch) != differ.SeverityModerate {
		t.Error("version_mismatch should be moderate")
	}
	if StatusSeverity(models.CacheCaseMismatch) != differ.SeverityInfo {
		t.Error("case_mismatch should be info")
	}
}

func report(entries ...models.CacheEntry) *preflight.Report {
	r := &preflight.Report{Entries: entries}
	for _, e := range entries {
		switch e.Status {
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
	return r
}

func TestBuildCheckResultCleanCachePasses(t *testing.T) {
	rep := report(
		models.CacheEntry{RequestedName: "Course.Quiz", Status: models.CacheOk},
		models.CacheEntry{RequestedName: "Media.Image", Status: models.CacheOk},
	)

	result := BuildCheckResult("Course.Quiz", "components", rep, nil, "", FailOnInfo)

	if result.Outcome != "PASS" {
		t.Errorf("Outcome = %q, want PASS", result.Outcome)
	}
	if len(result.Problems) != 0 {
		t.Errorf("Problems = %+v, want none", result.Problems)
	}
}

func TestBuildCheckResultFailOnThreshold(t *testing.T) {
	rep := report(
		models.CacheEntry{RequestedName: "Course.Quiz", Status: models.CacheOk},
		models.CacheEntry{RequestedName: "media.image", Status: models.CacheCaseMismatch, MatchedFileName: "Media.Image-1.0.cpk"},
	)

	// Case mismatch is info severity: default threshold passes, info fails.
	if got := BuildCheckResult("Course.Quiz", "c", rep, nil, "", FailOnCritical); got.Outcome != "PASS" {
		t.Errorf("fail-on=critical: Outcome = %q, want PASS", got.Outcome)
	}
	if got := BuildCheckResult("Course.Quiz", "c", rep, nil, "", FailOnInfo); got.Outcome != "FAIL" {
		t.Errorf("fail-on=info: Outcome = %q, want FAIL", got.Outcome)
	}
}

func TestBuildCheckResultVersionMismatchIsModerate(t *testing.T) {
	rep := report(
		models.CacheEntry{
			RequestedName:   "Course.Text",
			Status:          models.CacheVersionMismatch,
			MatchedFileName: "Course.Text-1.0.cpk",
			Detail:          "declared 1.2 but cache holds 1.0",
		},
	)

	if got := BuildCheckResult("Course.Text", "c", rep, nil, "", FailOnCritical); got.Outcome != "PASS" {
		t.Errorf("fail-on=critical: Outcome = %q, want PASS", got.Outcome)
	}
	got := BuildCheckResult("Course.Text", "c", rep, nil, "", FailOnModerate)
	if got.Outcome != "FAIL" {
		t.Errorf("fail-on=moderate: Outcome = %q, want FAIL", got.Outcome)
	}
	if len(got.Problems) != 1 || got.Problems[0].Severity != "moderate" {
		t.Errorf("unexpected problems: %+v", got.Problems)
	}
}

func TestBuildCheckResultMissingComponentAlwaysFails(t *testing.T) {
	rep := report(
		models.CacheEntry{RequestedName: "Gone.Component", Status: models.CacheNotFound},
	)

	result := BuildCheckResult("Course.Quiz", "c", rep, nil, "", FailOnCritical)

	if result.Outcome != "FAIL" {
		t.Errorf("Outcome = %q, want FAIL", result.Outcome)
	}
	if len(result.Problems) != 1 || result.Problems[0].Severity != "critical" {
		t.Errorf("unexpected problems: %+v", result.Problems)
	}
}

func TestBuildCheckResultPolicyDenyOverridesCleanCache(t *testing.T) {
	rep := report(models.CacheEntry{RequestedName: "Course.Quiz", Status: models.CacheOk})

	policyResults := []models.PolicyResult{
		{RuleName: "no-legacy-archives", Passed: false, FailureMsg: "legacy archive in closure", Severity: models.PolicySeverityError},
	}

	result := BuildCheckResult("Course.Quiz", "c", rep, policyResults, "strict", FailOnCritical)

	if result.Outcome != "FAIL" {
		t.Errorf("Outcome = %q, want FAIL", result.Outcome)
	}
	if result.Policy == nil || result.Policy.Passed {
		t.Fatalf("policy decision = %+v, want failed", result.Policy)
	}
	if len(result.Policy.Reasons) != 1 || !strings.Contains(result.Policy.Reasons[0], "no-legacy-archives") {
		t.Errorf("unexpected reasons: %v", result.Policy.Reasons)
	}
}

func TestBuildCheckResultWarnPolicyStillPasses(t *testing.T) {
	rep := report(models.CacheEntry{RequestedName: "Course.Quiz", Status: models.CacheOk})

	policyResults := []models.PolicyResult{
		{RuleName: "prefer-versioned", Passed: false, FailureMsg: "legacy archive", Severity: models.PolicySeverityWarn},
	}

	result := BuildCheckResult("Course.Quiz", "c", rep, policyResults, "baseline", FailOnCritical)

	if result.Outcome != "PASS" {
		t.Errorf("Outcome = %q, want PASS (warn rules are non-fatal)", result.Outcome)
	}
	if result.Policy == nil || !result.Policy.Passed {
		t.Errorf("policy decision = %+v, want passed", result.Policy)
	}
}

func TestFormatJSONOutputRoundTrips(t *testing.T) {
	rep := report(
		models.CacheEntry{RequestedName: "Gone.Component", Status: models.CacheNotFound},
	)
	result := BuildCheckResult("Course.Quiz", "components", rep, nil, "", FailOnCritical)

	data, err := FormatJSONOutput(result)
	if err != nil {
		t.Fatalf("FormatJSONOutput failed: %v", err)
	}

	var decoded CheckResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Outcome != "FAIL" || decoded.Root != "Course.Quiz" {
		t.Errorf("round trip lost fields: %+v", decoded)
	}
}

func TestFormatTextOutputGroupsBySeverity(t *testing.T) {
	rep := report(
		models.CacheEntry{RequestedName: "Gone.Component", Status: models.CacheNotFound},
		models.CacheEntry{RequestedName: "media.image", Status: models.CacheCaseMismatch, MatchedFileName: "Media.Image-1.0.cpk"},
	)
	result := BuildCheckResult("Course.Quiz", "components", rep, nil, "", FailOnCritical)

	text := FormatTextOutput(result)

	if !strings.Contains(text, "CRITICAL (1)") {
		t.Errorf("missing critical group:\n%s", text)
	}
	if !strings.Contains(text, "INFO (1)") {
		t.Errorf("missing info group:\n%s", text)
	}
	if !strings.Contains(text, "matched Media.Image-1.0.cpk") {
		t.Errorf("missing matched file detail:\n%s", text)
	}
}
