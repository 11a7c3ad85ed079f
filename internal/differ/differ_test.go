package differ

import (
	"testing"

	"github.com/edupack/edupack/internal/models"
)

func manifest(title string, deps ...models.ComponentVersion) *models.Manifest {
	return &models.Manifest{
		Title:         title,
		Language:      "en",
		MainComponent: "A",
		Embed:         []string{"div"},
		Dependencies:  deps,
	}
}

func version(name string, major, minor uint) models.ComponentVersion {
	return models.ComponentVersion{MachineName: name, Major: major, Minor: minor}
}

func TestCompareNoDrift(t *testing.T) {
	built := manifest("T", version("A", 1, 0), version("B", 1, 2))
	current := manifest("T", version("A", 1, 0), version("B", 1, 2))

	result, err := Compare(built, current)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if result.HasDrift {
		t.Errorf("expected no drift, got %+v", result.Drifts)
	}
}

func TestCompareVersionChanges(t *testing.T) {
	built := manifest("T", version("A", 1, 0), version("B", 1, 2))
	current := manifest("T", version("A", 2, 0), version("B", 1, 3))

	result, err := Compare(built, current)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Drifts) != 2 {
		t.Fatalf("expected 2 drifts, got %+v", result.Drifts)
	}

	bySeverity := map[string]SeverityLevel{}
	for _, d := range result.Drifts {
		if d.Type != DriftVersionChanged {
			t.Errorf("expected VERSION_CHANGED, got %s", d.Type)
		}
		bySeverity[d.Identifier] = d.Severity
	}

	// a major bump can break the runtime; a minor bump is a warning
	if bySeverity["A"] != SeverityCritical {
		t.Errorf("major bump should be critical, got %s", SeverityString(bySeverity["A"]))
	}
	if bySeverity["B"] != SeverityModerate {
		t.Errorf("minor bump should be moderate, got %s", SeverityString(bySeverity["B"]))
	}
}

func TestCompareAddedAndRemoved(t *testing.T) {
	built := manifest("T", version("A", 1, 0), version("Old", 1, 0))
	current := manifest("T", version("A", 1, 0), version("New", 1, 0))

	result, err := Compare(built, current)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	types := map[DriftType]string{}
	for _, d := range result.Drifts {
		types[d.Type] = d.Identifier
	}
	if types[DriftComponentRemoved] != "Old" {
		t.Errorf("expected Old removed, got %+v", result.Drifts)
	}
	if types[DriftComponentAdded] != "New" {
		t.Errorf("expected New added, got %+v", result.Drifts)
	}
}

func TestCompareMetadataDrift(t *testing.T) {
	built := manifest("Old Title", version("A", 1, 0))
	current := manifest("New Title", version("A", 1, 0))

	result, err := Compare(built, current)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(result.Drifts) != 1 {
		t.Fatalf("expected 1 metadata drift, got %+v", result.Drifts)
	}

	drift := result.Drifts[0]
	if drift.Type != DriftMetadataChanged || drift.Severity != SeverityInfo {
		t.Errorf("unexpected drift: %+v", drift)
	}
	if drift.Identifier != "/title" {
		t.Errorf("expected /title pointer, got %s", drift.Identifier)
	}
}

func TestSeverityString(t *testing.T) {
	if SeverityString(SeverityCritical) != "critical" {
		t.Error("critical mapping broken")
	}
	if SeverityString(SeverityLevel(99)) != "unknown" {
		t.Error("unknown mapping broken")
	}
}
