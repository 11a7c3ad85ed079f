// Package differ compares the manifest of a previously built package against
// a freshly resolved dependency closure, reporting component drift: versions
// that moved, components that appeared or vanished, and top-level metadata
// edits. The consuming runtime is unforgiving about exactness, so a drifted
// manifest usually means the package must be rebuilt.
package differ

import (
	"fmt"

	"github.com/edupack/edupack/internal/models"
	"github.com/wI2L/jsondiff"
)

// DriftType enum
type DriftType string

const (
	DriftComponentAdded   DriftType = "COMPONENT_ADDED"
	DriftComponentRemoved DriftType = "COMPONENT_REMOVED"
	DriftVersionChanged   DriftType = "VERSION_CHANGED"
	DriftMetadataChanged  DriftType = "METADATA_CHANGED"
)

// SeverityLevel ranks how likely a drift is to break the built package.
type SeverityLevel int

const (
	SeverityInfo SeverityLevel = iota
	SeverityModerate
	SeverityCritical
)

// SeverityString to lowercase
func SeverityString(s SeverityLevel) string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityModerate:
		return "moderate"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// DriftItem details
type DriftItem struct {
	Type       DriftType
	Severity   SeverityLevel
	Identifier string // component machine name, or a JSON pointer for metadata
	OldValue   string
	NewValue   string
	Message    string
}

// Result details
type Result struct {
	HasDrift bool
	Drifts   []DriftItem
}

// Compare diffs a built package's manifest against the manifest a fresh
// resolve would produce today.
func Compare(built, current *models.Manifest) (*Result, error) {
	result := &Result{Drifts: []DriftItem{}}

	builtDeps := byName(built.Dependencies)
	currentDeps := byName(current.Dependencies)

	for name, old := range builtDeps {
		now, ok := currentDeps[name]
		if !ok {
			result.Drifts = append(result.Drifts, DriftItem{
				Type:       DriftComponentRemoved,
				Severity:   SeverityCritical,
				Identifier: name,
				OldValue:   versionString(old),
				Message:    fmt.Sprintf("component %s is no longer in the resolved closure", name),
			})
			continue
		}
		if old.Major != now.Major || old.Minor != now.Minor {
			severity := SeverityModerate
			if old.Major != now.Major {
				severity = SeverityCritical
			}
			result.Drifts = append(result.Drifts, DriftItem{
				Type:       DriftVersionChanged,
				Severity:   severity,
				Identifier: name,
				OldValue:   versionString(old),
				NewValue:   versionString(now),
				Message:    fmt.Sprintf("component %s moved from %s to %s", name, versionString(old), versionString(now)),
			})
		}
	}

	for name, now := range currentDeps {
		if _, ok := builtDeps[name]; ok {
			continue
		}
		result.Drifts = append(result.Drifts, DriftItem{
			Type:       DriftComponentAdded,
			Severity:   SeverityModerate,
			Identifier: name,
			NewValue:   versionString(now),
			Message:    fmt.Sprintf("component %s is newly required", name),
		})
	}

	metadataDrifts, err := compareMetadata(built, current)
	if err != nil {
		return nil, fmt.Errorf("failed to compare manifest metadata: %w", err)
	}
	result.Drifts = append(result.Drifts, metadataDrifts...)

	result.HasDrift = len(result.Drifts) > 0
	return result, nil
}

// compareMetadata diffs the non-dependency manifest fields as JSON patches.
func compareMetadata(built, current *models.Manifest) ([]DriftItem, error) {
	strippedBuilt := *built
	strippedBuilt.Dependencies = nil
	strippedCurrent := *current
	strippedCurrent.Dependencies = nil

	patch, err := jsondiff.Compare(strippedBuilt, strippedCurrent)
	if err != nil {
		return nil, err
	}

	var drifts []DriftItem
	for _, op := range patch {
		drifts = append(drifts, DriftItem{
			Type:       DriftMetadataChanged,
			Severity:   SeverityInfo,
			Identifier: op.Path,
			OldValue:   fmt.Sprintf("%v", op.OldValue),
			NewValue:   fmt.Sprintf("%v", op.Value),
			Message:    fmt.Sprintf("manifest field %s changed", op.Path),
		})
	}
	return drifts, nil
}

func byName(deps []models.ComponentVersion) map[string]models.ComponentVersion {
	out := make(map[string]models.ComponentVersion, len(deps))
	for _, d := range deps {
		out[d.MachineName] = d
	}
	return out
}

func versionString(v models.ComponentVersion) string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
