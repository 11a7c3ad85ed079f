package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ComponentVersion identifies one component. MachineName, Major and Minor form
// the identity key; Patch is carried as metadata only.
type ComponentVersion struct {
	MachineName string `json:"machineName"`
	Major       uint   `json:"majorVersion"`
	Minor       uint   `json:"minorVersion"`
	Patch       uint   `json:"patchVersion,omitempty"`
}

// Key returns the identity tuple used for deduplication. Patch is excluded.
func (v ComponentVersion) Key() string {
	return fmt.Sprintf("%s-%d.%d", v.MachineName, v.Major, v.Minor)
}

// DirName is the directory prefix a component's files live under inside an
// archive, e.g. "Course.Quiz-1.4".
func (v ComponentVersion) DirName() string {
	return fmt.Sprintf("%s-%d.%d", v.MachineName, v.Major, v.Minor)
}

// SameDependency reports whether two versions name the same dependency.
func (v ComponentVersion) SameDependency(o ComponentVersion) bool {
	return v.MachineName == o.MachineName && v.Major == o.Major && v.Minor == o.Minor
}

func (v ComponentVersion) String() string {
	return fmt.Sprintf("%s %d.%d.%d", v.MachineName, v.Major, v.Minor, v.Patch)
}

// ComponentMetadata is one component's declared contract, read from the
// component.json descriptor inside its cached archive. Immutable after load.
type ComponentMetadata struct {
	ComponentVersion

	Title    string `json:"title,omitempty"`
	Runnable int    `json:"runnable"`

	// Asset paths are carried through verbatim; the core never interprets them.
	PreloadedJS  []AssetPath `json:"preloadedJs,omitempty"`
	PreloadedCSS []AssetPath `json:"preloadedCss,omitempty"`

	PreloadedDependencies []ComponentVersion `json:"preloadedDependencies,omitempty"`

	// Schema is the raw field-schema declaration (a JSON array of field
	// definitions), parsed on demand by the schema package.
	Schema json.RawMessage `json:"schema,omitempty"`
}

// AssetPath wraps a single script or style path.
type AssetPath struct {
	Path string `json:"path"`
}

// IsRunnable reports whether the component can act as a package root.
func (m *ComponentMetadata) IsRunnable() bool {
	return m.Runnable == 1
}

// DescriptorFileName is the self-describing metadata file every cached
// component archive carries inside its top-level directory.
const DescriptorFileName = "component.json"

// ArchiveExt is the file extension of cached component archives.
const ArchiveExt = ".cpk"

// NormalizeName strips a trailing version suffix and the archive extension
// from a cache file name, returning the bare machine name portion.
func NormalizeName(fileName string) string {
	name := strings.TrimSuffix(fileName, ArchiveExt)
	if i := strings.LastIndex(name, "-"); i > 0 {
		if _, _, ok := ParseVersionSuffix(name[i+1:]); ok {
			return name[:i]
		}
	}
	return name
}

// ParseVersionSuffix parses a "Major.Minor" string into numeric parts.
func ParseVersionSuffix(s string) (major, minor uint, ok bool) {
	dot := strings.Index(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return 0, 0, false
	}
	maj, ok1 := parseUint(s[:dot])
	min, ok2 := parseUint(s[dot+1:])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return maj, min, true
}

func parseUint(s string) (uint, bool) {
	if s == "" {
		return 0, false
	}
	var n uint
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + uint(r-'0')
	}
	return n, true
}
