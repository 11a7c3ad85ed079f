package version

import (
	"runtime/debug"
)

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

// BuildVersion returns the module version, or "dev" if unavailable. A dev
// build carries the short VCS revision when the build info has one, so
// package manifests built from a checkout are still attributable.
func BuildVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		if rev := shortRevision(info); rev != "" {
			return "dev+" + rev
		}
		return "dev"
	}
	return info.Main.Version
}

func shortRevision(info *debug.BuildInfo) string {
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}
