package fetcher

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/edupack/edupack/internal/models"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    SourceType
		wantErr bool
	}{
		{"https url", "https://components.example.com/Course.Quiz.cpk", SourceHTTPS, false},
		{"http url", "http://components.example.com/Course.Quiz.cpk", SourceHTTPS, false},
		{"oci ref", "oci://registry.example.com/components/course.quiz:1.4", SourceOCI, false},
		{"empty", "", "", true},
		{"bare oci prefix", "oci://", "", true},
		{"no scheme", "components.example.com/Course.Quiz.cpk", "", true},
		{"file scheme", "file:///tmp/Course.Quiz.cpk", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRef(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRef(%q) expected error, got %+v", tt.raw, ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q) failed: %v", tt.raw, err)
			}
			if ref.Type != tt.want {
				t.Errorf("ParseRef(%q) type = %q, want %q", tt.raw, ref.Type, tt.want)
			}
		})
	}
}

func writeFixtureArchive(t *testing.T, dir string, meta models.ComponentMetadata) string {
	t.Helper()

	path := filepath.Join(dir, "download.tmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(meta.DirName() + "/" + models.DescriptorFileName)
	if err != nil {
		t.Fatalf("failed to add descriptor: %v", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("failed to marshal descriptor: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}
	return path
}

func TestInstallUsesCanonicalFileName(t *testing.T) {
	tmp := t.TempDir()
	src := writeFixtureArchive(t, tmp, models.ComponentMetadata{
		ComponentVersion: models.ComponentVersion{MachineName: "Course.Quiz", Major: 1, Minor: 4, Patch: 7},
		Title:            "Quiz",
		Runnable:         1,
	})

	cacheDir := filepath.Join(tmp, "cache")
	f := &Fetcher{CacheDir: cacheDir}

	res, err := f.install(src, "deadbeef", "")
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}

	if res.FileName != "Course.Quiz-1.4.cpk" {
		t.Errorf("FileName = %q, want Course.Quiz-1.4.cpk", res.FileName)
	}
	if res.Component.MachineName != "Course.Quiz" || res.Component.Patch != 7 {
		t.Errorf("unexpected descriptor: %+v", res.Component)
	}
	if res.SHA256 != "deadbeef" {
		t.Errorf("SHA256 not carried through: %q", res.SHA256)
	}

	if _, err := os.Stat(filepath.Join(cacheDir, "Course.Quiz-1.4.cpk")); err != nil {
		t.Errorf("archive not installed in cache: %v", err)
	}

	// Source download remains; Fetch removes it via the transport's cleanup.
	if _, err := os.Stat(src); err != nil {
		t.Errorf("install should copy, not move: %v", err)
	}
}

func TestInstallReplacesExistingArchive(t *testing.T) {
	tmp := t.TempDir()
	cacheDir := filepath.Join(tmp, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(cacheDir, "Course.Quiz-1.4.cpk")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := writeFixtureArchive(t, tmp, models.ComponentMetadata{
		ComponentVersion: models.ComponentVersion{MachineName: "Course.Quiz", Major: 1, Minor: 4},
	})

	f := &Fetcher{CacheDir: cacheDir}
	if _, err := f.install(src, "", ""); err != nil {
		t.Fatalf("install over existing archive failed: %v", err)
	}

	data, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "stale" {
		t.Error("existing archive was not replaced")
	}
}

func TestInstallRejectsNonComponentArchive(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "notanarchive.cpk")
	if err := os.WriteFile(src, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &Fetcher{CacheDir: filepath.Join(tmp, "cache")}
	if _, err := f.install(src, "", ""); err == nil {
		t.Fatal("expected error for non-archive input")
	}
}
