package cache

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/edupack/edupack/internal/models"
)

// writeArchive creates a minimal cached component archive: a zip holding a
// Name-Major.Minor/component.json descriptor plus any extra files given as
// entryName -> content.
func writeArchive(t *testing.T, dir, fileName string, meta models.ComponentMetadata, extra map[string]string) {
	t.Helper()

	f, err := os.Create(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("failed to marshal descriptor: %v", err)
	}

	w, err := zw.Create(meta.DirName() + "/" + models.DescriptorFileName)
	if err != nil {
		t.Fatalf("failed to create descriptor entry: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	for name, content := range extra {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %s: %v", name, err)
		}
	}
}

func component(name string, major, minor uint, deps ...models.ComponentVersion) models.ComponentMetadata {
	return models.ComponentMetadata{
		ComponentVersion:      models.ComponentVersion{MachineName: name, Major: major, Minor: minor},
		Runnable:              1,
		PreloadedDependencies: deps,
	}
}

func TestFindExactMatch(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "Course.Quiz-1.4.cpk", component("Course.Quiz", 1, 4), nil)

	store := NewStore(dir)
	entry, err := store.Find("Course.Quiz")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if entry.Status != models.CacheOk {
		t.Errorf("expected ok, got %s", entry.Status)
	}
	if entry.MatchedFileName != "Course.Quiz-1.4.cpk" {
		t.Errorf("unexpected match: %s", entry.MatchedFileName)
	}
	if entry.ResolvedVersion == nil || entry.ResolvedVersion.Major != 1 || entry.ResolvedVersion.Minor != 4 {
		t.Errorf("unexpected resolved version: %+v", entry.ResolvedVersion)
	}
}

func TestFindCaseInsensitiveFallback(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "Foo.Bar-2.1.cpk", component("Foo.Bar", 2, 1), nil)

	store := NewStore(dir)
	entry, err := store.Find("foo.bar")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if entry.Status != models.CacheCaseMismatch {
		t.Errorf("expected case_mismatch, got %s", entry.Status)
	}
	if entry.MatchedFileName != "Foo.Bar-2.1.cpk" {
		t.Errorf("unexpected match: %s", entry.MatchedFileName)
	}
}

func TestFindPicksNumericallyHighestVersion(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "Course.Quiz-1.2.cpk", component("Course.Quiz", 1, 2), nil)
	writeArchive(t, dir, "Course.Quiz-1.9.cpk", component("Course.Quiz", 1, 9), nil)
	writeArchive(t, dir, "Course.Quiz-1.10.cpk", component("Course.Quiz", 1, 10), nil)

	store := NewStore(dir)
	entry, err := store.Find("Course.Quiz")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	// 1.10 sorts above 1.9 numerically even though it sorts below as a string
	if entry.MatchedFileName != "Course.Quiz-1.10.cpk" {
		t.Errorf("expected Course.Quiz-1.10.cpk, got %s", entry.MatchedFileName)
	}
}

func TestFindPrefersVersionedOverLegacy(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "Course.Quiz.cpk", component("Course.Quiz", 1, 0), nil)
	writeArchive(t, dir, "Course.Quiz-1.4.cpk", component("Course.Quiz", 1, 4), nil)

	store := NewStore(dir)
	entry, err := store.Find("Course.Quiz")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if entry.MatchedFileName != "Course.Quiz-1.4.cpk" {
		t.Errorf("expected versioned archive, got %s", entry.MatchedFileName)
	}
}

func TestFindDoesNotMatchNamePrefixOfOtherComponent(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "Course.QuizAdvanced-1.0.cpk", component("Course.QuizAdvanced", 1, 0), nil)

	store := NewStore(dir)
	entry, err := store.Find("Course.Quiz")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if entry.Status != models.CacheNotFound {
		t.Errorf("expected not_found, got %s (%s)", entry.Status, entry.MatchedFileName)
	}
}

func TestFindMissingCache(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	entry, err := store.Find("Course.Quiz")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if entry.Status != models.CacheNotFound {
		t.Errorf("expected not_found, got %s", entry.Status)
	}
}

func TestExtractVersion(t *testing.T) {
	for _, tc := range []struct {
		fileName     string
		major, minor uint
		ok           bool
	}{
		{"Course.Quiz-1.4.cpk", 1, 4, true},
		{"Course.Quiz-1.10.cpk", 1, 10, true},
		{"Course.Quiz.cpk", 0, 0, false},
		{"Course-With-Dashes-2.0.cpk", 2, 0, true},
		{"Broken-1..cpk", 0, 0, false},
	} {
		major, minor, ok := ExtractVersion(tc.fileName)
		if ok != tc.ok || major != tc.major || minor != tc.minor {
			t.Errorf("%s: got %d.%d ok=%v, want %d.%d ok=%v",
				tc.fileName, major, minor, ok, tc.major, tc.minor, tc.ok)
		}
	}
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()
	dep := models.ComponentVersion{MachineName: "Course.Text", Major: 1, Minor: 0}
	meta := component("Course.Quiz", 1, 4, dep)
	meta.Schema = json.RawMessage(`[{"name": "title", "type": "text"}]`)
	writeArchive(t, dir, "Course.Quiz-1.4.cpk", meta, map[string]string{
		"Course.Quiz-1.4/quiz.js": "// js",
	})

	store := NewStore(dir)
	got, err := store.ReadMetadata("Course.Quiz-1.4.cpk")
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}

	if got.MachineName != "Course.Quiz" || got.Major != 1 || got.Minor != 4 {
		t.Errorf("unexpected identity: %+v", got.ComponentVersion)
	}
	if len(got.PreloadedDependencies) != 1 || !got.PreloadedDependencies[0].SameDependency(dep) {
		t.Errorf("unexpected dependencies: %+v", got.PreloadedDependencies)
	}
	if len(got.Schema) == 0 {
		t.Error("expected schema to be carried through")
	}
}

func TestReadMetadataMissingDescriptor(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "Empty-1.0.cpk"))
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	zw.Close()
	f.Close()

	store := NewStore(dir)
	if _, err := store.ReadMetadata("Empty-1.0.cpk"); err == nil {
		t.Fatal("expected error for archive without descriptor")
	}
}
