package assembler

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/edupack/edupack/internal/models"
)

// BuildManifest lists every component of the bundle set in the top-level
// package manifest. A pure data transform; it cannot fail once the bundle
// set is non-empty.
func BuildManifest(title, language, rootComponent string, components []models.ComponentVersion) models.Manifest {
	if language == "" {
		language = "en"
	}
	return models.Manifest{
		Title:         title,
		Language:      language,
		MainComponent: rootComponent,
		Embed:         []string{"div"},
		Dependencies:  components,
	}
}

// ManifestToJSON serializes a manifest deterministically.
func ManifestToJSON(m models.Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ReadManifest reads the manifest back out of a built package archive.
func ReadManifest(packagePath string) (*models.Manifest, error) {
	rc, err := zip.OpenReader(packagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", packagePath, err)
	}
	defer rc.Close()

	for _, f := range rc.File {
		if f.Name != models.ManifestFileName {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest in %s: %w", packagePath, err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest in %s: %w", packagePath, err)
		}

		var manifest models.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("corrupt manifest in %s: %w", packagePath, err)
		}
		return &manifest, nil
	}

	return nil, fmt.Errorf("package %s has no %s", packagePath, models.ManifestFileName)
}
