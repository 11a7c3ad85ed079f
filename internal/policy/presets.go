package policy

import (
	"embed"
	"fmt"
	"os"

	"github.com/edupack/edupack/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetCache holds loaded presets to avoid re-parsing
var presetCache = map[string]*models.PolicyConfig{}

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

// GetPreset returns a policy preset by name, or nil if not found
func GetPreset(name string) *models.PolicyConfig {
	if cached, ok := presetCache[name]; ok {
		return cached
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	var config models.PolicyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil
	}

	presetCache[name] = &config
	return &config
}

// ListPresetNames returns the names of all available presets
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	return names
}

// LoadConfig reads a policy file from disk.
func LoadConfig(path string) (*models.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var config models.PolicyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if len(config.Rules) == 0 {
		return nil, fmt.Errorf("policy file %s declares no rules", path)
	}
	return &config, nil
}

// MustGetPreset returns a preset or panics (for tests)
func MustGetPreset(name string) *models.PolicyConfig {
	p := GetPreset(name)
	if p == nil {
		panic(fmt.Sprintf("preset %q not found", name))
	}
	return p
}
