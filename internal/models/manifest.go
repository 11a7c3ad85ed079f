package models

// Manifest is the top-level descriptor embedded in every assembled package.
// It lists the root component and the full resolved dependency set; the
// consuming runtime is strict about version and naming exactness here.
type Manifest struct {
	Title         string             `json:"title"`
	Language      string             `json:"language"`
	MainComponent string             `json:"mainComponent"`
	Embed         []string           `json:"embedTypes"`
	Dependencies  []ComponentVersion `json:"preloadedDependencies"`
}

// ManifestFileName is the fixed location of the manifest inside a package.
const ManifestFileName = "manifest.json"

// ContentFileName is the fixed location of the serialized content tree.
const ContentFileName = "content/content.json"

// ContentDir prefixes media paths inside a package.
const ContentDir = "content/"
