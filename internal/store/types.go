package store

// Manifest is the store-facing metadata document of an application. Arbitrary
// store-metadata fields beyond the known ones are preserved in Extra.
type Manifest struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name,omitempty" json:"name,omitempty"`
	Virtual      bool     `yaml:"virtual,omitempty" json:"virtual,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// AppDefinition is the service-topology document of an application. It is
// consumed downstream by the container-orchestration config generator.
type AppDefinition struct {
	Services     map[string]Service `yaml:"services"`
	Dependencies []string           `yaml:"dependencies,omitempty"`
}

// Service describes one service of an application as plain structured data.
type Service struct {
	Image       string            `yaml:"image,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// Template is one raw template text together with the path it was loaded
// from. OutPath is where the rendered result belongs: the source path with a
// trailing .tmpl stripped, which is the path itself for static files.
type Template struct {
	Path    string
	OutPath string
	Text    string
}

// Application is an application directory as discovered on disk, immutable
// once loaded. ID starts out as the directory name; the manifest's declared
// id is authoritative once stage 1 has parsed it.
type Application struct {
	ID       string
	Dir      string
	Manifest Template

	// Definition is nil for manifest-only (virtual) applications.
	Definition *Template

	// ConfigTemplates are rendered during stage 3.
	ConfigTemplates []Template

	// Helpers is the concatenated source of the app's _helpers scripts,
	// empty when the app ships none.
	Helpers string
}
