package release

// PackageDescriptor is the package.json written for an architecture-specific
// package or for the metapackage. It is never mutated after serialization.
type PackageDescriptor struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Main         string            `json:"main,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	Scripts      map[string]string `json:"scripts,omitempty"`
	Bin          map[string]string `json:"bin,omitempty"`
	Files        []string          `json:"files,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	License      string            `json:"license,omitempty"`
	Author       *string           `json:"author,omitempty"`
	Engines      map[string]string `json:"engines,omitempty"`
	OS           string            `json:"os,omitempty"`
	CPU          string            `json:"cpu,omitempty"`
}
