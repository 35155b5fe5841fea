// Package manifest renders declarative workload manifests for tenant
// workspaces by substituting named placeholders into YAML templates.
package manifest

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed templates/*.yaml
var builtin embed.FS

// TemplateStore provides named manifest templates.
type TemplateStore interface {
	Template(name string) (string, error)
}

// FSStore loads templates from a filesystem. Template "namespace" maps to
// the file "namespace.yaml" at the store root.
type FSStore struct {
	fsys fs.FS
}

// NewFSStore creates a template store over an arbitrary filesystem.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

func (s *FSStore) Template(name string) (string, error) {
	data, err := fs.ReadFile(s.fsys, name+".yaml")
	if err != nil {
		return "", fmt.Errorf("manifest: load template %q: %w", name, err)
	}
	return string(data), nil
}

// Builtin returns the embedded default template set.
func Builtin() TemplateStore {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		panic("manifest: embedded templates missing: " + err.Error())
	}
	return &FSStore{fsys: sub}
}

var _ TemplateStore = (*FSStore)(nil)
