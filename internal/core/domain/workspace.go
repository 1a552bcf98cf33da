// Package domain contains the core domain models for the workspace,
// the task graph and the cache.
package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Workspace is the full set of packages under management, together with
// their declared inter-package dependencies.
type Workspace struct {
	root     string
	packages map[InternedString]*Package
	order    []InternedString
}

// NewWorkspace creates an empty workspace rooted at the given directory.
func NewWorkspace(root string) *Workspace {
	return &Workspace{
		root:     root,
		packages: make(map[InternedString]*Package),
	}
}

// Root returns the absolute workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// AddPackage adds a package to the workspace.
// It returns an error if a package with the same name already exists.
func (w *Workspace) AddPackage(p *Package) error {
	if _, exists := w.packages[p.Name]; exists {
		return zerr.With(ErrDuplicatePackageName, "package", p.Name.String())
	}
	w.packages[p.Name] = p
	w.order = append(w.order, p.Name)
	return nil
}

// Package returns the package with the given name.
func (w *Workspace) Package(name InternedString) (*Package, bool) {
	p, ok := w.packages[name]
	return p, ok
}

// Len returns the number of packages in the workspace.
func (w *Workspace) Len() int {
	return len(w.packages)
}

// Packages yields all packages sorted by name, so iteration order never
// depends on map ordering.
func (w *Workspace) Packages() iter.Seq[*Package] {
	names := make([]InternedString, len(w.order))
	copy(names, w.order)
	slices.SortFunc(names, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})

	return func(yield func(*Package) bool) {
		for _, name := range names {
			if !yield(w.packages[name]) {
				return
			}
		}
	}
}

// Validate checks that every declared dependency resolves to a known package.
func (w *Workspace) Validate() error {
	for p := range w.Packages() {
		for _, dep := range p.DependsOn {
			if _, ok := w.packages[dep]; !ok {
				err := zerr.With(ErrUnresolvedDependency, "package", p.Name.String())
				return zerr.With(err, "dependency", dep.String())
			}
		}
	}
	return nil
}
