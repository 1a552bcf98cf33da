package fs

import (
	"path/filepath"
	"sort"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InputResolver = (*Resolver)(nil)

// Resolver resolves declared path patterns using filepath.Glob.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveInputs resolves input patterns relative to dir into a sorted,
// deduplicated path list. A pattern that matches nothing is an error.
func (r *Resolver) ResolveInputs(patterns []string, dir string) ([]string, error) {
	return r.resolve(patterns, dir, domain.ErrInputNotFound)
}

// ResolveOutputs resolves output patterns after execution. A pattern that
// matches nothing means the task did not produce a declared artifact.
func (r *Resolver) ResolveOutputs(patterns []string, dir string) ([]string, error) {
	return r.resolve(patterns, dir, domain.ErrOutputMissing)
}

func (r *Resolver) resolve(patterns []string, dir string, missing error) ([]string, error) {
	uniquePaths := make(map[string]bool)

	for _, pattern := range patterns {
		path := filepath.Join(dir, pattern)

		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "path", path)
		}

		if len(matches) == 0 {
			return nil, zerr.With(missing, "path", path)
		}

		for _, match := range matches {
			uniquePaths[match] = true
		}
	}

	result := make([]string, 0, len(uniquePaths))
	for path := range uniquePaths {
		result = append(result, path)
	}
	sort.Strings(result)

	return result, nil
}
