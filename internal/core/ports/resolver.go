package ports

// InputResolver defines the interface for resolving declared path patterns
// to concrete files.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type InputResolver interface {
	// ResolveInputs resolves input patterns relative to dir into a sorted,
	// deduplicated list of file paths. A pattern matching nothing is an
	// error: a declared input must exist before the task can be hashed.
	ResolveInputs(patterns []string, dir string) ([]string, error)

	// ResolveOutputs resolves output patterns relative to dir after a task
	// ran. A pattern matching nothing is an error: the task declared an
	// artifact it did not produce.
	ResolveOutputs(patterns []string, dir string) ([]string, error)
}
