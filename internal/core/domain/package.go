package domain

// Package is one named unit of the workspace. It is immutable after load:
// the loader builds it once per invocation and nothing mutates it afterwards.
type Package struct {
	// Name is the unique package identifier within the workspace.
	Name InternedString

	// Dir is the absolute path of the package root. Task commands run here.
	Dir InternedString

	// DependsOn lists the names of packages this package depends on.
	DependsOn []InternedString

	// Tasks maps task names to their definitions.
	Tasks map[string]*TaskDefinition
}

// Task returns the definition of the named task, if the package declares it.
func (p *Package) Task(name string) (*TaskDefinition, bool) {
	t, ok := p.Tasks[name]
	return t, ok
}
