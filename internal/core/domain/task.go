package domain

import (
	"strings"
	"time"
)

// TopologicalPrefix marks a task reference that resolves against
// dependency packages instead of the declaring package.
const TopologicalPrefix = "^"

// TaskRef is a declared upstream task reference. A plain reference
// ("lint") points at a task of the same package; a topological reference
// ("^build") expands to the same task of every dependency package.
type TaskRef struct {
	Task        InternedString
	Topological bool
}

// ParseTaskRef parses a reference string from a task definition.
func ParseTaskRef(s string) TaskRef {
	if rest, ok := strings.CutPrefix(s, TopologicalPrefix); ok {
		return TaskRef{Task: NewInternedString(rest), Topological: true}
	}
	return TaskRef{Task: NewInternedString(s)}
}

// String renders the reference in its declared form.
func (r TaskRef) String() string {
	if r.Topological {
		return TopologicalPrefix + r.Task.String()
	}
	return r.Task.String()
}

// TaskDefinition describes one runnable unit of work declared by a package.
// It uses InternedString for fields that are frequently repeated to save memory.
type TaskDefinition struct {
	Name        InternedString
	Command     []string
	Inputs      []InternedString
	Outputs     []InternedString
	DependsOn   []TaskRef
	Env         []string
	Environment map[string]string
	Timeout     time.Duration
}
