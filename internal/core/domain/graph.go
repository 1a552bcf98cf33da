package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// TaskGraph is a directed acyclic graph of task nodes. An edge A -> B means
// B must complete before A starts. Edges are held in explicit adjacency
// maps so cycle detection and topological ordering are plain graph
// algorithms over the node set.
type TaskGraph struct {
	root           string
	nodes          map[InternedString]*TaskNode
	deps           map[InternedString][]InternedString
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString
}

// NewTaskGraph creates an empty graph rooted at the workspace directory.
func NewTaskGraph(root string) *TaskGraph {
	return &TaskGraph{
		root:       root,
		nodes:      make(map[InternedString]*TaskNode),
		deps:       make(map[InternedString][]InternedString),
		dependents: make(map[InternedString][]InternedString),
	}
}

// Root returns the workspace root directory the graph was built for.
func (g *TaskGraph) Root() string {
	return g.root
}

// AddNode adds a node to the graph.
// It returns an error if a node with the same identity already exists.
func (g *TaskGraph) AddNode(n *TaskNode) error {
	if _, exists := g.nodes[n.ID]; exists {
		return zerr.With(ErrDuplicateTaskNode, "node", n.ID.String())
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge declares that from depends on to. Both nodes must already exist;
// unknown endpoints are reported by Validate.
func (g *TaskGraph) AddEdge(from, to InternedString) {
	if slices.Contains(g.deps[from], to) {
		return
	}
	g.deps[from] = append(g.deps[from], to)
	g.dependents[to] = append(g.dependents[to], from)
}

// Node returns the node with the given identity.
func (g *TaskGraph) Node(id InternedString) (*TaskNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *TaskGraph) Len() int {
	return len(g.nodes)
}

// Dependencies returns the identities the given node depends on.
func (g *TaskGraph) Dependencies(id InternedString) []InternedString {
	return g.deps[id]
}

// Dependents returns the identities that depend on the given node.
func (g *TaskGraph) Dependents(id InternedString) []InternedString {
	return g.dependents[id]
}

// Validate checks for cycles using a depth-first search with
// recursion-stack marking and populates the execution order. Nodes are
// visited in sorted identity order so the resulting order is deterministic.
func (g *TaskGraph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.nodes))
	visited := make(map[InternedString]int, len(g.nodes)) // 0 unvisited, 1 on stack, 2 done
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		for _, dep := range g.sortedDeps(u) {
			if _, exists := g.nodes[dep]; !exists {
				err := zerr.With(ErrTaskNotFound, "node", u.String())
				return zerr.With(err, "dependency", dep.String())
			}
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, id := range g.sortedNodeIDs() {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// Walk yields nodes in execution order. Validate must have returned nil.
func (g *TaskGraph) Walk() iter.Seq[*TaskNode] {
	return func(yield func(*TaskNode) bool) {
		for _, id := range g.executionOrder {
			if !yield(g.nodes[id]) {
				return
			}
		}
	}
}

// NodeIDs returns all node identities in sorted order.
func (g *TaskGraph) NodeIDs() []InternedString {
	return g.sortedNodeIDs()
}

func (g *TaskGraph) sortedNodeIDs() []InternedString {
	ids := make([]InternedString, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

func (g *TaskGraph) sortedDeps(id InternedString) []InternedString {
	deps := make([]InternedString, len(g.deps[id]))
	copy(deps, g.deps[id])
	slices.SortFunc(deps, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	return deps
}

// buildCycleError constructs an error naming the cycle's node sequence.
func (g *TaskGraph) buildCycleError(path []InternedString, dep InternedString) error {
	start := slices.Index(path, dep)
	var b strings.Builder
	for i := start; i >= 0 && i < len(path); i++ {
		b.WriteString(path[i].String())
		b.WriteString(" -> ")
	}
	b.WriteString(dep.String())
	return zerr.With(ErrCycleDetected, "cycle", b.String())
}
