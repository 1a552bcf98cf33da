// Package planner expands the workspace and the requested task names into
// an executable task graph.
package planner

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/zerr"
)

// Planner builds task graphs from a loaded workspace.
type Planner struct {
	logger ports.Logger
}

// New creates a new Planner.
func New(logger ports.Logger) *Planner {
	return &Planner{logger: logger}
}

// Plan creates one node per (package, requested task) the package declares,
// resolves declared task references into edges, rejects output conflicts
// and cycles, and returns the validated graph.
//
// filter, when non-empty, restricts which packages the requested tasks are
// planned for; the dependency closure reached through task references is
// always included regardless of the filter.
func (p *Planner) Plan(ws *domain.Workspace, requested, filter []string) (*domain.TaskGraph, error) {
	if len(requested) == 0 {
		return nil, domain.ErrNoTasksRequested
	}

	selected, err := selectPackages(ws, filter)
	if err != nil {
		return nil, err
	}

	g := domain.NewTaskGraph(ws.Root())

	// Seed nodes for the requested tasks, then expand task references
	// breadth-first until the closure is complete.
	var queue []*domain.TaskNode
	seen := make(map[domain.InternedString]*domain.TaskNode)

	ensure := func(pkg *domain.Package, task *domain.TaskDefinition) (*domain.TaskNode, error) {
		id := domain.NodeID(pkg.Name.String(), task.Name.String())
		if n, ok := seen[id]; ok {
			return n, nil
		}
		n := domain.NewTaskNode(pkg, task)
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
		seen[id] = n
		queue = append(queue, n)
		return n, nil
	}

	matched := false
	for _, pkg := range selected {
		for _, taskName := range requested {
			task, ok := pkg.Task(taskName)
			if !ok {
				continue
			}
			matched = true
			if _, err := ensure(pkg, task); err != nil {
				return nil, err
			}
		}
	}
	if !matched {
		return nil, zerr.With(domain.ErrTaskNotFound, "tasks", strings.Join(requested, ","))
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if err := p.expandRefs(ws, g, n, ensure); err != nil {
			return nil, err
		}
	}

	if err := p.checkOutputConflicts(g); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// expandRefs turns a node's declared task references into graph edges.
func (p *Planner) expandRefs(
	ws *domain.Workspace,
	g *domain.TaskGraph,
	n *domain.TaskNode,
	ensure func(*domain.Package, *domain.TaskDefinition) (*domain.TaskNode, error),
) error {
	for _, ref := range n.Task.DependsOn {
		if !ref.Topological {
			task, ok := n.Package.Task(ref.Task.String())
			if !ok {
				err := zerr.With(domain.ErrTaskNotFound, "package", n.Package.Name.String())
				return zerr.With(err, "task", ref.Task.String())
			}
			dep, err := ensure(n.Package, task)
			if err != nil {
				return err
			}
			g.AddEdge(n.ID, dep.ID)
			continue
		}

		for _, depName := range n.Package.DependsOn {
			depPkg, ok := ws.Package(depName)
			if !ok {
				// Load-time validation already rejects this; belt over braces.
				err := zerr.With(domain.ErrUnresolvedDependency, "package", n.Package.Name.String())
				return zerr.With(err, "dependency", depName.String())
			}
			task, ok := depPkg.Task(ref.Task.String())
			if !ok {
				// Absence of the task in a dependency is a no-op dependency,
				// not an error.
				p.logger.Debug(fmt.Sprintf(
					"%s: dependency %s declares no task %q, edge omitted",
					n.ID.String(), depName.String(), ref.Task.String(),
				))
				continue
			}
			dep, err := ensure(depPkg, task)
			if err != nil {
				return err
			}
			g.AddEdge(n.ID, dep.ID)
		}
	}
	return nil
}

// checkOutputConflicts rejects graphs where two nodes declare the same or
// nested output paths. This is a lexical pre-execution check, so
// overlapping writes are a configuration error instead of a runtime race.
func (p *Planner) checkOutputConflicts(g *domain.TaskGraph) error {
	claims := collectClaims(g)

	slices.SortFunc(claims, func(a, b outputClaim) int {
		return strings.Compare(a.path, b.path)
	})

	// Lexical order does not put a nested path right after its ancestor:
	// "dist-x" sorts between "dist" and "dist/app.js". Walk with a stack of
	// still-open ancestor claims and test each path against the innermost
	// one that covers it.
	var open []outputClaim
	for _, cur := range claims {
		for len(open) > 0 && !covers(open[len(open)-1].path, cur.path) {
			open = open[:len(open)-1]
		}
		if len(open) > 0 {
			if anc := open[len(open)-1]; anc.node != cur.node {
				err := zerr.With(domain.ErrOutputConflict, "path", cur.path)
				err = zerr.With(err, "node", cur.node.String())
				return zerr.With(err, "conflicts_with", anc.node.String())
			}
		}
		open = append(open, cur)
	}

	return nil
}

// covers reports whether path equals ancestor or lies beneath it.
func covers(ancestor, path string) bool {
	return path == ancestor || strings.HasPrefix(path, ancestor+string(filepath.Separator))
}

type outputClaim struct {
	path string
	node domain.InternedString
}

func collectClaims(g *domain.TaskGraph) []outputClaim {
	var claims []outputClaim
	for _, n := range allNodes(g) {
		dir := n.Package.Dir.String()
		for _, out := range n.Task.Outputs {
			claims = append(claims, outputClaim{
				path: filepath.Clean(filepath.Join(dir, out.String())),
				node: n.ID,
			})
		}
	}
	return claims
}

func allNodes(g *domain.TaskGraph) []*domain.TaskNode {
	var nodes []*domain.TaskNode
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		nodes = append(nodes, n)
	}
	return nodes
}

// selectPackages applies the optional package filter. An unknown name in
// the filter is an error; an empty filter selects everything.
func selectPackages(ws *domain.Workspace, filter []string) ([]*domain.Package, error) {
	if len(filter) == 0 {
		var all []*domain.Package
		for p := range ws.Packages() {
			all = append(all, p)
		}
		return all, nil
	}

	var out []*domain.Package
	for _, name := range filter {
		p, ok := ws.Package(domain.NewInternedString(name))
		if !ok {
			return nil, zerr.With(domain.ErrPackageNotFound, "package", name)
		}
		out = append(out, p)
	}
	return out, nil
}
