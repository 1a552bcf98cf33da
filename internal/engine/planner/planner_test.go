package planner_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports/mocks"
	"go.trai.ch/mono/internal/engine/planner"
	"go.uber.org/mock/gomock"
)

func newTestPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	return planner.New(log)
}

func task(name string, dependsOn []string, outputs ...string) *domain.TaskDefinition {
	refs := make([]domain.TaskRef, len(dependsOn))
	for i, d := range dependsOn {
		refs[i] = domain.ParseTaskRef(d)
	}
	return &domain.TaskDefinition{
		Name:      domain.NewInternedString(name),
		Command:   []string{"echo", name},
		Outputs:   domain.NewInternedStrings(outputs),
		DependsOn: refs,
	}
}

func pkg(root, name string, dependsOn []string, tasks ...*domain.TaskDefinition) *domain.Package {
	p := &domain.Package{
		Name:      domain.NewInternedString(name),
		Dir:       domain.NewInternedString(filepath.Join(root, name)),
		DependsOn: domain.NewInternedStrings(dependsOn),
		Tasks:     make(map[string]*domain.TaskDefinition, len(tasks)),
	}
	for _, t := range tasks {
		p.Tasks[t.Name.String()] = t
	}
	return p
}

func workspace(t *testing.T, pkgs ...*domain.Package) *domain.Workspace {
	t.Helper()
	ws := domain.NewWorkspace(t.TempDir())
	for _, p := range pkgs {
		require.NoError(t, ws.AddPackage(p))
	}
	return ws
}

func depIDs(g *domain.TaskGraph, pkgName, taskName string) []string {
	deps := g.Dependencies(domain.NodeID(pkgName, taskName))
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.String()
	}
	return out
}

func TestPlanner_TopologicalExpansion(t *testing.T) {
	root := t.TempDir()
	ws := workspace(t,
		pkg(root, "core", nil, task("build", nil)),
		pkg(root, "app", []string{"core"}, task("build", []string{"^build"})),
	)

	g, err := newTestPlanner(t).Plan(ws, []string{"build"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"core:build"}, depIDs(g, "app", "build"))
	assert.Empty(t, depIDs(g, "core", "build"))
}

func TestPlanner_LocalTaskReference(t *testing.T) {
	root := t.TempDir()
	ws := workspace(t,
		pkg(root, "app", nil,
			task("gen", nil),
			task("build", []string{"gen"}),
		),
	)

	g, err := newTestPlanner(t).Plan(ws, []string{"build"}, nil)
	require.NoError(t, err)

	// gen is pulled in through the reference even though it was not requested.
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"app:gen"}, depIDs(g, "app", "build"))
}

func TestPlanner_MissingDependencyTaskOmitsEdge(t *testing.T) {
	root := t.TempDir()
	// docs declares no build task, so app:build gets no edge to it.
	ws := workspace(t,
		pkg(root, "docs", nil, task("lint", nil)),
		pkg(root, "app", []string{"docs"}, task("build", []string{"^build"})),
	)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).Times(1)

	g, err := planner.New(log).Plan(ws, []string{"build"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, g.Len())
	assert.Empty(t, depIDs(g, "app", "build"))
}

func TestPlanner_FilterRestrictsRoots(t *testing.T) {
	root := t.TempDir()
	ws := workspace(t,
		pkg(root, "core", nil, task("build", nil)),
		pkg(root, "app", []string{"core"}, task("build", []string{"^build"})),
		pkg(root, "other", nil, task("build", nil)),
	)

	t.Run("closure is always included", func(t *testing.T) {
		g, err := newTestPlanner(t).Plan(ws, []string{"build"}, []string{"app"})
		require.NoError(t, err)

		// app plus its dependency core; other is excluded.
		assert.Equal(t, 2, g.Len())
		_, hasOther := g.Node(domain.NodeID("other", "build"))
		assert.False(t, hasOther)
	})

	t.Run("unknown package name fails", func(t *testing.T) {
		_, err := newTestPlanner(t).Plan(ws, []string{"build"}, []string{"nope"})
		require.Error(t, err)
		require.ErrorContains(t, err, domain.ErrPackageNotFound.Error())
	})
}

func TestPlanner_OutputConflict(t *testing.T) {
	root := t.TempDir()

	t.Run("directly nested", func(t *testing.T) {
		ws := workspace(t,
			pkg(root, "app", nil,
				task("gen", nil, "dist/gen"),
				task("build", []string{"gen"}, "dist"),
			),
		)

		_, err := newTestPlanner(t).Plan(ws, []string{"build"}, nil)
		require.Error(t, err)
		require.ErrorContains(t, err, domain.ErrOutputConflict.Error())
	})

	t.Run("sibling sorts between ancestor and nested path", func(t *testing.T) {
		// "dist-x" orders lexically between "dist" and "dist/app.js", so
		// the conflicting pair is not adjacent after sorting.
		ws := workspace(t,
			pkg(root, "app", nil,
				task("gen", nil, "dist/app.js"),
				task("pack", []string{"gen"}, "dist-x"),
				task("build", []string{"pack"}, "dist"),
			),
		)

		_, err := newTestPlanner(t).Plan(ws, []string{"build"}, nil)
		require.Error(t, err)
		require.ErrorContains(t, err, domain.ErrOutputConflict.Error())
	})

	t.Run("disjoint siblings pass", func(t *testing.T) {
		ws := workspace(t,
			pkg(root, "app", nil,
				task("gen", nil, "dist-x"),
				task("build", []string{"gen"}, "dist"),
			),
		)

		_, err := newTestPlanner(t).Plan(ws, []string{"build"}, nil)
		require.NoError(t, err)
	})
}

func TestPlanner_CycleDetected(t *testing.T) {
	root := t.TempDir()
	ws := workspace(t,
		pkg(root, "app", nil,
			task("a", []string{"b"}),
			task("b", []string{"a"}),
		),
	)

	_, err := newTestPlanner(t).Plan(ws, []string{"a"}, nil)
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrCycleDetected.Error())
}

func TestPlanner_RequestValidation(t *testing.T) {
	root := t.TempDir()
	ws := workspace(t, pkg(root, "app", nil, task("build", nil)))

	t.Run("no tasks requested", func(t *testing.T) {
		_, err := newTestPlanner(t).Plan(ws, nil, nil)
		require.ErrorContains(t, err, domain.ErrNoTasksRequested.Error())
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := newTestPlanner(t).Plan(ws, []string{"deploy"}, nil)
		require.ErrorContains(t, err, domain.ErrTaskNotFound.Error())
	})
}
