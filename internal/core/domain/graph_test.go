package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/core/domain"
)

func node(pkg, task string) *domain.TaskNode {
	return domain.NewTaskNode(
		&domain.Package{
			Name: domain.NewInternedString(pkg),
			Dir:  domain.NewInternedString("/tmp/" + pkg),
		},
		&domain.TaskDefinition{
			Name:    domain.NewInternedString(task),
			Command: []string{"true"},
		},
	)
}

func graphOf(t *testing.T, edges map[string][]string) *domain.TaskGraph {
	t.Helper()
	g := domain.NewTaskGraph("/tmp")

	names := make(map[string]bool)
	for from, tos := range edges {
		names[from] = true
		for _, to := range tos {
			names[to] = true
		}
	}
	for name := range names {
		require.NoError(t, g.AddNode(node(name, "build")))
	}
	for from, tos := range edges {
		for _, to := range tos {
			g.AddEdge(domain.NodeID(from, "build"), domain.NodeID(to, "build"))
		}
	}
	return g
}

func TestTaskGraph_Validate(t *testing.T) {
	tests := []struct {
		name    string
		edges   map[string][]string
		wantErr error
	}{
		{
			name:  "single node",
			edges: map[string][]string{"a": {}},
		},
		{
			name: "chain",
			edges: map[string][]string{
				"a": {"b"},
				"b": {"c"},
			},
		},
		{
			name: "diamond",
			edges: map[string][]string{
				"a": {"b", "c"},
				"b": {"d"},
				"c": {"d"},
			},
		},
		{
			name: "self cycle",
			edges: map[string][]string{
				"a": {"a"},
			},
			wantErr: domain.ErrCycleDetected,
		},
		{
			name: "two node cycle",
			edges: map[string][]string{
				"a": {"b"},
				"b": {"a"},
			},
			wantErr: domain.ErrCycleDetected,
		},
		{
			name: "cycle behind a chain",
			edges: map[string][]string{
				"a": {"b"},
				"b": {"c"},
				"c": {"b"},
			},
			wantErr: domain.ErrCycleDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graphOf(t, tt.edges)
			err := g.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorContains(t, err, tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTaskGraph_CycleErrorNamesSequence(t *testing.T) {
	g := graphOf(t, map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a:build -> b:build -> a:build")
}

func TestTaskGraph_WalkIsExecutionOrdered(t *testing.T) {
	g := graphOf(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
	})
	require.NoError(t, g.Validate())

	var order []string
	for n := range g.Walk() {
		order = append(order, n.ID.String())
	}
	assert.Equal(t, []string{"c:build", "b:build", "a:build"}, order)
}

func TestTaskGraph_UnknownDependency(t *testing.T) {
	g := domain.NewTaskGraph("/tmp")
	require.NoError(t, g.AddNode(node("a", "build")))
	g.AddEdge(domain.NodeID("a", "build"), domain.NodeID("ghost", "build"))

	err := g.Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrTaskNotFound.Error())
}

func TestTaskGraph_DuplicateNode(t *testing.T) {
	g := domain.NewTaskGraph("/tmp")
	require.NoError(t, g.AddNode(node("a", "build")))

	err := g.AddNode(node("a", "build"))
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrDuplicateTaskNode.Error())
}

func TestTaskGraph_DuplicateEdgeIgnored(t *testing.T) {
	g := graphOf(t, map[string][]string{"a": {"b"}})
	g.AddEdge(domain.NodeID("a", "build"), domain.NodeID("b", "build"))

	assert.Len(t, g.Dependencies(domain.NodeID("a", "build")), 1)
	assert.Len(t, g.Dependents(domain.NodeID("b", "build")), 1)
}
