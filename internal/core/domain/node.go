package domain

// NodeSeparator joins package and task name into a node identity.
const NodeSeparator = ":"

// NodeID builds the identity of a (package, task) pair, e.g. "core:build".
func NodeID(pkg, task string) InternedString {
	return NewInternedString(pkg + NodeSeparator + task)
}

// TaskNode is a resolved (package, task) pair in the task graph.
type TaskNode struct {
	// ID is "package:task", unique within one graph.
	ID InternedString

	// Package is the declaring package.
	Package *Package

	// Task is the definition the node executes.
	Task *TaskDefinition
}

// NewTaskNode creates a node for the given package and task definition.
func NewTaskNode(pkg *Package, task *TaskDefinition) *TaskNode {
	return &TaskNode{
		ID:      NodeID(pkg.Name.String(), task.Name.String()),
		Package: pkg,
		Task:    task,
	}
}
