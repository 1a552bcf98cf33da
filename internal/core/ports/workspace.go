// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/mono/internal/core/domain"

// WorkspaceLoader defines the interface for loading the workspace
// configuration: package manifests and their task definitions.
//
//go:generate mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks
type WorkspaceLoader interface {
	// Load reads the configuration starting from the given working
	// directory and returns the validated workspace.
	Load(cwd string) (*domain.Workspace, error)

	// DiscoverRoot walks up from cwd to the directory containing the
	// workspace file.
	DiscoverRoot(cwd string) (string, error)
}
