// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/mono/internal/adapters/config"
	_ "go.trai.ch/mono/internal/adapters/fs"
	_ "go.trai.ch/mono/internal/adapters/logger"
	_ "go.trai.ch/mono/internal/adapters/shell"
	_ "go.trai.ch/mono/internal/adapters/watcher"
	// Register the assembled application node.
	_ "go.trai.ch/mono/internal/app"
)
