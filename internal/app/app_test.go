package app_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mono/internal/adapters/config"
	"go.trai.ch/mono/internal/adapters/fs"
	"go.trai.ch/mono/internal/adapters/logger"
	"go.trai.ch/mono/internal/adapters/shell"
	"go.trai.ch/mono/internal/adapters/watcher"
	"go.trai.ch/mono/internal/app"
	"go.trai.ch/mono/internal/core/domain"
)

const workfileYAML = `version: "1"
packages:
  - "packages/*"
pipeline:
  build:
    dependsOn: ["^build"]
    inputs: ["src.txt"]
    outputs: ["dist/out.txt"]
`

// newTestApp assembles the application from real adapters, with all log
// output discarded.
func newTestApp(t *testing.T, out io.Writer) *app.App {
	t.Helper()

	log := logger.New()
	log.SetOutput(io.Discard)

	w, err := watcher.NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	walker := fs.NewWalker()
	return app.New(
		config.NewLoader(log),
		shell.NewExecutor(log),
		log,
		fs.NewFingerprinter(walker),
		fs.NewResolver(),
		w,
	).WithOutput(out)
}

func writeWorkspaceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func addPackage(t *testing.T, root, name, cmd string, dependsOn string) {
	t.Helper()
	manifest := "version: \"1\"\nname: " + name + "\n"
	if dependsOn != "" {
		manifest += "dependsOn: [" + dependsOn + "]\n"
	}
	manifest += "tasks:\n  build:\n    cmd: [\"sh\", \"-c\", \"" + cmd + "\"]\n"

	writeWorkspaceFile(t, root, filepath.Join("packages", name, domain.PackageFileName), manifest)
	writeWorkspaceFile(t, root, filepath.Join("packages", name, "src.txt"), name+" v1\n")
}

// setupWorkspace creates a three-package workspace: ui and app build on core.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeWorkspaceFile(t, root, domain.WorkFileName, workfileYAML)

	cmd := "mkdir -p dist && cat src.txt > dist/out.txt"
	addPackage(t, root, "core", cmd, "")
	addPackage(t, root, "ui", cmd, "core")
	addPackage(t, root, "app", cmd, "core, ui")

	return root
}

func runBuild(t *testing.T, a *app.App) error {
	t.Helper()
	return a.Run(context.Background(), []string{"build"}, app.RunOptions{
		OutputMode:  "linear",
		Parallelism: 2,
	})
}

func TestApp_RunLifecycle(t *testing.T) {
	root := setupWorkspace(t)
	t.Chdir(root)

	outPath := filepath.Join(root, "packages", "core", "dist", "out.txt")

	t.Run("cold run executes everything", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runBuild(t, newTestApp(t, &buf)))

		assert.Contains(t, buf.String(), "Tasks:    3 successful, 3 total")
		assert.Contains(t, buf.String(), "Cached:    0 cached, 3 total")

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, "core v1\n", string(data))
	})

	t.Run("warm run replays from cache", func(t *testing.T) {
		// Remove an artifact; the cache hit must materialize it again.
		require.NoError(t, os.RemoveAll(filepath.Dir(outPath)))

		var buf bytes.Buffer
		require.NoError(t, runBuild(t, newTestApp(t, &buf)))

		assert.Contains(t, buf.String(), "Cached:    3 cached, 3 total")

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, "core v1\n", string(data))
	})

	t.Run("input change invalidates the whole chain", func(t *testing.T) {
		writeWorkspaceFile(t, root, filepath.Join("packages", "core", "src.txt"), "core v2\n")

		var buf bytes.Buffer
		require.NoError(t, runBuild(t, newTestApp(t, &buf)))

		// core changed, and ui and app inherit the change through their
		// upstream fingerprints.
		assert.Contains(t, buf.String(), "Cached:    0 cached, 3 total")

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, "core v2\n", string(data))
	})
}

func TestApp_RunFailure(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, domain.WorkFileName, workfileYAML)
	addPackage(t, root, "core", "exit 1", "")
	addPackage(t, root, "app", "cat src.txt > /dev/null", "core")
	t.Chdir(root)

	var buf bytes.Buffer
	err := runBuild(t, newTestApp(t, &buf))
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrRunFailed.Error())

	assert.Contains(t, buf.String(), "Failed:    core:build")
	assert.Contains(t, buf.String(), "Skipped:   app:build")
}

func TestApp_RunNoTasks(t *testing.T) {
	a := newTestApp(t, io.Discard)

	err := a.Run(context.Background(), nil, app.RunOptions{})
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrNoTasksRequested.Error())
}

func TestApp_Clean(t *testing.T) {
	root := setupWorkspace(t)
	t.Chdir(root)

	require.NoError(t, runBuild(t, newTestApp(t, io.Discard)))

	cachePath := domain.DefaultCachePath(root)
	_, err := os.Stat(cachePath)
	require.NoError(t, err)

	a := newTestApp(t, io.Discard)
	require.NoError(t, a.Clean(context.Background(), app.CleanOptions{}))

	_, err = os.Stat(cachePath)
	require.True(t, os.IsNotExist(err))
}
