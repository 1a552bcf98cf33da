package shell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnvironment(t *testing.T) {
	sysEnv := []string{
		"HOME=/home/user",
		"PATH=/usr/bin:/bin",
		"SECRET_TOKEN=abc",
		"TERM=xterm",
	}
	taskEnv := []string{
		"NODE_ENV=production",
		"PATH=/opt/tools/bin",
	}

	result := resolveEnvironment(sysEnv, taskEnv)
	envMap := make(map[string]string, len(result))
	for _, entry := range result {
		k, v, ok := strings.Cut(entry, "=")
		require.True(t, ok)
		envMap[k] = v
	}

	assert.Equal(t, "/home/user", envMap["HOME"])
	assert.Equal(t, "xterm", envMap["TERM"])
	assert.Equal(t, "production", envMap["NODE_ENV"])
	// Task values override the system allow-list.
	assert.Equal(t, "/opt/tools/bin", envMap["PATH"])
	// Undeclared system variables never leak through.
	_, leaked := envMap["SECRET_TOKEN"]
	assert.False(t, leaked)
}

func TestLookPath_EmptyPATH(t *testing.T) {
	_, err := lookPath("sh", []string{"HOME=/home/user"})
	require.Error(t, err)
}

func TestLookPath_ExecutableNotFound(t *testing.T) {
	_, err := lookPath("no-such-binary", []string{"PATH=" + t.TempDir()})
	require.Error(t, err)
}

func TestLookPath_FindsExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	got, err := lookPath("tool", []string{"PATH=" + dir})
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFindExecutable_Directory(t *testing.T) {
	err := findExecutable(t.TempDir())
	require.Error(t, err)
}
