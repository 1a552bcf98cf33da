package domain

import "path/filepath"

const (
	// MonoDirName is the name of the internal workspace directory.
	MonoDirName = ".mono"

	// CacheDirName is the name of the cache store directory.
	CacheDirName = "cache"

	// EntriesDirName holds cache entry manifests, keyed by fingerprint.
	EntriesDirName = "entries"

	// BlobsDirName holds output file contents, keyed by content hash.
	BlobsDirName = "blobs"

	// WorkFileName is the name of the workspace configuration file.
	WorkFileName = "mono.work.yaml"

	// PackageFileName is the name of the per-package configuration file.
	PackageFileName = "mono.yaml"

	// DebugLogFile is the name of the debug log file.
	DebugLogFile = "debug.log"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultCachePath returns the cache store directory under the given root.
func DefaultCachePath(root string) string {
	return filepath.Join(root, MonoDirName, CacheDirName)
}

// DefaultStatePath returns the internal state directory under the given root.
func DefaultStatePath(root string) string {
	return filepath.Join(root, MonoDirName)
}

// DefaultDebugLogPath returns the debug log path under the given root.
func DefaultDebugLogPath(root string) string {
	return filepath.Join(root, MonoDirName, DebugLogFile)
}
