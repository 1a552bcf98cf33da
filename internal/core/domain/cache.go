package domain

import (
	"io/fs"
	"time"
)

// OutputFile is one produced artifact recorded in a cache entry manifest.
type OutputFile struct {
	// Path is the file location relative to the workspace root.
	Path string `json:"path"`
	// Hash is the content hash of the file, also the blob key in the store.
	Hash string `json:"hash"`
	// Mode is the file mode to restore on materialization.
	Mode fs.FileMode `json:"mode"`
}

// CacheEntry is the immutable record of one successful task execution,
// addressed by fingerprint. Failures are never cached.
type CacheEntry struct {
	Fingerprint Fingerprint  `json:"fingerprint"`
	ExitCode    int          `json:"exit_code"`
	Stdout      []byte       `json:"stdout,omitempty"`
	Stderr      []byte       `json:"stderr,omitempty"`
	Files       []OutputFile `json:"files,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
