// Package cache implements content-addressed storage for task results.
//
// A store holds two kinds of objects: entries, one JSON document per
// fingerprint describing a completed task, and blobs, the raw content of
// output files keyed by content hash. Both are immutable once written.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/zerr"
)

// LocalStore persists entries and blobs under a directory on disk,
// typically .mono/cache at the workspace root.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir. The directory is created
// lazily on the first write.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Get retrieves the entry for a fingerprint. Returns nil, nil on a miss.
func (s *LocalStore) Get(_ context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	data, err := os.ReadFile(s.entryPath(fp))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreDecodeFailed.Error())
	}

	return &entry, nil
}

// Put stores an entry and its blobs. First writer wins: an existing entry
// for the same fingerprint is left untouched.
func (s *LocalStore) Put(_ context.Context, entry *domain.CacheEntry, blobs map[string][]byte) error {
	if _, err := os.Stat(s.entryPath(entry.Fingerprint)); err == nil {
		return nil
	}

	for hash, content := range blobs {
		if err := s.writeBlob(hash, content); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	// Blobs land before the entry so a reader never sees an entry whose
	// manifest points at missing content.
	return s.writeAtomic(s.entryPath(entry.Fingerprint), data)
}

// ReadBlob returns the content of a stored blob.
func (s *LocalStore) ReadBlob(_ context.Context, hash string) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrBlobNotFound, "hash", hash)
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	return data, nil
}

func (s *LocalStore) writeBlob(hash string, content []byte) error {
	path := s.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return s.writeAtomic(path, content)
}

// writeAtomic writes to a temporary file in the target directory and
// renames it into place, so concurrent runs never observe partial objects.
func (s *LocalStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

func (s *LocalStore) entryPath(fp domain.Fingerprint) string {
	return filepath.Join(s.dir, domain.EntriesDirName, fp.String()+".json")
}

func (s *LocalStore) blobPath(hash string) string {
	return filepath.Join(s.dir, domain.BlobsDirName, hash)
}
