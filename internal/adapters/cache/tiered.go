package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
)

// backfillConcurrency bounds parallel blob downloads during a remote hit.
const backfillConcurrency = 4

// TieredStore layers a shared remote store behind a local one. Reads prefer
// the local tier and backfill it from the remote on a hit; writes go to both
// tiers. Remote failures degrade to local-only behavior and are reported
// through the logger, never to the caller.
type TieredStore struct {
	local  *LocalStore
	remote *RemoteStore
	logger ports.Logger
}

// NewTieredStore combines a local and a remote store.
func NewTieredStore(local *LocalStore, remote *RemoteStore, logger ports.Logger) *TieredStore {
	return &TieredStore{local: local, remote: remote, logger: logger}
}

// Get checks the local tier first and falls back to the remote. A remote hit
// is copied into the local tier, blobs included, so later runs stay off the
// network.
func (s *TieredStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	entry, err := s.local.Get(ctx, fp)
	if err != nil || entry != nil {
		return entry, err
	}

	entry, err = s.remote.Get(ctx, fp)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("remote cache lookup failed: %v", err))
		return nil, nil
	}
	if entry == nil {
		return nil, nil
	}

	s.backfill(ctx, entry)
	return entry, nil
}

// Put writes to the local tier and then uploads to the remote. An upload
// failure only costs other machines the entry.
func (s *TieredStore) Put(ctx context.Context, entry *domain.CacheEntry, blobs map[string][]byte) error {
	if err := s.local.Put(ctx, entry, blobs); err != nil {
		return err
	}

	if err := s.remote.Put(ctx, entry, blobs); err != nil {
		s.logger.Warn(fmt.Sprintf("remote cache upload failed: %v", err))
	}
	return nil
}

// ReadBlob serves from the local tier, fetching from the remote and caching
// locally when the blob is not yet present.
func (s *TieredStore) ReadBlob(ctx context.Context, hash string) ([]byte, error) {
	data, err := s.local.ReadBlob(ctx, hash)
	if err == nil {
		return data, nil
	}

	data, err = s.remote.ReadBlob(ctx, hash)
	if err != nil {
		return nil, err
	}

	if err := s.local.writeBlob(hash, data); err != nil {
		s.logger.Warn(fmt.Sprintf("local blob backfill failed: %v", err))
	}
	return data, nil
}

// backfill copies a remote entry and its blobs into the local tier. Blobs
// are fetched concurrently; a partial failure is logged and abandoned, the
// remote copy stays authoritative.
func (s *TieredStore) backfill(ctx context.Context, entry *domain.CacheEntry) {
	hashes := make([]string, 0, len(entry.Files))
	seen := make(map[string]bool, len(entry.Files))
	for _, file := range entry.Files {
		if !seen[file.Hash] {
			seen[file.Hash] = true
			hashes = append(hashes, file.Hash)
		}
	}

	var mu sync.Mutex
	blobs := make(map[string][]byte, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, hash := range hashes {
		g.Go(func() error {
			data, err := s.remote.ReadBlob(gctx, hash)
			if err != nil {
				return err
			}
			mu.Lock()
			blobs[hash] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn(fmt.Sprintf("remote blob fetch failed: %v", err))
		return
	}

	if err := s.local.Put(ctx, entry, blobs); err != nil {
		s.logger.Warn(fmt.Sprintf("local cache backfill failed: %v", err))
	}
}
