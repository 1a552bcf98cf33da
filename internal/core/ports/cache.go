package ports

import (
	"context"

	"go.trai.ch/mono/internal/core/domain"
)

// CacheStore defines the interface for content-addressed result storage.
//
// Entries are immutable: Put is a no-op when the fingerprint already exists,
// so concurrent identical writes cannot corrupt the store. Store errors are
// an optimization loss, never a correctness problem; callers degrade to
// miss behavior.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheStore interface {
	// Get retrieves the entry for a fingerprint.
	// Returns nil, nil on a miss.
	Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error)

	// Put stores an entry together with the blob content of every file in
	// its manifest, keyed by content hash. First writer wins.
	Put(ctx context.Context, entry *domain.CacheEntry, blobs map[string][]byte) error

	// ReadBlob returns the content of a manifest blob.
	ReadBlob(ctx context.Context, hash string) ([]byte, error)
}
