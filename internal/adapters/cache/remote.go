package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/zerr"
)

// defaultRemoteTimeout bounds every remote cache request. A slow cache
// server must never stall a build longer than this.
const defaultRemoteTimeout = 30 * time.Second

// RemoteStore talks to a shared cache server over HTTP. Entries live under
// /v1/entries/{fingerprint} and blobs under /v1/blobs/{hash}; GET returns
// 404 for absent objects and PUT is idempotent.
type RemoteStore struct {
	base   string
	token  string
	client *http.Client
}

// NewRemoteStore creates a store for the server at baseURL. token, when
// non-empty, is sent as a bearer credential on every request.
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		base:   baseURL,
		token:  token,
		client: &http.Client{Timeout: defaultRemoteTimeout},
	}
}

// Get retrieves the entry for a fingerprint. Returns nil, nil on a miss.
func (s *RemoteStore) Get(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	data, found, err := s.get(ctx, s.entryURL(fp))
	if err != nil || !found {
		return nil, err
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreDecodeFailed.Error())
	}
	return &entry, nil
}

// Put uploads the blobs followed by the entry, so no reader can observe an
// entry whose manifest points at content the server does not hold yet.
func (s *RemoteStore) Put(ctx context.Context, entry *domain.CacheEntry, blobs map[string][]byte) error {
	for hash, content := range blobs {
		if err := s.put(ctx, s.blobURL(hash), content); err != nil {
			return err
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return s.put(ctx, s.entryURL(entry.Fingerprint), data)
}

// ReadBlob downloads a blob by content hash.
func (s *RemoteStore) ReadBlob(ctx context.Context, hash string) ([]byte, error) {
	data, found, err := s.get(ctx, s.blobURL(hash))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, zerr.With(domain.ErrBlobNotFound, "hash", hash)
	}
	return data, nil
}

func (s *RemoteStore) get(ctx context.Context, target string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
		}
		return data, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, zerr.With(zerr.With(domain.ErrStoreReadFailed,
			"status", resp.StatusCode), "url", target)
	}
}

func (s *RemoteStore) put(ctx context.Context, target string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return zerr.With(zerr.With(domain.ErrStoreWriteFailed,
			"status", resp.StatusCode), "url", target)
	}
	return nil
}

func (s *RemoteStore) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

func (s *RemoteStore) entryURL(fp domain.Fingerprint) string {
	return fmt.Sprintf("%s/v1/entries/%s", s.base, url.PathEscape(fp.String()))
}

func (s *RemoteStore) blobURL(hash string) string {
	return fmt.Sprintf("%s/v1/blobs/%s", s.base, url.PathEscape(hash))
}
