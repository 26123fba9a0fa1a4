package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"accountx/internal/domain"
)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore keeps media content in memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]blob)}
}

func (b *BlobStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = blob{data: data, contentType: contentType}
	return nil
}

func (b *BlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(v.data)), nil
}

func (b *BlobStore) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

// Len reports the number of stored blobs.
func (b *BlobStore) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs)
}
