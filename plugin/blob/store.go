package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrObjectNotFound is returned by a Store when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Store is a bucket/key blob store.
type Store interface {
	// Get opens the object. The caller closes the returned reader.
	Get(ctx context.Context, loc *Locator) (io.ReadCloser, error)
}

// MemoryStore is an in-process Store, used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores a copy of data under bucket/key.
func (m *MemoryStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memoryKey(bucket, key)] = bytes.Clone(data)
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, loc *Locator) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.objects[memoryKey(loc.Bucket, loc.Key)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
