package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps every collection in process memory. Used for tests and
// throwaway local runs.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	v, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBytes(v), nil
}

func (m *MemoryBackend) Scan(ctx context.Context, collection, prefix string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	return scanMap(m.data[collection], prefix), nil
}

func (m *MemoryBackend) Put(ctx context.Context, collection, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	m.bucket(collection)[id] = copyBytes(data)
	return nil
}

func (m *MemoryBackend) Insert(ctx context.Context, collection, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	b := m.bucket(collection)
	if _, ok := b[id]; ok {
		return ErrExists
	}
	b[id] = copyBytes(data)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	b := m.data[collection]
	if _, ok := b[id]; !ok {
		return ErrNotFound
	}
	delete(b, id)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// bucket must be called with mu held.
func (m *MemoryBackend) bucket(collection string) map[string][]byte {
	b, ok := m.data[collection]
	if !ok {
		b = make(map[string][]byte)
		m.data[collection] = b
	}
	return b
}

func scanMap[V ~[]byte](records map[string]V, prefix string) [][]byte {
	keys := make([]string, 0, len(records))
	for k := range records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, copyBytes(records[k]))
	}
	return out
}

func copyBytes[V ~[]byte](in V) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
