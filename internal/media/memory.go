package media

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory BlobStore for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string
	putErr  error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// FailPuts makes subsequent Put calls return err. Pass nil to restore.
func (m *MemoryStore) FailPuts(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

// Put stores the bytes under "mem://<key>".
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	ref := fmt.Sprintf("mem://%s", key)
	m.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Delete removes the bytes for ref and records the deletion.
func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	m.deletes = append(m.deletes, ref)
	return nil
}

// Len reports the number of live objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Deleted returns the references deleted so far.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletes))
	copy(out, m.deletes)
	return out
}
