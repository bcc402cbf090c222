package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryStore keeps objects in process. Signed URLs use the memory:// scheme.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	folder  string
	now     func() time.Time
}

func NewMemoryStore(folder string) *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), folder: folder, now: time.Now}
}

func (m *MemoryStore) Upload(ctx context.Context, f File, prefix string) (Object, error) {
	data, err := io.ReadAll(f.Body)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read upload: %w", err)
	}

	m.mu.Lock()
	key := objectKey(m.folder, prefix, f.Name, m.now())
	// Same-millisecond uploads of one name would collide; bump until free.
	for i := 1; m.objects[key] != nil; i++ {
		key = objectKey(m.folder, prefix, fmt.Sprintf("%d-%s", i, f.Name), m.now())
	}
	m.objects[key] = data
	m.mu.Unlock()

	url, err := m.SignedURL(ctx, key, time.Hour)
	return Object{Key: key, URL: url}, err
}

func (m *MemoryStore) UploadLarge(ctx context.Context, f File, prefix string) (Object, error) {
	return m.Upload(ctx, f, prefix)
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) DeleteMany(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	expires := m.now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s?expires=%d", url.PathEscape(key), expires), nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
