package artifact

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

const memoryBaseURL = "memory://artifacts"

// MemoryStore keeps objects in process memory. Used when no S3 endpoint is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, obj Object) (string, error) {
	content, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", errors.Wrap(err, "reading object body")
	}

	key := objectKey(obj)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = content

	return memoryBaseURL + "/" + key, nil
}

func (m *MemoryStore) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(memoryBaseURL, url)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Get returns the content stored behind url.
func (m *MemoryStore) Get(url string) ([]byte, bool) {
	key, err := keyFromURL(memoryBaseURL, url)
	if err != nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	content, found := m.objects[key]
	return content, found
}

func (m *MemoryStore) Type() string {
	return "memory"
}
