package schedule

import (
	"context"
	"sync"
)

// Kind names one of the snapshots kept per user.
type Kind string

const (
	KindSchedule Kind = "schedule"
	KindProgress Kind = "progress"
)

// Key addresses one persisted snapshot.
type Key struct {
	Kind   Kind
	UserID string
}

func (k Key) String() string {
	return "study:" + string(k.Kind) + ":" + k.UserID
}

// Persistence is the key-value boundary the store saves snapshots through.
// Load returns ErrNotFound when nothing is stored under key.
type Persistence interface {
	Load(ctx context.Context, key Key) ([]byte, error)
	Save(ctx context.Context, key Key, data []byte) error
	Delete(ctx context.Context, key Key) error
}

// MemoryPersistence keeps snapshots in process memory.
type MemoryPersistence struct {
	data map[Key][]byte
	mu   sync.RWMutex
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		data: make(map[Key][]byte),
	}
}

func (m *MemoryPersistence) Load(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryPersistence) Save(_ context.Context, key Key, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryPersistence) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
