package schedule

import (
	"context"
	"sort"
	"sync"
)

// Sessions keeps one open Store per user so each user has a single writer.
type Sessions struct {
	cfg Config

	mu     sync.Mutex
	stores map[string]*Store
}

// NewSessions creates a session registry whose stores share cfg.
func NewSessions(cfg Config) *Sessions {
	return &Sessions{
		cfg:    cfg.withDefaults(),
		stores: make(map[string]*Store),
	}
}

// Open returns the user's store, loading it from persistence on first use.
// Loads run outside the registry lock; when two first requests race, the first store
// registered wins and the other load is discarded.
func (s *Sessions) Open(ctx context.Context, userID string) (*Store, error) {
	s.mu.Lock()
	st, ok := s.stores[userID]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	loaded, err := Open(ctx, userID, s.cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[userID]; ok {
		return st, nil
	}
	s.stores[userID] = loaded
	return loaded, nil
}

// Close forgets the user's store. Persisted data is kept.
func (s *Sessions) Close(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, userID)
}

// Users returns the ids of users with an open store, sorted.
func (s *Sessions) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.stores))
	for id := range s.stores {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
