package tokens

import (
	"sort"
	"sync"
)

// Store is the identity cache of live models, keyed by token id. Only the
// Source that owns it inserts or evicts entries.
type Store struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewStore creates an empty identity cache.
func NewStore() *Store {
	return &Store{models: make(map[string]Model)}
}

// Get returns the live model for id.
func (s *Store) Get(id string) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	return m, ok
}

// Len returns the number of live models.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// IDs returns the ids of all live models, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) put(m Model) {
	s.mu.Lock()
	s.models[m.ID()] = m
	s.mu.Unlock()
}

func (s *Store) evict(id string) (Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if ok {
		delete(s.models, id)
	}
	return m, ok
}
