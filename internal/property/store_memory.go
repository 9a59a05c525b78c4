package property

import (
	"context"
	"sync"

	id "keystone/pkg/domain"
)

// InMemoryStore mirrors the Postgres flag store for unit tests. A property
// with no row reads as flag=false, matching the SQL LEFT JOIN semantics.
type InMemoryStore struct {
	mu    sync.RWMutex
	flags map[id.PropertyID]Flag
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flags: make(map[id.PropertyID]Flag)}
}

func (s *InMemoryStore) Get(_ context.Context, propertyID id.PropertyID) (*Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if flag, ok := s.flags[propertyID]; ok {
		return &flag, nil
	}
	return &Flag{PropertyID: propertyID, HasActiveAlerts: false}, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, flag Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[flag.PropertyID] = flag
	return nil
}
