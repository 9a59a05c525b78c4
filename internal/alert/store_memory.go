package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
)

// InMemoryStore mirrors the Postgres store semantics for unit tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]*Alert
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{alerts: make(map[id.AlertID]*Alert)}
}

func (s *InMemoryStore) Insert(_ context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[a.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "alert already exists")
	}
	clone := *a
	s.alerts[a.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, alertID id.AlertID) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	clone := *a
	return &clone, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, alertID id.AlertID, to Status, actor, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	if a.Status != StatusPending {
		err := dErrors.New(dErrors.CodeConflict, "alert is no longer pending")
		_ = dErrors.Add(err, "current_status", string(a.Status))
		return err
	}

	resolvedAt := at
	a.Status = to
	a.ResolvedAt = &resolvedAt
	a.ResolutionNotes = notes
	switch to {
	case StatusApproved:
		a.ApprovedBy = actor
	case StatusRejected:
		a.RejectedBy = actor
	}
	return nil
}

func (s *InMemoryStore) Expire(_ context.Context, alertID id.AlertID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	if a.Status != StatusPending {
		err := dErrors.New(dErrors.CodeConflict, "alert is no longer pending")
		_ = dErrors.Add(err, "current_status", string(a.Status))
		return err
	}

	resolvedAt := at
	a.Status = StatusExpired
	a.ResolvedAt = &resolvedAt
	return nil
}

func (s *InMemoryStore) ListPendingByCommittee(_ context.Context, committee string) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a *Alert) bool {
		return a.Status == StatusPending && a.Committee == committee
	}), nil
}

func (s *InMemoryStore) ListPendingCreatedBefore(_ context.Context, cutoff time.Time) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a *Alert) bool {
		return a.Status == StatusPending && !a.CreatedAt.After(cutoff)
	}), nil
}

func (s *InMemoryStore) ListByProperty(_ context.Context, propertyID id.PropertyID) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a *Alert) bool {
		return a.PropertyID == propertyID
	}), nil
}

func (s *InMemoryStore) filter(keep func(*Alert) bool) []*Alert {
	var out []*Alert
	for _, a := range s.alerts {
		if keep(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
