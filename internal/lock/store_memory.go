package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
)

// InMemoryStore mirrors the Postgres store semantics for unit tests,
// including the idempotent insert and conditional release.
type InMemoryStore struct {
	mu    sync.RWMutex
	locks map[id.LockID]*Lock
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{locks: make(map[id.LockID]*Lock)}
}

func (s *InMemoryStore) InsertActive(_ context.Context, l *Lock) (id.LockID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.AlertID != nil {
		for _, existing := range s.locks {
			if existing.Status != StatusLocked || existing.AlertID == nil {
				continue
			}
			if *existing.AlertID == *l.AlertID &&
				existing.PropertyID == l.PropertyID &&
				existing.BlockedAction == l.BlockedAction {
				return existing.ID, false, nil
			}
		}
	}

	clone := *l
	s.locks[l.ID] = &clone
	return l.ID, true, nil
}

func (s *InMemoryStore) Get(_ context.Context, lockID id.LockID) (*Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locks[lockID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "lock not found")
	}
	clone := *l
	return &clone, nil
}

func (s *InMemoryStore) ListActiveByProperty(_ context.Context, propertyID id.PropertyID) ([]*Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(l *Lock) bool {
		return l.Status == StatusLocked && l.PropertyID == propertyID
	}), nil
}

func (s *InMemoryStore) ListActiveByAlert(_ context.Context, alertID id.AlertID) ([]*Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(l *Lock) bool {
		return l.Status == StatusLocked && l.AlertID != nil && *l.AlertID == alertID
	}), nil
}

func (s *InMemoryStore) ListActiveLockedBefore(_ context.Context, cutoff time.Time) ([]*Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(l *Lock) bool {
		return l.Status == StatusLocked && !l.LockedAt.After(cutoff)
	}), nil
}

func (s *InMemoryStore) CountActiveByProperty(_ context.Context, propertyID id.PropertyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, l := range s.locks {
		if l.Status == StatusLocked && l.PropertyID == propertyID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) Release(_ context.Context, lockID id.LockID, to Status, by, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[lockID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "lock not found")
	}
	if l.Status != StatusLocked {
		err := dErrors.New(dErrors.CodeConflict, "lock is not locked")
		_ = dErrors.Add(err, "current_status", string(l.Status))
		return err
	}

	unlockedAt := at
	duration := unlockedAt.Sub(l.LockedAt).Hours()
	l.Status = to
	l.UnlockedAt = &unlockedAt
	l.UnlockedBy = by
	l.UnlockReason = reason
	l.DurationHours = &duration
	return nil
}

// filter copies matching locks in a stable order so tests are deterministic.
func (s *InMemoryStore) filter(keep func(*Lock) bool) []*Lock {
	var out []*Lock
	for _, l := range s.locks {
		if keep(l) {
			clone := *l
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LockedAt.Equal(out[j].LockedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].LockedAt.Before(out[j].LockedAt)
	})
	return out
}
