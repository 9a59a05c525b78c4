package property

import (
	"context"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/requestcontext"
)

// ActiveLockCounter is the slice of the lock store the synchronizer needs.
type ActiveLockCounter interface {
	CountActiveByProperty(ctx context.Context, propertyID id.PropertyID) (int, error)
}

// Synchronizer re-derives a property's has-active-alerts flag from live lock
// state. Callers invoke Recompute inside the same transaction as the lock
// mutation; the flag is never an eventually-consistent cache.
type Synchronizer struct {
	flags Store
	locks ActiveLockCounter
}

func NewSynchronizer(flags Store, locks ActiveLockCounter) *Synchronizer {
	return &Synchronizer{flags: flags, locks: locks}
}

// Recompute derives and persists the flag, returning the derived value.
// Also exposed as an on-demand repair operation.
func (s *Synchronizer) Recompute(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	count, err := s.locks.CountActiveByProperty(ctx, propertyID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "count active locks for flag recompute")
	}
	flag := Flag{
		PropertyID:      propertyID,
		HasActiveAlerts: count > 0,
		UpdatedAt:       requestcontext.Now(ctx),
	}
	if err := s.flags.Upsert(ctx, flag); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "persist property flag")
	}
	return flag.HasActiveAlerts, nil
}

// HasActiveAlerts reads the stored flag.
func (s *Synchronizer) HasActiveAlerts(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	flag, err := s.flags.Get(ctx, propertyID)
	if err != nil {
		return false, err
	}
	return flag.HasActiveAlerts, nil
}
