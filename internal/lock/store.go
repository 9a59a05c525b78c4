package lock

import (
	"context"
	"time"

	id "keystone/pkg/domain"
)

// Store is pure I/O over lock rows. Transition preconditions are encoded in
// the conditional mutations so concurrent actors converge instead of
// double-processing; business orchestration belongs to the service layer.
type Store interface {
	// InsertActive persists a new locked row. When an active row already
	// exists for the same (alert, property, action) key it returns that
	// row's ID with created=false instead of duplicating.
	InsertActive(ctx context.Context, l *Lock) (lockID id.LockID, created bool, err error)

	Get(ctx context.Context, lockID id.LockID) (*Lock, error)
	ListActiveByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Lock, error)
	ListActiveByAlert(ctx context.Context, alertID id.AlertID) ([]*Lock, error)
	ListActiveLockedBefore(ctx context.Context, cutoff time.Time) ([]*Lock, error)
	CountActiveByProperty(ctx context.Context, propertyID id.PropertyID) (int, error)

	// Release transitions a lock out of locked iff it is still locked,
	// recording releaser, reason and the computed duration. Returns
	// sentinel-free domain errors: CodeNotFound for unknown IDs,
	// CodeConflict (with current status attached) when the precondition
	// fails.
	Release(ctx context.Context, lockID id.LockID, to Status, by, reason string, at time.Time) error
}
