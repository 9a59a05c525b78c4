package alert

import (
	"context"
	"time"

	id "keystone/pkg/domain"
)

// Store is pure I/O over alert rows. The two mutations are conditional on the
// row still being pending so concurrent committee decisions and sweeper
// passes converge: whoever commits first wins, the loser gets CodeConflict
// with the authoritative status attached.
type Store interface {
	Insert(ctx context.Context, a *Alert) error
	Get(ctx context.Context, alertID id.AlertID) (*Alert, error)

	// Resolve transitions pending -> approved|rejected, recording the actor
	// and notes. CodeNotFound for unknown IDs, CodeConflict when not pending.
	Resolve(ctx context.Context, alertID id.AlertID, to Status, actor, notes string, at time.Time) error

	// Expire transitions pending -> expired. Same precondition semantics as
	// Resolve.
	Expire(ctx context.Context, alertID id.AlertID, at time.Time) error

	ListPendingByCommittee(ctx context.Context, committee string) ([]*Alert, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Alert, error)
	ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Alert, error)
}
