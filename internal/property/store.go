// Package property owns the derived has-active-alerts flag read by
// portfolio-level listing views. The flag is never independently settable; it
// is recomputed from live lock state inside the same transaction as any lock
// mutation.
package property

import (
	"context"
	"time"

	id "keystone/pkg/domain"
)

// Flag is the derived per-property marker.
type Flag struct {
	PropertyID      id.PropertyID
	HasActiveAlerts bool
	UpdatedAt       time.Time
}

// Store is pure I/O over the flag rows. Only the Synchronizer writes here.
type Store interface {
	Get(ctx context.Context, propertyID id.PropertyID) (*Flag, error)
	Upsert(ctx context.Context, flag Flag) error
}
