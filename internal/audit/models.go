// Package audit provides the append-only trail of governance state
// transitions. Every transition performed by the engine writes exactly one
// entry inside the same transaction as the mutation it describes; entries are
// immutable and never deleted.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names which entity an entry describes.
type EntityType string

const (
	EntityAlert    EntityType = "alert"
	EntityLock     EntityType = "lock"
	EntityProperty EntityType = "property"
)

// Action labels the transition that produced an entry.
type Action string

const (
	ActionAlertCreated  Action = "alert_created"
	ActionAlertApproved Action = "alert_approved"
	ActionAlertRejected Action = "alert_rejected"
	ActionAlertExpired  Action = "alert_expired"
	ActionLockCreated   Action = "lock_created"
	ActionLockReleased  Action = "lock_released"
	ActionManualLock    Action = "manual_lock"
	ActionManualUnlock  Action = "manual_unlock"
	ActionLockExpired   Action = "lock_expired"
	ActionFlagRecompute Action = "flag_recomputed"
)

// Entry records one state transition. FromState/ToState are the entity's
// lifecycle states; Actor is the committee member, administrator, or "system"
// for sweeper transitions.
type Entry struct {
	ID          uuid.UUID
	EntityType  EntityType
	EntityID    string
	Action      Action
	FromState   string
	ToState     string
	Actor       string
	Reason      string
	RequestID   string
	RecordedAt  time.Time
	PublishedAt *time.Time // set once the outbox worker has shipped the entry
}
