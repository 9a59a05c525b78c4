// Package lock owns action-lock entities: records that block specific
// property-level operations while a governance alert awaits committee review.
package lock

import (
	"time"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	pstrings "keystone/pkg/platform/strings"
)

// Action is the closed set of property operations a lock can gate. Keeping it
// a tagged enum makes authorization checks exhaustive instead of
// string-matched.
type Action string

const (
	ActionRefinance Action = "refinance"
	ActionSell      Action = "sell"
	ActionDispose   Action = "dispose"
	ActionAcquire   Action = "acquire"
)

// AllActions lists every member of the closed enum, in declaration order.
func AllActions() []Action {
	return []Action{ActionRefinance, ActionSell, ActionDispose, ActionAcquire}
}

// ParseAction validates a raw action string at trust boundaries.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionRefinance, ActionSell, ActionDispose, ActionAcquire:
		return Action(raw), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown blocked action: "+raw)
}

// ParseActions validates a set of raw action strings, deduplicating while
// preserving first-seen order.
func ParseActions(raw []string) ([]Action, error) {
	cleaned := pstrings.DedupeAndTrimLower(raw)
	if len(cleaned) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one blocked action is required")
	}
	actions := make([]Action, 0, len(cleaned))
	for _, r := range cleaned {
		action, err := ParseAction(r)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Status is the lock lifecycle state. A lock starts locked; unlocked and
// expired are terminal.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusExpired  Status = "expired"
)

// Type distinguishes locks created from critical alerts from manual
// administrative locks.
type Type string

const (
	TypeAlert  Type = "alert"
	TypeManual Type = "manual"
)

// Lock blocks one property action. Alert-driven creation emits one lock per
// blocked action so the (alert, property, action) uniqueness key has a
// natural single-column form; the operation surface deals in action sets.
// Rows are never deleted.
type Lock struct {
	ID            id.LockID     `json:"id"`
	PropertyID    id.PropertyID `json:"propertyId"`
	AlertID       *id.AlertID   `json:"alertId,omitempty"` // weak back-reference; nil for manual locks
	Type          Type          `json:"type"`
	Reason        string        `json:"reason"`
	Severity      string        `json:"severity,omitempty"`
	BlockedAction Action        `json:"blockedAction"`
	Status        Status        `json:"status"`
	LockedAt      time.Time     `json:"lockedAt"`
	UnlockedAt    *time.Time    `json:"unlockedAt,omitempty"`
	LockedBy      string        `json:"lockedBy,omitempty"`
	UnlockedBy    string        `json:"unlockedBy,omitempty"`
	UnlockReason  string        `json:"unlockReason,omitempty"`
	DurationHours *float64      `json:"durationHours,omitempty"` // UnlockedAt - LockedAt in fractional hours
}

// Active reports whether the lock currently blocks its action.
func (l *Lock) Active() bool { return l.Status == StatusLocked }
