// Package authz answers the question external workflow systems ask before
// executing a property action: is this action currently blocked by an
// unresolved governance lock? It is a read path only and never mutates
// state; lock lifecycle belongs to the lock engine.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"keystone/internal/lock"
	id "keystone/pkg/domain"
)

// LockReader is the slice of the lock store the authorizer needs.
type LockReader interface {
	ListActiveByProperty(ctx context.Context, propertyID id.PropertyID) ([]*lock.Lock, error)
}

// Blocker describes one lock standing in the way of an action, with enough
// context for the caller to route an override request to the right committee.
type Blocker struct {
	LockID    id.LockID   `json:"lockId"`
	AlertID   *id.AlertID `json:"alertId,omitempty"`
	Type      lock.Type   `json:"type"`
	Reason    string      `json:"reason"`
	Severity  string      `json:"severity"`
	Committee string      `json:"committee,omitempty"`
}

// Decision is the authorization verdict for a single property action.
type Decision struct {
	PropertyID id.PropertyID `json:"propertyId"`
	Action     lock.Action   `json:"action"`
	Allowed    bool          `json:"allowed"`
	Blockers   []Blocker     `json:"blockers,omitempty"`
}

// CommitteeResolver maps an originating alert to the committee that can
// release its locks. Nil alert IDs (manual locks) resolve to the empty string.
type CommitteeResolver interface {
	CommitteeFor(ctx context.Context, alertID id.AlertID) (string, error)
}

type Authorizer struct {
	locks      LockReader
	committees CommitteeResolver
	logger     *slog.Logger
}

type Option func(*Authorizer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) { a.logger = logger }
}

func New(locks LockReader, committees CommitteeResolver, opts ...Option) (*Authorizer, error) {
	if locks == nil {
		return nil, fmt.Errorf("lock reader is required")
	}
	if committees == nil {
		return nil, fmt.Errorf("committee resolver is required")
	}
	a := &Authorizer{
		locks:      locks,
		committees: committees,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CheckAction reports whether the given action may proceed on the property.
// Denied decisions carry every lock blocking the action so the caller can
// surface all of them at once instead of discovering them one retry at a time.
func (a *Authorizer) CheckAction(ctx context.Context, propertyID id.PropertyID, action lock.Action) (Decision, error) {
	decision := Decision{PropertyID: propertyID, Action: action, Allowed: true}

	active, err := a.locks.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return Decision{}, err
	}
	for _, l := range active {
		if l.BlockedAction != action {
			continue
		}
		blocker, err := a.blocker(ctx, l)
		if err != nil {
			return Decision{}, err
		}
		decision.Blockers = append(decision.Blockers, blocker)
	}
	decision.Allowed = len(decision.Blockers) == 0

	if !decision.Allowed {
		a.logger.InfoContext(ctx, "action denied",
			"property_id", propertyID,
			"action", action,
			"blockers", len(decision.Blockers),
		)
	}
	return decision, nil
}

// BlockedActions returns, per currently blocked action, the locks enforcing
// the block. Actions with no active lock are absent from the map.
func (a *Authorizer) BlockedActions(ctx context.Context, propertyID id.PropertyID) (map[lock.Action][]Blocker, error) {
	active, err := a.locks.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	blocked := make(map[lock.Action][]Blocker)
	for _, l := range active {
		blocker, err := a.blocker(ctx, l)
		if err != nil {
			return nil, err
		}
		blocked[l.BlockedAction] = append(blocked[l.BlockedAction], blocker)
	}
	return blocked, nil
}

func (a *Authorizer) blocker(ctx context.Context, l *lock.Lock) (Blocker, error) {
	b := Blocker{
		LockID:   l.ID,
		AlertID:  l.AlertID,
		Type:     l.Type,
		Reason:   l.Reason,
		Severity: l.Severity,
	}
	if l.AlertID != nil {
		committee, err := a.committees.CommitteeFor(ctx, *l.AlertID)
		if err != nil {
			return Blocker{}, err
		}
		b.Committee = committee
	}
	return b, nil
}
