// Package service implements the lock engine: creating locks from critical
// alerts, releasing them on resolution or manual override, and expiring stale
// ones. Every mutation recomputes the owning property's flag and writes its
// audit entry inside the same transaction.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"keystone/internal/alert"
	"keystone/internal/audit"
	"keystone/internal/governance"
	"keystone/internal/lock"
	"keystone/internal/lock/metrics"
	"keystone/internal/property"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/requestcontext"
)

// systemActor marks transitions performed by the engine itself rather than a
// person.
const systemActor = "system"

type Engine struct {
	tx       governance.Tx
	stores   governance.Stores
	flags    *property.Synchronizer
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(tx governance.Tx, stores governance.Stores, flags *property.Synchronizer, recorder *audit.Recorder, opts ...Option) (*Engine, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if stores.Locks == nil || stores.Flags == nil {
		return nil, fmt.Errorf("lock and flag stores are required")
	}
	if flags == nil {
		return nil, fmt.Errorf("flag synchronizer is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}

	e := &Engine{
		tx:       tx,
		stores:   stores,
		flags:    flags,
		recorder: recorder,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("keystone/lock"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LockFromAlert creates one lock per blocked action for a critical alert and
// recomputes the property flag. It joins the caller's ambient transaction:
// the alert service invokes it inside the alert-creation transaction so alert
// and locks commit as one unit. Idempotent: a retried call reuses the active
// lock for each (alert, property, action) instead of duplicating it. Returns
// the IDs of the locks created or reused.
func (e *Engine) LockFromAlert(ctx context.Context, a *alert.Alert, actions []lock.Action, lockedBy string) ([]id.LockID, error) {
	if len(actions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one blocked action is required")
	}
	if lockedBy == "" {
		lockedBy = systemActor
	}
	now := requestcontext.Now(ctx)

	lockIDs := make([]id.LockID, 0, len(actions))
	for _, action := range actions {
		alertID := a.ID
		candidate := &lock.Lock{
			ID:            id.NewLockID(),
			PropertyID:    a.PropertyID,
			AlertID:       &alertID,
			Type:          lock.TypeAlert,
			Reason:        fmt.Sprintf("%s alert on metric %s", a.Severity, a.MetricName),
			Severity:      string(a.Severity),
			BlockedAction: action,
			Status:        lock.StatusLocked,
			LockedAt:      now,
			LockedBy:      lockedBy,
		}
		lockID, created, err := e.stores.Locks.InsertActive(ctx, candidate)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create lock from alert")
		}
		lockIDs = append(lockIDs, lockID)
		if !created {
			continue
		}
		e.metrics.IncCreated(string(lock.TypeAlert))
		err = e.recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityLock,
			EntityID:   lockID.String(),
			Action:     audit.ActionLockCreated,
			ToState:    string(lock.StatusLocked),
			Actor:      lockedBy,
			Reason:     candidate.Reason,
		})
		if err != nil {
			return nil, err
		}
	}

	if _, err := e.flags.Recompute(ctx, a.PropertyID); err != nil {
		return nil, err
	}
	return lockIDs, nil
}

// ReleaseForAlert transitions every active lock tied to alertID out of
// locked. It touches only that alert's locks: a property may carry locks from
// several unresolved alerts and the others stay locked. Joins the ambient
// transaction of the alert resolution. Returns the number released.
func (e *Engine) ReleaseForAlert(ctx context.Context, alertID id.AlertID, to lock.Status, by, reason string, action audit.Action) (int, error) {
	locks, err := e.stores.Locks.ListActiveByAlert(ctx, alertID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list locks for alert")
	}

	now := requestcontext.Now(ctx)
	released := 0
	properties := make(map[id.PropertyID]bool)
	for _, l := range locks {
		if err := e.release(ctx, l, to, by, reason, action, now); err != nil {
			return released, err
		}
		released++
		properties[l.PropertyID] = true
	}

	for propertyID := range properties {
		if _, err := e.flags.Recompute(ctx, propertyID); err != nil {
			return released, err
		}
	}
	return released, nil
}

// ExpireForAlert is the sweeper-facing variant: when a pending alert expires
// its still-locked locks expire with it, in the same transaction.
func (e *Engine) ExpireForAlert(ctx context.Context, alertID id.AlertID) (int, error) {
	return e.ReleaseForAlert(ctx, alertID, lock.StatusExpired, systemActor, "originating alert expired", audit.ActionLockExpired)
}

// ManualLock creates administrative locks for an action set, outside any
// alert. Runs in its own transaction.
func (e *Engine) ManualLock(ctx context.Context, propertyID id.PropertyID, actions []lock.Action, reason, actor string) ([]id.LockID, error) {
	if actor == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "lock reason is required")
	}
	if len(actions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one blocked action is required")
	}

	ctx, span := e.tracer.Start(ctx, "lock.manual_lock")
	defer span.End()

	var lockIDs []id.LockID
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		for _, action := range actions {
			l := &lock.Lock{
				ID:            id.NewLockID(),
				PropertyID:    propertyID,
				Type:          lock.TypeManual,
				Reason:        reason,
				BlockedAction: action,
				Status:        lock.StatusLocked,
				LockedAt:      now,
				LockedBy:      actor,
			}
			lockID, _, err := e.stores.Locks.InsertActive(ctx, l)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "create manual lock")
			}
			lockIDs = append(lockIDs, lockID)
			e.metrics.IncCreated(string(lock.TypeManual))
			err = e.recorder.Record(ctx, audit.Entry{
				EntityType: audit.EntityLock,
				EntityID:   lockID.String(),
				Action:     audit.ActionManualLock,
				ToState:    string(lock.StatusLocked),
				Actor:      actor,
				Reason:     reason,
			})
			if err != nil {
				return err
			}
		}
		_, err := e.flags.Recompute(ctx, propertyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "manual locks created",
		"property_id", propertyID,
		"actions", actions,
		"actor", actor,
	)
	return lockIDs, nil
}

// ManualUnlock releases a single lock as an administrative override, distinct
// from resolution-driven unlocking. The originating alert, if any, stays
// pending: the override gates the property action, not the committee
// question. Audited as manual_unlock.
func (e *Engine) ManualUnlock(ctx context.Context, lockID id.LockID, actor, reason string) error {
	if actor == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "unlock reason is required")
	}

	ctx, span := e.tracer.Start(ctx, "lock.manual_unlock")
	defer span.End()

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		l, err := e.stores.Locks.Get(ctx, lockID)
		if err != nil {
			return err
		}
		if err := e.release(ctx, l, lock.StatusUnlocked, actor, reason, audit.ActionManualUnlock, requestcontext.Now(ctx)); err != nil {
			return err
		}
		_, err = e.flags.Recompute(ctx, l.PropertyID)
		return err
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "lock manually unlocked",
		"lock_id", lockID,
		"actor", actor,
		"reason", reason,
	)
	return nil
}

// ExpireOld expires every lock still locked at or before the cutoff. Each row
// runs in its own transaction so an interrupted pass resumes safely; a
// per-row conflict means a concurrent actor already transitioned the lock and
// the row is skipped. Returns the number expired.
func (e *Engine) ExpireOld(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := e.tracer.Start(ctx, "lock.expire_old")
	defer span.End()

	stale, err := e.stores.Locks.ListActiveLockedBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list stale locks")
	}

	expired := 0
	for _, candidate := range stale {
		err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := e.release(ctx, candidate, lock.StatusExpired, systemActor, "lock exceeded maximum age", audit.ActionLockExpired, requestcontext.Now(ctx)); err != nil {
				return err
			}
			_, err := e.flags.Recompute(ctx, candidate.PropertyID)
			return err
		})
		switch {
		case err == nil:
			expired++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			// Already transitioned by a committee decision or another pass.
			continue
		default:
			return expired, err
		}
	}
	return expired, nil
}

// ActiveLocks lists the locks currently blocking actions on a property.
func (e *Engine) ActiveLocks(ctx context.Context, propertyID id.PropertyID) ([]*lock.Lock, error) {
	return e.stores.Locks.ListActiveByProperty(ctx, propertyID)
}

// Get returns one lock by ID.
func (e *Engine) Get(ctx context.Context, lockID id.LockID) (*lock.Lock, error) {
	return e.stores.Locks.Get(ctx, lockID)
}

// release performs the guarded transition plus its audit entry. The
// lockedAt/unlockedAt ordering invariant is checked first; a violation is
// surfaced to the operator, never auto-corrected.
func (e *Engine) release(ctx context.Context, l *lock.Lock, to lock.Status, by, reason string, action audit.Action, at time.Time) error {
	if at.Before(l.LockedAt) {
		err := dErrors.New(dErrors.CodeInvariantViolation, "unlock time precedes lock time")
		e.logger.ErrorContext(ctx, "lock release invariant violated",
			"lock_id", l.ID,
			"locked_at", l.LockedAt,
			"unlock_at", at,
		)
		return err
	}
	if err := e.stores.Locks.Release(ctx, l.ID, to, by, reason, at); err != nil {
		return err
	}
	e.metrics.IncReleased(releaseCause(action))
	return e.recorder.Record(ctx, audit.Entry{
		EntityType: audit.EntityLock,
		EntityID:   l.ID.String(),
		Action:     action,
		FromState:  string(lock.StatusLocked),
		ToState:    string(to),
		Actor:      by,
		Reason:     reason,
	})
}

func releaseCause(action audit.Action) string {
	switch action {
	case audit.ActionManualUnlock:
		return "manual"
	case audit.ActionLockExpired:
		return "expired"
	default:
		return "resolution"
	}
}
