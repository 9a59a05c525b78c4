package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keystone/internal/alert"
	"keystone/internal/audit"
	"keystone/internal/governance"
	"keystone/internal/lock"
	"keystone/internal/property"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/requestcontext"
)

// =============================================================================
// Lock Engine Test Suite
// =============================================================================
// Justification for unit tests: the engine enforces the core governance rule.
// Tests verify idempotent lock creation, the per-alert release boundary, the
// administrative override path and the age-based expiry, all against the
// in-memory stores that mirror the Postgres conditional-update semantics.

type EngineSuite struct {
	suite.Suite
	locks      *lock.InMemoryStore
	flags      *property.InMemoryStore
	audits     *audit.InMemoryStore
	engine     *Engine
	propertyID id.PropertyID
	baseTime   time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.locks = lock.NewInMemoryStore()
	s.flags = property.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()

	stores := governance.Stores{
		Alerts: alert.NewInMemoryStore(),
		Locks:  s.locks,
		Flags:  s.flags,
		Audit:  s.audits,
	}
	sync := property.NewSynchronizer(s.flags, s.locks)

	var err error
	s.engine, err = New(governance.NewMemoryTx(), stores, sync, audit.NewRecorder(s.audits))
	s.Require().NoError(err)

	s.propertyID = id.NewPropertyID()
	s.baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *EngineSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *EngineSuite) criticalAlert() *alert.Alert {
	return &alert.Alert{
		ID:             id.NewAlertID(),
		PropertyID:     s.propertyID,
		Type:           alert.TypeThresholdBreach,
		Severity:       alert.SeverityCritical,
		MetricName:     "noi_variance",
		MetricCategory: alert.CategoryFinancial,
		Status:         alert.StatusPending,
		CreatedAt:      s.baseTime,
	}
}

func (s *EngineSuite) auditActions() []audit.Action {
	entries := s.audits.All()
	actions := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *EngineSuite) TestNewRequiresTxRunner() {
	_, err := New(nil, governance.Stores{Locks: s.locks}, nil, audit.NewRecorder(s.audits))
	s.Error(err)
}

// =============================================================================
// LockFromAlert
// =============================================================================

func (s *EngineSuite) TestLockFromAlertCreatesOneLockPerAction() {
	ctx := s.ctxAt(s.baseTime)
	a := s.criticalAlert()

	lockIDs, err := s.engine.LockFromAlert(ctx, a, []lock.Action{lock.ActionRefinance, lock.ActionSell, lock.ActionDispose}, "")
	s.Require().NoError(err)
	s.Len(lockIDs, 3)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Require().Len(active, 3)
	for _, l := range active {
		s.Equal(lock.TypeAlert, l.Type)
		s.Equal(lock.StatusLocked, l.Status)
		s.Require().NotNil(l.AlertID)
		s.Equal(a.ID, *l.AlertID)
		s.Equal(s.baseTime, l.LockedAt)
	}

	flagged, err := s.flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.True(flagged.HasActiveAlerts)

	s.Equal([]audit.Action{
		audit.ActionLockCreated,
		audit.ActionLockCreated,
		audit.ActionLockCreated,
	}, s.auditActions())
}

func (s *EngineSuite) TestLockFromAlertRedeliveryReusesLocks() {
	ctx := s.ctxAt(s.baseTime)
	a := s.criticalAlert()
	actions := []lock.Action{lock.ActionSell, lock.ActionRefinance}

	first, err := s.engine.LockFromAlert(ctx, a, actions, "")
	s.Require().NoError(err)

	second, err := s.engine.LockFromAlert(s.ctxAt(s.baseTime.Add(time.Minute)), a, actions, "")
	s.Require().NoError(err)
	s.ElementsMatch(first, second)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Len(active, 2, "redelivery must not stack duplicate locks")

	// Audit records creation only, not the idempotent replay.
	s.Len(s.auditActions(), 2)
}

func (s *EngineSuite) TestLocksFromDifferentAlertsAreIndependent() {
	ctx := s.ctxAt(s.baseTime)
	first := s.criticalAlert()
	second := s.criticalAlert()

	_, err := s.engine.LockFromAlert(ctx, first, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)
	_, err = s.engine.LockFromAlert(ctx, second, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Len(active, 2, "each alert carries its own lock on the same action")
}

// =============================================================================
// ReleaseForAlert
// =============================================================================

func (s *EngineSuite) TestReleaseForAlertTouchesOnlyThatAlert() {
	ctx := s.ctxAt(s.baseTime)
	resolved := s.criticalAlert()
	unresolved := s.criticalAlert()
	_, err := s.engine.LockFromAlert(ctx, resolved, []lock.Action{lock.ActionSell, lock.ActionRefinance}, "")
	s.Require().NoError(err)
	_, err = s.engine.LockFromAlert(ctx, unresolved, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	later := s.ctxAt(s.baseTime.Add(2 * time.Hour))
	released, err := s.engine.ReleaseForAlert(later, resolved.ID, lock.StatusUnlocked, "cio@portfolio.example", "alert approved", audit.ActionLockReleased)
	s.Require().NoError(err)
	s.Equal(2, released)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(unresolved.ID, *active[0].AlertID)

	// The property stays flagged while any lock remains.
	flagged, err := s.flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.True(flagged.HasActiveAlerts)
}

func (s *EngineSuite) TestReleaseForAlertRecordsDuration() {
	ctx := s.ctxAt(s.baseTime)
	a := s.criticalAlert()
	lockIDs, err := s.engine.LockFromAlert(ctx, a, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	later := s.ctxAt(s.baseTime.Add(90 * time.Minute))
	_, err = s.engine.ReleaseForAlert(later, a.ID, lock.StatusUnlocked, "cio@portfolio.example", "alert approved", audit.ActionLockReleased)
	s.Require().NoError(err)

	l, err := s.engine.Get(ctx, lockIDs[0])
	s.Require().NoError(err)
	s.Equal(lock.StatusUnlocked, l.Status)
	s.Require().NotNil(l.DurationHours)
	s.InDelta(1.5, *l.DurationHours, 1e-9)

	flagged, err := s.flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.False(flagged.HasActiveAlerts)
}

func (s *EngineSuite) TestReleaseRejectsUnlockBeforeLock() {
	ctx := s.ctxAt(s.baseTime)
	a := s.criticalAlert()
	_, err := s.engine.LockFromAlert(ctx, a, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	earlier := s.ctxAt(s.baseTime.Add(-time.Hour))
	_, err = s.engine.ReleaseForAlert(earlier, a.ID, lock.StatusUnlocked, "cio@portfolio.example", "alert approved", audit.ActionLockReleased)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

// =============================================================================
// Manual Locks
// =============================================================================

func (s *EngineSuite) TestManualLockRequiresActorAndReason() {
	ctx := s.ctxAt(s.baseTime)

	_, err := s.engine.ManualLock(ctx, s.propertyID, []lock.Action{lock.ActionSell}, "legal hold", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.engine.ManualLock(ctx, s.propertyID, []lock.Action{lock.ActionSell}, "", "ops@portfolio.example")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestManualLockCreatesAndFlags() {
	ctx := s.ctxAt(s.baseTime)

	lockIDs, err := s.engine.ManualLock(ctx, s.propertyID, []lock.Action{lock.ActionDispose, lock.ActionAcquire}, "pending legal review", "ops@portfolio.example")
	s.Require().NoError(err)
	s.Len(lockIDs, 2)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Len(active, 2)
	for _, l := range active {
		s.Equal(lock.TypeManual, l.Type)
		s.Nil(l.AlertID)
	}

	flagged, err := s.flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.True(flagged.HasActiveAlerts)
}

func (s *EngineSuite) TestManualUnlockReleasesSingleLock() {
	ctx := s.ctxAt(s.baseTime)
	lockIDs, err := s.engine.ManualLock(ctx, s.propertyID, []lock.Action{lock.ActionSell, lock.ActionDispose}, "pending legal review", "ops@portfolio.example")
	s.Require().NoError(err)

	later := s.ctxAt(s.baseTime.Add(time.Hour))
	err = s.engine.ManualUnlock(later, lockIDs[0], "cio@portfolio.example", "review complete")
	s.Require().NoError(err)

	active, err := s.engine.ActiveLocks(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Len(active, 1, "only the named lock is released")

	flagged, err := s.flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.True(flagged.HasActiveAlerts, "property stays flagged while a lock remains")
}

func (s *EngineSuite) TestManualUnlockConflictCarriesCurrentStatus() {
	ctx := s.ctxAt(s.baseTime)
	lockIDs, err := s.engine.ManualLock(ctx, s.propertyID, []lock.Action{lock.ActionSell}, "pending legal review", "ops@portfolio.example")
	s.Require().NoError(err)

	later := s.ctxAt(s.baseTime.Add(time.Hour))
	s.Require().NoError(s.engine.ManualUnlock(later, lockIDs[0], "cio@portfolio.example", "review complete"))

	err = s.engine.ManualUnlock(later, lockIDs[0], "cio@portfolio.example", "review complete")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("unlocked", dErrors.Load(err)["current_status"])
}

func (s *EngineSuite) TestManualUnlockUnknownLock() {
	err := s.engine.ManualUnlock(s.ctxAt(s.baseTime), id.NewLockID(), "cio@portfolio.example", "cleanup")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Age-Based Expiry
// =============================================================================

func (s *EngineSuite) TestExpireOldHonorsCutoffBoundary() {
	old := s.criticalAlert()
	fresh := s.criticalAlert()
	_, err := s.engine.LockFromAlert(s.ctxAt(s.baseTime), old, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)
	_, err = s.engine.LockFromAlert(s.ctxAt(s.baseTime.Add(time.Second)), fresh, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	// Cutoff equal to locked_at expires the lock; one second younger survives.
	expired, err := s.engine.ExpireOld(s.ctxAt(s.baseTime.Add(90*24*time.Hour)), s.baseTime)
	s.Require().NoError(err)
	s.Equal(1, expired)

	active, err := s.engine.ActiveLocks(context.Background(), s.propertyID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(fresh.ID, *active[0].AlertID)
}

func (s *EngineSuite) TestExpireOldAuditsAsExpired() {
	a := s.criticalAlert()
	_, err := s.engine.LockFromAlert(s.ctxAt(s.baseTime), a, []lock.Action{lock.ActionSell}, "")
	s.Require().NoError(err)

	_, err = s.engine.ExpireOld(s.ctxAt(s.baseTime.Add(91*24*time.Hour)), s.baseTime.Add(24*time.Hour))
	s.Require().NoError(err)

	actions := s.auditActions()
	s.Equal(audit.ActionLockExpired, actions[len(actions)-1])

	flagged, err := s.flags.Get(context.Background(), s.propertyID)
	s.Require().NoError(err)
	s.False(flagged.HasActiveAlerts)
}
