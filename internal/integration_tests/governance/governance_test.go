//go:build integration

package governance

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keystone/internal/alert"
	alertservice "keystone/internal/alert/service"
	"keystone/internal/audit"
	"keystone/internal/governance"
	"keystone/internal/lock"
	lockservice "keystone/internal/lock/service"
	"keystone/internal/property"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	pltx "keystone/pkg/platform/tx"
	"keystone/pkg/requestcontext"
	"keystone/pkg/testutil/containers"
)

// =============================================================================
// Governance Integration Suite
// =============================================================================
// Justification: the conditional UPDATE guards, the partial unique index
// behind idempotent lock creation and the SQL duration arithmetic only exist
// in Postgres. These tests run the full service stack against a real
// database to verify the semantics the in-memory stores mirror.

type pgTx struct {
	db *sql.DB
}

func (t *pgTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := pltx.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := fn(pltx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type GovernanceIntegrationSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	stores     governance.Stores
	engine     *lockservice.Engine
	alerts     *alertservice.Service
	propertyID id.PropertyID
	baseTime   time.Time
}

func TestGovernanceIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(GovernanceIntegrationSuite))
}

func (s *GovernanceIntegrationSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())

	s.stores = governance.Stores{
		Alerts: alert.NewPostgres(s.pg.DB),
		Locks:  lock.NewPostgres(s.pg.DB),
		Flags:  property.NewPostgres(s.pg.DB),
		Audit:  audit.NewPostgres(s.pg.DB),
	}
	tx := &pgTx{db: s.pg.DB}
	recorder := audit.NewRecorder(s.stores.Audit)
	sync := property.NewSynchronizer(s.stores.Flags, s.stores.Locks)

	var err error
	s.engine, err = lockservice.New(tx, s.stores, sync, recorder)
	s.Require().NoError(err)

	s.alerts, err = alertservice.New(tx, s.stores, s.engine, recorder,
		alert.SeverityBands{Warning: 0.05, Critical: 0.15},
		[]lock.Action{lock.ActionRefinance, lock.ActionSell, lock.ActionDispose},
	)
	s.Require().NoError(err)
}

func (s *GovernanceIntegrationSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(context.Background())
	}
}

func (s *GovernanceIntegrationSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	s.propertyID = id.NewPropertyID()
	s.baseTime = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *GovernanceIntegrationSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *GovernanceIntegrationSuite) createCritical(ctx context.Context) (*alert.Alert, []id.LockID) {
	a, lockIDs, err := s.alerts.CreateThresholdAlert(ctx, alertservice.CreateThresholdRequest{
		PropertyID:     s.propertyID,
		MetricName:     "occupancy_rate",
		MetricCategory: alert.CategoryOccupancy,
		MetricValue:    0.68,
		ThresholdValue: 0.85,
	})
	s.Require().NoError(err)
	return a, lockIDs
}

func (s *GovernanceIntegrationSuite) TestCriticalAlertCommitsAtomically() {
	ctx := s.ctxAt(s.baseTime)
	a, lockIDs := s.createCritical(ctx)
	s.Len(lockIDs, 3)

	stored, err := s.stores.Alerts.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(alert.StatusPending, stored.Status)
	s.Equal(alert.SeverityCritical, stored.Severity)

	active, err := s.stores.Locks.ListActiveByAlert(ctx, a.ID)
	s.Require().NoError(err)
	s.Len(active, 3)

	flag, err := s.stores.Flags.Get(ctx, s.propertyID)
	s.Require().NoError(err)
	s.True(flag.HasActiveAlerts)

	trail, err := s.stores.Audit.ListByEntity(ctx, audit.EntityAlert, a.ID.String())
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Nil(trail[0].PublishedAt, "entries start unpublished for the outbox")
}

func (s *GovernanceIntegrationSuite) TestPartialIndexMakesLockCreationIdempotent() {
	ctx := s.ctxAt(s.baseTime)
	a, first := s.createCritical(ctx)

	second, err := s.engine.LockFromAlert(ctx, a,
		[]lock.Action{lock.ActionRefinance, lock.ActionSell, lock.ActionDispose}, "")
	s.Require().NoError(err)
	s.ElementsMatch(first, second, "redelivery reuses the committed rows")

	var count int
	err = s.pg.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locks WHERE property_id = $1`, s.propertyID.String()).Scan(&count)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *GovernanceIntegrationSuite) TestConditionalUpdateSerializesDecisions() {
	ctx := s.ctxAt(s.baseTime)
	a, _ := s.createCritical(ctx)

	later := s.ctxAt(s.baseTime.Add(time.Hour))
	_, released, err := s.alerts.Approve(later, a.ID, "cio@portfolio.example", "accepted")
	s.Require().NoError(err)
	s.Equal(3, released)

	_, _, err = s.alerts.Reject(later, a.ID, "amc-chair@portfolio.example", "disagree")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("approved", dErrors.Load(err)["current_status"])
}

func (s *GovernanceIntegrationSuite) TestReleaseComputesDurationInSQL() {
	ctx := s.ctxAt(s.baseTime)
	a, lockIDs := s.createCritical(ctx)

	later := s.ctxAt(s.baseTime.Add(90 * time.Minute))
	_, _, err := s.alerts.Approve(later, a.ID, "cio@portfolio.example", "")
	s.Require().NoError(err)

	l, err := s.stores.Locks.Get(ctx, lockIDs[0])
	s.Require().NoError(err)
	s.Equal(lock.StatusUnlocked, l.Status)
	s.Require().NotNil(l.DurationHours)
	s.InDelta(1.5, *l.DurationHours, 0.001)
}

func (s *GovernanceIntegrationSuite) TestExpirySweepAcrossTables() {
	old, _ := s.createCritical(s.ctxAt(s.baseTime.Add(-31 * 24 * time.Hour)))
	fresh, _ := s.createCritical(s.ctxAt(s.baseTime))

	expired, err := s.alerts.ExpirePending(s.ctxAt(s.baseTime), s.baseTime.Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, expired)

	expiredAlert, err := s.stores.Alerts.Get(context.Background(), old.ID)
	s.Require().NoError(err)
	s.Equal(alert.StatusExpired, expiredAlert.Status)

	oldLocks, err := s.stores.Locks.ListActiveByAlert(context.Background(), old.ID)
	s.Require().NoError(err)
	s.Empty(oldLocks, "locks expire with their pending alert")

	freshLocks, err := s.stores.Locks.ListActiveByAlert(context.Background(), fresh.ID)
	s.Require().NoError(err)
	s.Len(freshLocks, 3)
}

func (s *GovernanceIntegrationSuite) TestRollbackLeavesNoPartialState() {
	ctx := s.ctxAt(s.baseTime)
	tx := &pgTx{db: s.pg.DB}

	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Alerts.Insert(ctx, &alert.Alert{
			ID:             id.NewAlertID(),
			PropertyID:     s.propertyID,
			Type:           alert.TypeThresholdBreach,
			Severity:       alert.SeverityCritical,
			MetricName:     "occupancy_rate",
			MetricCategory: alert.CategoryOccupancy,
			Committee:      "Asset Management Committee",
			Status:         alert.StatusPending,
			CreatedAt:      s.baseTime,
		}); err != nil {
			return err
		}
		return dErrors.New(dErrors.CodeInternal, "forced failure")
	})
	s.Require().Error(err)

	alerts, err := s.stores.Alerts.ListByProperty(ctx, s.propertyID)
	s.Require().NoError(err)
	s.Empty(alerts, "the insert rolled back with the transaction")
}
