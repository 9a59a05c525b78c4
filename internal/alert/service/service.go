// Package service implements the alert lifecycle state machine. Creation
// computes variance, classifies severity, routes the responsible committee
// and, for critical alerts, creates the action locks in the same transaction.
// Resolution releases exactly the locks the alert created.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"keystone/internal/alert"
	"keystone/internal/alert/metrics"
	"keystone/internal/audit"
	"keystone/internal/committee"
	"keystone/internal/governance"
	"keystone/internal/lock"
	lockservice "keystone/internal/lock/service"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/requestcontext"
)

// actionDueSLA is how long a committee has to act on a critical alert before
// the due date shown in review queues.
const actionDueSLA = 14 * 24 * time.Hour

type Service struct {
	tx             governance.Tx
	stores         governance.Stores
	engine         *lockservice.Engine
	recorder       *audit.Recorder
	bands          alert.SeverityBands
	blockedActions []lock.Action
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(tx governance.Tx, stores governance.Stores, engine *lockservice.Engine, recorder *audit.Recorder, bands alert.SeverityBands, blockedActions []lock.Action, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if stores.Alerts == nil {
		return nil, fmt.Errorf("alert store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("lock engine is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if len(blockedActions) == 0 {
		return nil, fmt.Errorf("blocked action set for critical alerts is required")
	}

	s := &Service{
		tx:             tx,
		stores:         stores,
		engine:         engine,
		recorder:       recorder,
		bands:          bands,
		blockedActions: blockedActions,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("keystone/alert"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateThresholdRequest is the inbound payload from the metrics evaluator.
// The evaluator has already decided the breach; the engine only governs it.
type CreateThresholdRequest struct {
	PropertyID     id.PropertyID
	MetricName     string
	MetricCategory alert.MetricCategory
	MetricValue    float64
	ThresholdValue float64
}

func (r CreateThresholdRequest) validate() error {
	if r.PropertyID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "property id is required")
	}
	if r.MetricName == "" {
		return dErrors.New(dErrors.CodeValidation, "metric name is required")
	}
	if r.ThresholdValue == 0 {
		return dErrors.New(dErrors.CodeValidation, "threshold value must be non-zero")
	}
	if _, err := alert.ParseMetricCategory(string(r.MetricCategory)); err != nil {
		return err
	}
	return nil
}

// CreateThresholdAlert records a metric breach. Severity comes from the
// configured variance bands; critical alerts create their locks and the
// property flag recompute inside this same transaction, so no observer sees
// a critical alert without its locks.
func (s *Service) CreateThresholdAlert(ctx context.Context, req CreateThresholdRequest) (*alert.Alert, []id.LockID, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	ctx, span := s.tracer.Start(ctx, "alert.create_threshold")
	defer span.End()

	now := requestcontext.Now(ctx)
	variance := (req.MetricValue - req.ThresholdValue) / req.ThresholdValue
	severity := s.bands.Classify(variance)

	a := &alert.Alert{
		ID:             id.NewAlertID(),
		PropertyID:     req.PropertyID,
		Type:           alert.TypeThresholdBreach,
		Severity:       severity,
		MetricName:     req.MetricName,
		MetricCategory: req.MetricCategory,
		MetricValue:    req.MetricValue,
		ThresholdValue: req.ThresholdValue,
		Variance:       variance,
		Committee:      committee.Route(req.MetricCategory),
		Status:         alert.StatusPending,
		RequiresAction: severity == alert.SeverityCritical,
		CreatedAt:      now,
	}
	if a.RequiresAction {
		due := now.Add(actionDueSLA)
		a.ActionDueDate = &due
	}

	var lockIDs []id.LockID
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Alerts.Insert(ctx, a); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert alert")
		}
		err := s.recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityAlert,
			EntityID:   a.ID.String(),
			Action:     audit.ActionAlertCreated,
			ToState:    string(alert.StatusPending),
			Actor:      "metrics-evaluator",
			Reason:     fmt.Sprintf("%s breached threshold: %.4f vs %.4f", a.MetricName, a.MetricValue, a.ThresholdValue),
		})
		if err != nil {
			return err
		}
		if severity != alert.SeverityCritical {
			return nil
		}
		ids, err := s.engine.LockFromAlert(ctx, a, s.blockedActions, "")
		if err != nil {
			return err
		}
		lockIDs = ids
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncCreated(string(severity))
	s.logger.InfoContext(ctx, "threshold alert created",
		"alert_id", a.ID,
		"property_id", a.PropertyID,
		"metric", a.MetricName,
		"severity", severity,
		"committee", a.Committee,
		"locks", len(lockIDs),
	)
	return a, lockIDs, nil
}

// Approve resolves a pending alert as approved and releases exactly the
// locks that alert created, atomically. A concurrent decision surfaces as
// CodeConflict with the authoritative status attached; the caller decides
// whether to retry against fresh data.
func (s *Service) Approve(ctx context.Context, alertID id.AlertID, actor, notes string) (*alert.Alert, int, error) {
	return s.resolve(ctx, alertID, alert.StatusApproved, actor, notes)
}

// Reject resolves a pending alert as rejected. Rejection still releases the
// alert's locks: the committee has reviewed and dismissed the breach, so the
// property actions are no longer gated by it.
func (s *Service) Reject(ctx context.Context, alertID id.AlertID, actor, reason string) (*alert.Alert, int, error) {
	return s.resolve(ctx, alertID, alert.StatusRejected, actor, reason)
}

func (s *Service) resolve(ctx context.Context, alertID id.AlertID, to alert.Status, actor, notes string) (*alert.Alert, int, error) {
	if actor == "" {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "actor is required")
	}

	ctx, span := s.tracer.Start(ctx, "alert.resolve")
	defer span.End()

	auditAction := audit.ActionAlertApproved
	if to == alert.StatusRejected {
		auditAction = audit.ActionAlertRejected
	}

	released := 0
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		if err := s.stores.Alerts.Resolve(ctx, alertID, to, actor, notes, now); err != nil {
			return err
		}
		err := s.recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityAlert,
			EntityID:   alertID.String(),
			Action:     auditAction,
			FromState:  string(alert.StatusPending),
			ToState:    string(to),
			Actor:      actor,
			Reason:     notes,
		})
		if err != nil {
			return err
		}
		count, err := s.engine.ReleaseForAlert(ctx, alertID, lock.StatusUnlocked, actor, "alert "+string(to), audit.ActionLockReleased)
		if err != nil {
			return err
		}
		released = count
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	resolved, err := s.stores.Alerts.Get(ctx, alertID)
	if err != nil {
		return nil, released, err
	}

	s.metrics.IncResolved(string(to))
	s.logger.InfoContext(ctx, "alert resolved",
		"alert_id", alertID,
		"status", to,
		"actor", actor,
		"locks_released", released,
	)
	return resolved, released, nil
}

// ExpirePending expires every alert still pending at or before the cutoff.
// Per policy, an expired alert's still-locked locks expire with it in the
// same per-row transaction. Rows already transitioned by a concurrent
// committee decision are skipped, not failed. Returns the number expired.
func (s *Service) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "alert.expire_pending")
	defer span.End()

	stale, err := s.stores.Alerts.ListPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list stale alerts")
	}

	expired := 0
	for _, candidate := range stale {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			if err := s.stores.Alerts.Expire(ctx, candidate.ID, now); err != nil {
				return err
			}
			err := s.recorder.Record(ctx, audit.Entry{
				EntityType: audit.EntityAlert,
				EntityID:   candidate.ID.String(),
				Action:     audit.ActionAlertExpired,
				FromState:  string(alert.StatusPending),
				ToState:    string(alert.StatusExpired),
				Actor:      "system",
				Reason:     "pending alert exceeded maximum age",
			})
			if err != nil {
				return err
			}
			_, err = s.engine.ExpireForAlert(ctx, candidate.ID)
			return err
		})
		switch {
		case err == nil:
			expired++
			s.metrics.IncResolved(string(alert.StatusExpired))
		case dErrors.HasCode(err, dErrors.CodeConflict):
			continue
		default:
			return expired, err
		}
	}
	return expired, nil
}

// Get returns one alert by ID.
func (s *Service) Get(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	return s.stores.Alerts.Get(ctx, alertID)
}

// PendingByCommittee lists the review queue for one committee.
func (s *Service) PendingByCommittee(ctx context.Context, committeeName string) ([]*alert.Alert, error) {
	if committeeName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "committee is required")
	}
	return s.stores.Alerts.ListPendingByCommittee(ctx, committeeName)
}

// Summary aggregates a property's alert history plus its derived flag.
func (s *Service) Summary(ctx context.Context, propertyID id.PropertyID) (*alert.Summary, error) {
	alerts, err := s.stores.Alerts.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	flag, err := s.stores.Flags.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	summary := &alert.Summary{
		PropertyID:      propertyID,
		Total:           len(alerts),
		ByStatus:        make(map[alert.Status]int),
		BySeverity:      make(map[alert.Severity]int),
		HasActiveAlerts: flag.HasActiveAlerts,
	}
	for _, a := range alerts {
		summary.ByStatus[a.Status]++
		summary.BySeverity[a.Severity]++
		if a.Status == alert.StatusPending && a.Severity == alert.SeverityCritical {
			summary.PendingCritical++
		}
	}
	return summary, nil
}
