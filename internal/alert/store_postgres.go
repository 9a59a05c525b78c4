package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	txcontext "keystone/pkg/platform/tx"
)

// PostgresStore persists alerts in PostgreSQL. Both mutations are conditional
// UPDATEs on status='pending'; zero rows affected means a concurrent actor
// already transitioned the row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const alertColumns = `id, property_id, alert_type, severity, metric_name,
	metric_category, metric_value, threshold_value, variance, committee,
	status, requires_action, action_due_date, created_at, resolved_at,
	approved_by, rejected_by, resolution_notes`

func (s *PostgresStore) Insert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, property_id, alert_type, severity, metric_name,
			metric_category, metric_value, threshold_value, variance,
			committee, status, requires_action, action_due_date, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		uuid.UUID(a.PropertyID),
		string(a.Type),
		string(a.Severity),
		a.MetricName,
		string(a.MetricCategory),
		a.MetricValue,
		a.ThresholdValue,
		a.Variance,
		a.Committee,
		string(a.Status),
		a.RequiresAction,
		a.ActionDueDate,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, alertID id.AlertID) (*Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE id = $1`, alertColumns)
	a, err := scanAlert(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(alertID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, alertID id.AlertID, to Status, actor, notes string, at time.Time) error {
	query := `
		UPDATE alerts
		SET status = $2,
			resolved_at = $3,
			resolution_notes = $4,
			approved_by = CASE WHEN $2 = 'approved' THEN $5 ELSE approved_by END,
			rejected_by = CASE WHEN $2 = 'rejected' THEN $5 ELSE rejected_by END
		WHERE id = $1 AND status = 'pending'
	`
	return s.conditionalTransition(ctx, alertID, query,
		uuid.UUID(alertID), string(to), at, notes, actor)
}

func (s *PostgresStore) Expire(ctx context.Context, alertID id.AlertID, at time.Time) error {
	query := `
		UPDATE alerts
		SET status = 'expired', resolved_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return s.conditionalTransition(ctx, alertID, query, uuid.UUID(alertID), at)
}

// conditionalTransition executes a precondition-guarded UPDATE and translates
// the zero-rows case into not-found or conflict-with-current-state.
func (s *PostgresStore) conditionalTransition(ctx context.Context, alertID id.AlertID, query string, args ...any) error {
	result, err := s.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition alert rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = s.querier(ctx).QueryRowContext(ctx,
		`SELECT status FROM alerts WHERE id = $1`, uuid.UUID(alertID),
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, "alert not found")
	}
	if err != nil {
		return fmt.Errorf("transition alert status check: %w", err)
	}
	conflict := dErrors.New(dErrors.CodeConflict, "alert is no longer pending")
	_ = dErrors.Add(conflict, "current_status", current)
	return conflict
}

func (s *PostgresStore) ListPendingByCommittee(ctx context.Context, committee string) ([]*Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE status = 'pending' AND committee = $1
		ORDER BY created_at, id
	`, alertColumns)
	return s.list(ctx, query, committee)
}

func (s *PostgresStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE status = 'pending' AND created_at <= $1
		ORDER BY created_at, id
	`, alertColumns)
	return s.list(ctx, query, cutoff)
}

func (s *PostgresStore) ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE property_id = $1
		ORDER BY created_at, id
	`, alertColumns)
	return s.list(ctx, query, uuid.UUID(propertyID))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Alert, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var (
		a          Alert
		alertID    uuid.UUID
		propertyID uuid.UUID
		alertType  string
		severity   string
		category   string
		status     string
		dueDate    sql.NullTime
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&alertID,
		&propertyID,
		&alertType,
		&severity,
		&a.MetricName,
		&category,
		&a.MetricValue,
		&a.ThresholdValue,
		&a.Variance,
		&a.Committee,
		&status,
		&a.RequiresAction,
		&dueDate,
		&a.CreatedAt,
		&resolvedAt,
		&a.ApprovedBy,
		&a.RejectedBy,
		&a.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}

	a.ID = id.AlertID(alertID)
	a.PropertyID = id.PropertyID(propertyID)
	a.Type = Type(alertType)
	a.Severity = Severity(severity)
	a.MetricCategory = MetricCategory(category)
	a.Status = Status(status)
	if dueDate.Valid {
		t := dueDate.Time
		a.ActionDueDate = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}
