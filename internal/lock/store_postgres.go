package lock

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

// PostgresStore persists locks in PostgreSQL. Idempotent creation rides the
// partial unique index on (alert_id, property_id, blocked_action) for active
// rows; ON CONFLICT DO NOTHING keeps a racing duplicate from aborting the
// enclosing transaction.
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

const lockColumns = `id, property_id, alert_id, lock_type, reason, severity,
	blocked_action, status, locked_at, unlocked_at, locked_by, unlocked_by,
	unlock_reason, duration_hours`

func (s *PostgresStore) InsertActive(ctx context.Context, l *Lock) (id.LockID, bool, error) {
	var alertID *uuid.UUID
	if l.AlertID != nil {
		a := uuid.UUID(*l.AlertID)
		alertID = &a
	}

	query := `
		INSERT INTO locks (
			id, property_id, alert_id, lock_type, reason, severity,
			blocked_action, status, locked_at, locked_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (alert_id, property_id, blocked_action) WHERE status = 'locked'
		DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err := s.querier(ctx).QueryRowContext(ctx, query,
		uuid.UUID(l.ID),
		uuid.UUID(l.PropertyID),
		alertID,
		string(l.Type),
		l.Reason,
		l.Severity,
		string(l.BlockedAction),
		string(l.Status),
		l.LockedAt,
		l.LockedBy,
	).Scan(&inserted)
	if err == nil {
		return id.LockID(inserted), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return id.LockID{}, false, fmt.Errorf("insert lock: %w", err)
	}

	// Conflict: an active lock for this (alert, property, action) already
	// exists, committed by us or a racing call. Reuse it.
	reuseQuery := `
		SELECT id FROM locks
		WHERE alert_id = $1 AND property_id = $2 AND blocked_action = $3 AND status = 'locked'
	`
	var reused uuid.UUID
	err = s.querier(ctx).QueryRowContext(ctx, reuseQuery,
		alertID, uuid.UUID(l.PropertyID), string(l.BlockedAction),
	).Scan(&reused)
	if err != nil {
		return id.LockID{}, false, fmt.Errorf("find reusable lock: %w", err)
	}
	return id.LockID(reused), false, nil
}

func (s *PostgresStore) Get(ctx context.Context, lockID id.LockID) (*Lock, error) {
	query := fmt.Sprintf(`SELECT %s FROM locks WHERE id = $1`, lockColumns)
	l, err := scanLock(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(lockID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lock not found")
		}
		return nil, fmt.Errorf("get lock: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) ListActiveByProperty(ctx context.Context, propertyID id.PropertyID) ([]*Lock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM locks
		WHERE property_id = $1 AND status = 'locked'
		ORDER BY locked_at, id
	`, lockColumns)
	return s.list(ctx, query, uuid.UUID(propertyID))
}

func (s *PostgresStore) ListActiveByAlert(ctx context.Context, alertID id.AlertID) ([]*Lock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM locks
		WHERE alert_id = $1 AND status = 'locked'
		ORDER BY locked_at, id
	`, lockColumns)
	return s.list(ctx, query, uuid.UUID(alertID))
}

func (s *PostgresStore) ListActiveLockedBefore(ctx context.Context, cutoff time.Time) ([]*Lock, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM locks
		WHERE status = 'locked' AND locked_at <= $1
		ORDER BY locked_at, id
	`, lockColumns)
	return s.list(ctx, query, cutoff)
}

func (s *PostgresStore) CountActiveByProperty(ctx context.Context, propertyID id.PropertyID) (int, error) {
	var count int
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locks WHERE property_id = $1 AND status = 'locked'`,
		uuid.UUID(propertyID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active locks: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Release(ctx context.Context, lockID id.LockID, to Status, by, reason string, at time.Time) error {
	query := `
		UPDATE locks
		SET status = $2,
			unlocked_at = $3,
			unlocked_by = $4,
			unlock_reason = $5,
			duration_hours = EXTRACT(EPOCH FROM ($3::timestamptz - locked_at)) / 3600
		WHERE id = $1 AND status = 'locked'
	`
	result, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(lockID), string(to), at, by, reason,
	)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lock rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Precondition failed: report whether the row is missing or already
	// transitioned, attaching the authoritative status for the caller.
	var current string
	err = s.querier(ctx).QueryRowContext(ctx,
		`SELECT status FROM locks WHERE id = $1`, uuid.UUID(lockID),
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, "lock not found")
	}
	if err != nil {
		return fmt.Errorf("release lock status check: %w", err)
	}
	conflict := dErrors.New(dErrors.CodeConflict, "lock is not locked")
	_ = dErrors.Add(conflict, "current_status", current)
	return conflict
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Lock, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer rows.Close()

	var locks []*Lock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locks: %w", err)
	}
	return locks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*Lock, error) {
	var (
		l           Lock
		lockID      uuid.UUID
		propertyID  uuid.UUID
		alertID     *uuid.UUID
		lockType    string
		action      string
		status      string
		unlockedAt  sql.NullTime
		durationHrs sql.NullFloat64
	)
	err := row.Scan(
		&lockID,
		&propertyID,
		&alertID,
		&lockType,
		&l.Reason,
		&l.Severity,
		&action,
		&status,
		&l.LockedAt,
		&unlockedAt,
		&l.LockedBy,
		&l.UnlockedBy,
		&l.UnlockReason,
		&durationHrs,
	)
	if err != nil {
		return nil, err
	}

	l.ID = id.LockID(lockID)
	l.PropertyID = id.PropertyID(propertyID)
	if alertID != nil {
		a := id.AlertID(*alertID)
		l.AlertID = &a
	}
	l.Type = Type(lockType)
	l.BlockedAction = Action(action)
	l.Status = Status(status)
	if unlockedAt.Valid {
		t := unlockedAt.Time
		l.UnlockedAt = &t
	}
	if durationHrs.Valid {
		d := durationHrs.Float64
		l.DurationHours = &d
	}
	return &l, nil
}
