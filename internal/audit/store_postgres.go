package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "keystone/pkg/platform/tx"
)

// PostgresStore writes audit entries to the audit_entries table, which doubles
// as the transactional outbox: entries commit with the mutation they record
// and the outbox worker later ships unpublished rows to Kafka.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, entity_type, entity_id, action, from_state, to_state,
			actor, reason, request_id, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		entry.ID,
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		entry.FromState,
		entry.ToState,
		entry.Actor,
		entry.Reason,
		entry.RequestID,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const entryColumns = `id, entity_type, entity_id, action, from_state, to_state,
	actor, reason, request_id, recorded_at, published_at`

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY recorded_at, id
	`, entryColumns)
	return s.list(ctx, query, string(entityType), entityID)
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE published_at IS NULL
		ORDER BY recorded_at, id
		LIMIT $1
	`, entryColumns)
	return s.list(ctx, query, limit)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.querier(ctx).ExecContext(ctx,
		`UPDATE audit_entries SET published_at = $2 WHERE id = ANY($1)`,
		ids, at,
	)
	if err != nil {
		return fmt.Errorf("mark audit entries published: %w", err)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			entityType  string
			action      string
			publishedAt sql.NullTime
		)
		err := rows.Scan(
			&e.ID,
			&entityType,
			&e.EntityID,
			&action,
			&e.FromState,
			&e.ToState,
			&e.Actor,
			&e.Reason,
			&e.RequestID,
			&e.RecordedAt,
			&publishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.EntityType = EntityType(entityType)
		e.Action = Action(action)
		if publishedAt.Valid {
			t := publishedAt.Time
			e.PublishedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
