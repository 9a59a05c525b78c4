package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "keystone/pkg/domain"
	txcontext "keystone/pkg/platform/tx"
)

// PostgresStore persists property flags. A missing row reads as flag=false so
// properties that never carried a lock need no seeding.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, propertyID id.PropertyID) (*Flag, error) {
	flag := Flag{PropertyID: propertyID}
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT has_active_alerts, updated_at FROM property_flags WHERE property_id = $1`,
		uuid.UUID(propertyID),
	).Scan(&flag.HasActiveAlerts, &flag.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Flag{PropertyID: propertyID, HasActiveAlerts: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property flag: %w", err)
	}
	return &flag, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, flag Flag) error {
	query := `
		INSERT INTO property_flags (property_id, has_active_alerts, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (property_id) DO UPDATE SET
			has_active_alerts = EXCLUDED.has_active_alerts,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(flag.PropertyID), flag.HasActiveAlerts, flag.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert property flag: %w", err)
	}
	return nil
}
