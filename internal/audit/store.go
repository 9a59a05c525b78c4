package audit

import (
	"context"

	"github.com/google/uuid"
	"time"
)

// Store is the append-only persistence for audit entries. Append must join
// the ambient transaction so the entry commits atomically with the transition
// it records. The unpublished/mark-published pair implements the outbox the
// kafka worker drains.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error)
	ListUnpublished(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
