// Package outbox drains unpublished audit entries from the store and ships
// them to Kafka. Postgres stays the source of truth; the stream exists for
// downstream compliance consumers. Publishing is at-least-once: an entry is
// marked published only after the broker acknowledges it.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"keystone/internal/audit"
)

// Publisher ships one audit entry to the stream.
type Publisher interface {
	Publish(ctx context.Context, entry audit.Entry) error
}

const defaultBatchSize = 100

// Worker periodically drains the outbox. It keeps going on per-entry publish
// failures so one poisoned entry cannot wedge the trail.
type Worker struct {
	store     audit.Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWorker(store audit.Store, publisher Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	entries, err := w.store.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := w.publisher.Publish(ctx, entry); err != nil {
			w.logger.WarnContext(ctx, "audit entry publish failed",
				"entry_id", entry.ID,
				"entity_type", entry.EntityType,
				"error", err,
			)
			continue
		}
		published = append(published, entry.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published, time.Now())
}
