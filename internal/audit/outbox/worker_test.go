package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keystone/internal/audit"
)

type capturingPublisher struct {
	published []audit.Entry
	failFor   map[uuid.UUID]bool
}

func (p *capturingPublisher) Publish(_ context.Context, entry audit.Entry) error {
	if p.failFor[entry.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, entry)
	return nil
}

func newTestWorker(store audit.Store, publisher Publisher) *Worker {
	return NewWorker(store, publisher, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func appendEntry(t *testing.T, store *audit.InMemoryStore, action audit.Action) audit.Entry {
	t.Helper()
	entry := audit.Entry{
		ID:         uuid.New(),
		EntityType: audit.EntityAlert,
		EntityID:   uuid.NewString(),
		Action:     action,
		Actor:      "system",
		RecordedAt: time.Now(),
	}
	require.NoError(t, store.Append(context.Background(), entry))
	return entry
}

func TestDrainPublishesAndMarks(t *testing.T) {
	store := audit.NewInMemoryStore()
	publisher := &capturingPublisher{}
	worker := newTestWorker(store, publisher)

	first := appendEntry(t, store, audit.ActionAlertCreated)
	second := appendEntry(t, store, audit.ActionLockCreated)

	require.NoError(t, worker.drain(context.Background()))
	require.Len(t, publisher.published, 2)
	assert.Equal(t, first.ID, publisher.published[0].ID)
	assert.Equal(t, second.ID, publisher.published[1].ID)

	remaining, err := store.ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining, "published entries leave the outbox")
}

func TestDrainSkipsFailedEntriesForRetry(t *testing.T) {
	store := audit.NewInMemoryStore()
	poisoned := appendEntry(t, store, audit.ActionAlertCreated)
	healthy := appendEntry(t, store, audit.ActionLockCreated)

	publisher := &capturingPublisher{failFor: map[uuid.UUID]bool{poisoned.ID: true}}
	worker := newTestWorker(store, publisher)

	require.NoError(t, worker.drain(context.Background()))
	require.Len(t, publisher.published, 1)
	assert.Equal(t, healthy.ID, publisher.published[0].ID)

	remaining, err := store.ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "the failed entry stays queued for the next round")
	assert.Equal(t, poisoned.ID, remaining[0].ID)
}

func TestDrainNoopOnEmptyOutbox(t *testing.T) {
	store := audit.NewInMemoryStore()
	publisher := &capturingPublisher{}
	worker := newTestWorker(store, publisher)

	require.NoError(t, worker.drain(context.Background()))
	assert.Empty(t, publisher.published)
}
