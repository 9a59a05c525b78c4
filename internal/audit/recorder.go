package audit

import (
	"context"

	"github.com/google/uuid"

	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/requestcontext"
)

// Recorder fills in the ambient fields of an entry and appends it. Services
// call Record inside their transaction closure so the entry commits with the
// transition; a failed append fails the whole operation before it is
// acknowledged.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append audit entry")
	}
	return nil
}

// Trail returns the recorded transitions for one entity.
func (r *Recorder) Trail(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	return r.store.ListByEntity(ctx, entityType, entityID)
}
