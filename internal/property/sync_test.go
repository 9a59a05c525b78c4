package property

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "keystone/pkg/domain"
	"keystone/pkg/requestcontext"
)

type staticCounter struct {
	count int
}

func (c *staticCounter) CountActiveByProperty(context.Context, id.PropertyID) (int, error) {
	return c.count, nil
}

func TestRecomputeDerivesFlagFromLockCount(t *testing.T) {
	flags := NewInMemoryStore()
	counter := &staticCounter{count: 2}
	sync := NewSynchronizer(flags, counter)

	propertyID := id.NewPropertyID()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	flagged, err := sync.Recompute(ctx, propertyID)
	require.NoError(t, err)
	assert.True(t, flagged)

	stored, err := flags.Get(ctx, propertyID)
	require.NoError(t, err)
	assert.True(t, stored.HasActiveAlerts)
	assert.Equal(t, now, stored.UpdatedAt)

	// Last lock released: the flag clears on the next recompute.
	counter.count = 0
	flagged, err = sync.Recompute(ctx, propertyID)
	require.NoError(t, err)
	assert.False(t, flagged)

	cleared, err := sync.HasActiveAlerts(ctx, propertyID)
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestUnknownPropertyReadsUnflagged(t *testing.T) {
	sync := NewSynchronizer(NewInMemoryStore(), &staticCounter{})

	flagged, err := sync.HasActiveAlerts(context.Background(), id.NewPropertyID())
	require.NoError(t, err)
	assert.False(t, flagged)
}
