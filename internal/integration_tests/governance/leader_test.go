//go:build integration

package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"keystone/internal/sweeper"
	"keystone/pkg/testutil/containers"
)

// =============================================================================
// Sweeper Leader Election
// =============================================================================
// Justification: the leader lock's safety lives in Redis semantics, SET NX
// for acquisition and the compare-and-delete script for release. Only a real
// Redis exercises both.

func TestLeaderLockElectsSingleSweeper(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	rc := containers.NewRedisContainer(t)
	defer func() {
		_ = rc.Client.Close()
		_ = rc.Container.Terminate(context.Background())
	}()
	ctx := context.Background()

	const key = "keystone:sweeper:leader"
	first := sweeper.NewLeaderLock(rc.Client, key, time.Minute)
	second := sweeper.NewLeaderLock(rc.Client, key, time.Minute)

	won, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.False(t, won, "only one instance may lead a round")

	require.NoError(t, first.Release(ctx))

	won, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, won, "release frees the key for the next election")
}

func TestLeaderLockReleaseIgnoresForeignHolder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	rc := containers.NewRedisContainer(t)
	defer func() {
		_ = rc.Client.Close()
		_ = rc.Container.Terminate(context.Background())
	}()
	ctx := context.Background()

	const key = "keystone:sweeper:stale"
	stale := sweeper.NewLeaderLock(rc.Client, key, time.Minute)
	current := sweeper.NewLeaderLock(rc.Client, key, time.Minute)

	won, err := current.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// A holder whose TTL lapsed mid-sweep must not delete the new leader's key.
	require.NoError(t, stale.Release(ctx))

	held, err := rc.Client.Get(ctx, key).Result()
	require.NoError(t, err)
	require.NotEmpty(t, held, "the current leader's token survives a stale release")
}
