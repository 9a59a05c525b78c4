package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the leader key only if this instance still holds it.
// Deleting unconditionally could drop a lock a peer acquired after ours
// expired mid-sweep.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// LeaderLock elects a single sweeper across instances via a Redis key with a
// TTL. Acquisition is best effort: losing the election is not an error, it
// just means a peer sweeps this round.
type LeaderLock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewLeaderLock(client *goredis.Client, key string, ttl time.Duration) *LeaderLock {
	return &LeaderLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryAcquire attempts to become the sweep leader for this round.
func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire leader lock: %w", err)
	}
	return ok, nil
}

// Release gives up leadership if still held by this instance.
func (l *LeaderLock) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release leader lock: %w", err)
	}
	return nil
}
