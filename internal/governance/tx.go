// Package governance defines the transactional boundary every multi-entity
// mutation runs through. Alert creation with its locks, resolution with its
// releases, and every flag recompute apply as one atomic unit; no observer
// sees an intermediate state.
package governance

import (
	"context"
	"sync"
	"time"

	"keystone/internal/alert"
	"keystone/internal/audit"
	"keystone/internal/lock"
	"keystone/internal/property"
	dErrors "keystone/pkg/domain-errors"
)

// Stores bundles the four persistence collections behind one boundary. All
// implementations are tx-aware: inside a runner the context carries the
// transaction and every store joins it.
type Stores struct {
	Alerts alert.Store
	Locks  lock.Store
	Flags  property.Store
	Audit  audit.Store
}

// Tx runs fn atomically against the shared store. Implementations wrap a
// database transaction or, in-memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a governance transaction.
const defaultTxTimeout = 5 * time.Second

// MemoryTx serializes transactions with a single mutex. It exists for unit
// tests and mirrors the timeout and cancellation behavior of the Postgres
// runner in cmd/server.
type MemoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMemoryTx() *MemoryTx {
	return &MemoryTx{}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
