package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "keystone/pkg/domain-errors"
	pltx "keystone/pkg/platform/tx"
)

const defaultGovernanceTxTimeout = 5 * time.Second

// governancePostgresTx runs multi-store operations in one database
// transaction. The transaction travels in the context; every store joins it
// automatically, so an alert, its locks, the property flag and the audit
// entries commit or roll back together.
type governancePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newGovernancePostgresTx(db *sql.DB) *governancePostgresTx {
	return &governancePostgresTx{db: db}
}

func (t *governancePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Nested calls join the ambient transaction instead of opening a second
	// one, so a service can compose another service inside its own RunInTx.
	if _, ok := pltx.From(ctx); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultGovernanceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(pltx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	return sqlTx.Commit()
}
