package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "amparo/pkg/domain-errors"
	txcontext "amparo/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// participantPostgresTx runs the identity and profile writes of a registration
// inside a single SQL transaction. The transaction is threaded through the
// context so the postgres stores join it transparently.
type participantPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newParticipantPostgresTx(db *sql.DB) *participantPostgresTx {
	return &participantPostgresTx{db: db}
}

func (t *participantPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
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

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
