package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/studyquest/achievement-check/o11y"
)

type TxManager struct {
	DB *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{DB: db}
}

// NoTx returns a Querier that runs each statement on its own.
func (t *TxManager) NoTx() Querier {
	return unifiedQuerier{q: t.DB}
}

// WithTx runs f inside a transaction. The transaction is committed when f returns nil and
// rolled back when f returns an error or panics.
func (t *TxManager) WithTx(ctx context.Context, f func(context.Context, Querier) error) (err error) {
	ctx, span := o11y.StartSpan(ctx, "tx-manager: with-tx")
	defer o11y.End(span, &err)

	tx, err := t.DB.BeginTxx(ctx, nil)
	if err != nil {
		_, err = mapError(err)
		return fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		p := recover()
		switch {
		case p != nil:
			// a panic occurred, rollback and re-panic
			_ = tx.Rollback()
			panic(p)
		case err != nil:
			// never commit on an error
			// database/sql already rolls back when the transaction context is cancelled
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			if rErr := tx.Rollback(); rErr != nil {
				span.AddField("rollback_error", rErr)
			}
			span.AddField("rolled_back", true)
		case errors.Is(ctx.Err(), context.Canceled):
			// f may have swallowed the cancellation, but the transaction is gone
			err = ctx.Err()
		default:
			err = tx.Commit()
		}
	}()

	return f(ctx, unifiedQuerier{q: tx})
}
