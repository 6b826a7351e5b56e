package db

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	"github.com/jmoiron/sqlx"
)

// unifiedQuerier wraps a *sqlx.DB or *sqlx.Tx to return our standard errors.
type unifiedQuerier struct {
	q sqlxQuerier
}

func (u unifiedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := u.q.ExecContext(ctx, query, args...)
	return result, mapExecErrors(err, result)
}

func (u unifiedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := u.q.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNop
	}
	_, err = mapError(err)
	return err
}

func (u unifiedQuerier) SelectContext(ctx context.Context,
	dest interface{}, query string, args ...interface{}) error {

	if err := u.q.SelectContext(ctx, dest, query, args...); err != nil {
		_, err = mapError(err)
		return err // This error never represents the no rows condition
	}
	// SelectContext has asserted dest is a pointer to a slice
	if reflect.Indirect(reflect.ValueOf(dest)).Len() == 0 {
		return ErrNop
	}
	return nil
}

func (u unifiedQuerier) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	rows, err := u.q.QueryxContext(ctx, query, args...)
	if err != nil {
		_, err = mapError(err)
		return nil, err
	}
	return rows, nil
}
