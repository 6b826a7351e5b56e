package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Querier can either be a *sqlx.DB or *sqlx.Tx, wrapped so that errors come back as the
// errors defined in this package.
type Querier interface {
	// ExecContext executes the query with placeholder parameters that match the args.
	// Use this if you do not care about the data the query generates.
	// A statement that affects no rows returns ErrNop.
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// GetContext expects placeholder parameters in the query and will bind args to them.
	// A single row result will be mapped to dest. In the case of no result the error returned will be ErrNop.
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// SelectContext expects placeholder parameters in the query and will bind args to them.
	// Each resultant row will be scanned into dest, which must be a slice.
	// An empty result returns ErrNop.
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// QueryxContext is for queries whose columns are not known up front, such as SELECT *.
	// The caller must close the returned rows.
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}

// sqlxQuerier is the subset of methods shared by *sqlx.DB and *sqlx.Tx
type sqlxQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
}
