package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/studyquest/achievement-check/o11y"
)

var (
	ErrNop            = o11y.NewWarning("no update or results")
	ErrConstrained    = errors.New("violates constraints")
	ErrNotNull        = errors.New("violates not-null constraint")
	ErrException      = errors.New("exception")
	ErrUndefinedTable = o11y.NewWarning("undefined table")
	ErrCanceled       = o11y.NewWarning("statement canceled")
	ErrBadConn        = o11y.NewWarning("bad connection")
)

const (
	pgNotNullViolationErrorCode     = "23502"
	pgForeignKeyConstraintErrorCode = "23503"
	pgUniqueViolationErrorCode      = "23505"
	pgCheckViolationErrorCode       = "23514"
	pgUndefinedTableErrorCode       = "42P01"
	pgExceptionRaised               = "P0001"
	pgStatementCanceled             = "57014"
)

func mapExecErrors(err error, res sql.Result) error {
	found, err := mapError(err)
	if found || err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNop
	}
	return nil
}

// mapError maps a few pq errors to errors defined in this package, wrapping the original
// message. If a mapping was made the returned bool will be true, if not the original error is
// returned and the bool will be false.
func mapError(err error) (bool, error) {
	if errors.Is(err, driver.ErrBadConn) {
		return true, ErrBadConn
	}
	e := &pq.Error{}
	if !errors.As(err, &e) {
		return false, err
	}
	switch e.Code {
	case pgForeignKeyConstraintErrorCode, pgCheckViolationErrorCode:
		return true, fmt.Errorf("%w: %s - %s", ErrConstrained, e.Message, e.Detail)
	case pgNotNullViolationErrorCode:
		return true, fmt.Errorf("%w: %s", ErrNotNull, e.Message)
	case pgUndefinedTableErrorCode:
		return true, fmt.Errorf("%w: %s", ErrUndefinedTable, e.Message)
	case pgExceptionRaised:
		return true, fmt.Errorf("%w: %s - %s", ErrException, e.Message, e.Detail)
	case pgStatementCanceled:
		return true, fmt.Errorf("%w: %s - %s", ErrCanceled, e.Message, e.Detail)
	case pgUniqueViolationErrorCode:
		return true, fmt.Errorf("%w: %s - %s", ErrNop, e.Message, e.Detail)
	}
	return false, err
}
