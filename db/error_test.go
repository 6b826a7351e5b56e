package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/studyquest/achievement-check/o11y"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		mapped  bool
		is      error
		warning bool
	}{
		{name: "canceled", err: &pq.Error{Code: "57014"}, mapped: true, is: ErrCanceled, warning: true},
		{name: "undefined table", err: &pq.Error{Code: "42P01", Message: `relation "user_achievements" does not exist`},
			mapped: true, is: ErrUndefinedTable, warning: true},
		{name: "not null", err: &pq.Error{Code: "23502"}, mapped: true, is: ErrNotNull},
		{name: "foreign key", err: &pq.Error{Code: "23503"}, mapped: true, is: ErrConstrained},
		{name: "check", err: &pq.Error{Code: "23514"}, mapped: true, is: ErrConstrained},
		{name: "unique", err: &pq.Error{Code: "23505"}, mapped: true, is: ErrNop, warning: true},
		{name: "exception", err: &pq.Error{Code: "P0001"}, mapped: true, is: ErrException},
		{name: "bad conn", err: fmt.Errorf("wrapped: %w", driver.ErrBadConn), mapped: true, is: ErrBadConn, warning: true},
		{name: "syntax is passed through", err: &pq.Error{Code: "42601"}, mapped: false},
		{name: "plain error", err: errors.New("boom"), mapped: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, e := mapError(tt.err)
			assert.Check(t, cmp.Equal(ok, tt.mapped))
			if !tt.mapped {
				assert.Check(t, cmp.Equal(e, tt.err))
				return
			}
			assert.Check(t, cmp.ErrorIs(e, tt.is))
			assert.Check(t, cmp.Equal(o11y.IsWarning(fmt.Errorf("foo: %w", e)), tt.warning))
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	ok, err := mapError(nil)
	assert.Check(t, !ok)
	assert.Check(t, err)
}

func TestNoEffectError(t *testing.T) {
	err := fmt.Errorf("another error: %w", fmt.Errorf("some other error: %w", ErrNop))
	assert.Check(t, errors.Is(err, ErrNop))
	assert.Check(t, o11y.IsWarning(err))
}
