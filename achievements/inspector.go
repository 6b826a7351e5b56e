package achievements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jmoiron/sqlx"

	"github.com/studyquest/achievement-check/db"
	"github.com/studyquest/achievement-check/o11y"
)

var (
	ErrTableNotFound = o11y.NewWarning("table not found")
	ErrNoRowReturned = errors.New("insert returned no row")
	ErrInvalidTable  = errors.New("invalid table name")
)

// Inspector runs the diagnostic queries against a single table.
type Inspector struct {
	tx     *db.TxManager
	schema string
	table  string
	ident  string
}

// NewInspector returns an inspector for table, which is either a bare name or
// schema qualified as "schema.table". Names with more than one dot are rejected.
func NewInspector(tx *db.TxManager, table string) (*Inspector, error) {
	schema, name, err := ParseTable(table)
	if err != nil {
		return nil, err
	}
	i := &Inspector{tx: tx, schema: schema, table: name}
	if schema != "" {
		i.ident = pgx.Identifier{schema, name}.Sanitize()
	} else {
		i.ident = pgx.Identifier{name}.Sanitize()
	}
	return i, nil
}

// ParseTable splits "schema.table" or "table". Every part must be non-empty.
func ParseTable(table string) (schema, name string, err error) {
	parts := strings.Split(table, ".")
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
	}
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("%w: %q is not table or schema.table", ErrInvalidTable, table)
}

// Table returns the unqualified table name.
func (i *Inspector) Table() string {
	return i.table
}

// language=PostgreSQL
const columnsQuery = `SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_name = $1
AND ($2::text = '' OR table_schema = $2)
ORDER BY ordinal_position;`

// Columns returns the table's column metadata in ordinal order. A table with no
// columns visible to the connected user is reported as ErrTableNotFound.
func (i *Inspector) Columns(ctx context.Context) (cols []Column, err error) {
	ctx, span := db.Span(ctx, i.table, "columns")
	defer o11y.End(span, &err)

	err = i.tx.NoTx().SelectContext(ctx, &cols, columnsQuery, i.table, i.schema)
	if errors.Is(err, db.ErrNop) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, i.table)
	}
	if err != nil {
		return nil, err
	}
	span.AddField("columns", len(cols))
	return cols, nil
}

func (i *Inspector) sampleQuery() string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT $1;", i.ident)
}

// Sample returns up to limit rows in whatever order the server produces them.
func (i *Inspector) Sample(ctx context.Context, limit int) (rows []Row, err error) {
	ctx, span := db.Span(ctx, i.table, "sample")
	defer o11y.End(span, &err)

	res, err := i.tx.NoTx().QueryxContext(ctx, i.sampleQuery(), limit)
	if err != nil {
		return nil, i.undefined(err)
	}
	rows, err = scanRows(res)
	if err != nil {
		return nil, err
	}
	span.AddField("rows", len(rows))
	return rows, nil
}

func (i *Inspector) insertQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (user_id, achievement_type, type, xp_bonus, rarity, earned_at)
VALUES ($1, $2, $3, $4, $5, now())
RETURNING *;`, i.ident)
}

func (i *Inspector) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE user_id = $1;", i.ident)
}

// InsertProbe writes p, reads back the stored row and deletes every row carrying
// p.UserID, all in one transaction. Any failure rolls the transaction back, so the
// probe never outlives the call.
func (i *Inspector) InsertProbe(ctx context.Context, p Probe) (row Row, err error) {
	ctx, span := db.Span(ctx, i.table, "insert-probe")
	defer o11y.End(span, &err)
	span.AddField("probe_user_id", p.UserID)

	err = i.tx.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		res, err := q.QueryxContext(ctx, i.insertQuery(),
			p.UserID, p.AchievementType, p.Type, p.XPBonus, p.Rarity)
		if err != nil {
			return i.undefined(err)
		}
		inserted, err := scanRows(res)
		if err != nil {
			return err
		}
		if len(inserted) == 0 {
			return ErrNoRowReturned
		}
		row = inserted[0]

		if _, err = q.ExecContext(ctx, i.deleteQuery(), p.UserID); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		return nil
	})
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

// language=PostgreSQL
const leftoversQuery = `SELECT count(*) FROM %s WHERE user_id = $1;`

// Leftovers counts the rows that still carry userID.
func (i *Inspector) Leftovers(ctx context.Context, userID string) (n int, err error) {
	ctx, span := db.Span(ctx, i.table, "leftovers")
	defer o11y.End(span, &err)

	err = i.tx.NoTx().GetContext(ctx, &n, fmt.Sprintf(leftoversQuery, i.ident), userID)
	if err != nil {
		return 0, i.undefined(err)
	}
	span.AddField("leftovers", n)
	return n, nil
}

func (i *Inspector) undefined(err error) error {
	if errors.Is(err, db.ErrUndefinedTable) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, err)
	}
	return err
}

func scanRows(rows *sqlx.Rows) (out []Row, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Columns: cols, Values: vals})
	}
	return out, rows.Err()
}
