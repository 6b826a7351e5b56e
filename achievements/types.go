package achievements

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultTable is the table inspected when none is configured.
const DefaultTable = "user_achievements"

// Column is one row of information_schema.columns for the inspected table.
type Column struct {
	Name     string         `db:"column_name"`
	DataType string         `db:"data_type"`
	Nullable string         `db:"is_nullable"`
	Default  sql.NullString `db:"column_default"`
}

func (c Column) IsNullable() bool {
	return c.Nullable == "YES"
}

// String renders the column as "name (type) NULL" or "name (type) NOT NULL".
func (c Column) String() string {
	null := "NOT NULL"
	if c.IsNullable() {
		null = "NULL"
	}
	return fmt.Sprintf("%s (%s) %s", c.Name, c.DataType, null)
}

// Row is a generically scanned row. Columns and Values share the column order
// the server returned.
type Row struct {
	Columns []string
	Values  []interface{}
}

// Get returns the value of the named column.
func (r Row) Get(column string) (interface{}, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r Row) String() string {
	parts := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		parts[i] = c + "=" + formatValue(r.Values[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Probe is the disposable row written and removed by InsertProbe.
type Probe struct {
	UserID          string
	AchievementType string
	Type            string
	XPBonus         int
	Rarity          string
}

// DefaultProbeUserID marks rows written by the insert probe.
const DefaultProbeUserID = "test-user-123"

func DefaultProbe() Probe {
	return Probe{
		UserID:          DefaultProbeUserID,
		AchievementType: "test",
		Type:            "test",
		XPBonus:         10,
		Rarity:          "common",
	}
}
