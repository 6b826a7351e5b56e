// Package report prints the human-readable progress of a check to the console.
package report

import (
	"fmt"
	"io"

	"github.com/studyquest/achievement-check/achievements"
	"github.com/studyquest/achievement-check/colourise"
)

type style int

const (
	plain style = iota
	heading
	good
	caution
	bad
)

// Reporter writes one line per check event. Write errors are ignored, the same
// as printing to a terminal.
type Reporter struct {
	w      io.Writer
	colour bool
}

func New(w io.Writer, colour bool) *Reporter {
	return &Reporter{w: w, colour: colour}
}

func (r *Reporter) line(s style, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	if r.colour {
		switch s {
		case heading:
			text = colourise.ApplyColour(text)
		case good:
			text = colourise.Success(text)
		case caution:
			text = colourise.Caution(text)
		case bad:
			text = colourise.ErrorHighlight(text)
		}
	}
	_, _ = fmt.Fprintln(r.w, text)
}

func (r *Reporter) Connected(version string) {
	r.line(good, "🔍 Connected to PostgreSQL: %s", version)
}

func (r *Reporter) TableHeader(table string) {
	r.line(plain, "")
	r.line(heading, "📋 Structure of table %s:", table)
}

func (r *Reporter) Columns(cols []achievements.Column) {
	for _, c := range cols {
		r.line(plain, "  - %s", c)
	}
}

func (r *Reporter) TableNotFound(table string) {
	r.line(bad, "  ❌ Table %s not found!", table)
}

func (r *Reporter) DataHeader() {
	r.line(plain, "")
	r.line(heading, "📊 Existing data:")
}

func (r *Reporter) Rows(rows []achievements.Row) {
	if len(rows) == 0 {
		r.line(caution, "  📭 No data found")
		return
	}
	r.line(good, "  ✅ Found %d records:", len(rows))
	for i, row := range rows {
		r.line(plain, "    %d. %s", i+1, row)
	}
}

func (r *Reporter) InsertHeader() {
	r.line(plain, "")
	r.line(heading, "🧪 Testing insert...")
}

func (r *Reporter) InsertSucceeded(row achievements.Row) {
	r.line(good, "  ✅ Insert succeeded: %s", row)
	r.line(plain, "  🧹 Test row cleaned up")
}

func (r *Reporter) InsertFailed(err error) {
	r.line(bad, "  ❌ Insert error: %v", err)
}

func (r *Reporter) Leftovers(userID string, n int) {
	if n == 0 {
		r.line(good, "  ✅ No rows left behind for %s", userID)
		return
	}
	r.line(bad, "  ❌ %d rows left behind for %s", n, userID)
}

func (r *Reporter) ConnectionError(err error) {
	r.line(bad, "❌ Connection error: %v", err)
}
