// Package check runs the achievements diagnostic from connection to cleanup.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/studyquest/achievement-check/achievements"
	"github.com/studyquest/achievement-check/closer"
	"github.com/studyquest/achievement-check/db"
	"github.com/studyquest/achievement-check/o11y"
	"github.com/studyquest/achievement-check/report"
)

// ErrLeftovers is returned when probe rows are still in the table after the run.
var ErrLeftovers = errors.New("probe rows left behind")

type Options struct {
	AppName     string
	DB          db.Config
	Table       string
	SampleLimit int
	Probe       achievements.Probe
	SkipInsert  bool

	Out    io.Writer
	Colour bool

	// Open returns the database handle, db.New when nil. Run closes whatever it returns.
	Open func(ctx context.Context, appName string, cfg db.Config) (*sqlx.DB, error)
}

// Run connects, inspects the table, and closes the connection on every path.
// A missing table and leftover probe rows are reported by their own lines,
// any other failure is reported as a connection error.
func Run(ctx context.Context, opts Options) (err error) {
	ctx, span := o11y.StartSpan(ctx, "check: run")
	defer o11y.End(span, &err)
	span.AddField("table", opts.Table)

	rep := report.New(opts.Out, opts.Colour)
	defer func() {
		if err != nil && !errors.Is(err, achievements.ErrTableNotFound) && !errors.Is(err, ErrLeftovers) {
			rep.ConnectionError(err)
		}
	}()

	open := opts.Open
	if open == nil {
		open = db.New
	}
	conn, err := open(ctx, opts.AppName, opts.DB)
	if err != nil {
		return err
	}
	defer closer.ErrorHandler(conn, &err)

	return inspect(ctx, conn, rep, opts)
}

func inspect(ctx context.Context, conn *sqlx.DB, rep *report.Reporter, opts Options) error {
	hc := &db.HealthCheck{Name: "achievements", DB: conn}
	defer hc.RecordGauges(ctx)

	version, err := hc.Version(ctx)
	if err != nil {
		return err
	}
	rep.Connected(version)

	inspector, err := achievements.NewInspector(db.NewTxManager(conn), opts.Table)
	if err != nil {
		return err
	}

	rep.TableHeader(opts.Table)
	cols, err := inspector.Columns(ctx)
	if errors.Is(err, achievements.ErrTableNotFound) {
		rep.TableNotFound(opts.Table)
		return err
	}
	if err != nil {
		return err
	}
	rep.Columns(cols)

	rep.DataHeader()
	rows, err := inspector.Sample(ctx, opts.SampleLimit)
	if err != nil {
		return err
	}
	rep.Rows(rows)

	if opts.SkipInsert {
		o11y.Log(ctx, "check: insert skipped")
		return nil
	}

	rep.InsertHeader()
	row, err := inspector.InsertProbe(ctx, opts.Probe)
	if err != nil {
		// a failed insert is a finding, not a reason to stop
		rep.InsertFailed(err)
		o11y.LogError(ctx, "check: insert probe", err, o11y.Field("table", opts.Table))
	} else {
		rep.InsertSucceeded(row)
	}

	n, err := inspector.Leftovers(ctx, opts.Probe.UserID)
	if err != nil {
		return err
	}
	rep.Leftovers(opts.Probe.UserID, n)
	if n > 0 {
		return fmt.Errorf("%w: %d rows for %s", ErrLeftovers, n, opts.Probe.UserID)
	}
	return nil
}
