package main

import (
	"context"
	"errors"
	"fmt"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"os"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/studyquest/achievement-check/achievements"
	"github.com/studyquest/achievement-check/check"
	"github.com/studyquest/achievement-check/config/o11y"
	"github.com/studyquest/achievement-check/config/secret"
	"github.com/studyquest/achievement-check/db"
	o11yc "github.com/studyquest/achievement-check/o11y"
	"github.com/studyquest/achievement-check/termination"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const serviceName = "achievement-check"

type cli struct {
	DBHost     string        `name:"db-host" env:"DB_HOST" default:"127.0.0.1" help:"Postgres host"`
	DBPort     int           `name:"db-port" env:"DB_PORT" default:"54322" help:"Postgres port"`
	DBUser     string        `name:"db-user" env:"DB_USER" default:"postgres"`
	DBPassword secret.String `name:"db-password" env:"DB_PASSWORD" default:"postgres"`
	DBName     string        `name:"db-name" env:"DB_NAME" default:"postgres"`
	DBSSL      bool          `name:"db-ssl" env:"DB_SSL" default:"false"`

	Table       string        `env:"CHECK_TABLE" default:"user_achievements" help:"Table to inspect, optionally schema qualified"`
	SampleLimit int           `env:"CHECK_SAMPLE_LIMIT" default:"3" help:"Number of existing rows to show"`
	ProbeUserID string        `name:"probe-user-id" env:"CHECK_PROBE_USER_ID" default:"test-user-123" help:"user_id written by the insert probe"`
	SkipInsert  bool          `env:"CHECK_SKIP_INSERT" default:"false" help:"Only read, do not run the insert probe"`
	Timeout     time.Duration `env:"CHECK_TIMEOUT" default:"30s" help:"Give up on the whole check after this long"`
	Colour      bool          `env:"CHECK_COLOUR" default:"false" help:"Colour the report"`

	O11yFormat           string        `name:"o11y-format" env:"O11Y_FORMAT" enum:"json,color,colour,text,none" default:"none" help:"Format used for stderr logging"`
	O11yStatsd           string        `name:"o11y-statsd" env:"O11Y_STATSD" help:"Address to send statsd metrics"`
	O11yHoneycombEnabled bool          `name:"o11y-honeycomb" env:"O11Y_HONEYCOMB" default:"false" help:"Send traces to honeycomb"`
	O11yHoneycombDataset string        `name:"o11y-honeycomb-dataset" env:"O11Y_HONEYCOMB_DATASET" default:"achievement-check"`
	O11yHoneycombKey     secret.String `name:"o11y-honeycomb-key" env:"O11Y_HONEYCOMB_KEY"`
	O11yRollbarToken     secret.String `name:"o11y-rollbar-token" env:"O11Y_ROLLBAR_TOKEN"`
	O11yRollbarEnv       string        `name:"o11y-rollbar-env" env:"O11Y_ROLLBAR_ENV" default:"development"`
}

// Validate rejects flag values that would only fail once they reach the server.
func (c cli) Validate() error {
	if c.SampleLimit < 0 {
		return fmt.Errorf("--sample-limit must not be negative, got %d", c.SampleLimit)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", c.Timeout)
	}
	if _, _, err := achievements.ParseTable(c.Table); err != nil {
		return fmt.Errorf("--table: %w", err)
	}
	return nil
}

// checkFailed marks an error the report has already printed.
type checkFailed struct {
	err error
}

func (e checkFailed) Error() string { return e.err.Error() }
func (e checkFailed) Unwrap() error { return e.err }

var (
	terminationHook = termination.Handle
	reportError     = o11yc.ReportError
)

func main() {
	c := cli{}
	kong.Parse(&c,
		kong.Name(serviceName),
		kong.Description("Checks the user_achievements table of a Postgres database."),
	)

	err := run(context.Background(), c)
	var failed checkFailed
	switch {
	case err == nil:
	case errors.Is(err, termination.ErrTerminated):
		log.Println("terminated")
	case errors.As(err, &failed):
		os.Exit(1)
	default:
		log.Fatal("Unexpected Error: ", err)
	}
}

func run(ctx context.Context, c cli) (err error) {
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, o11yCleanup, err := o11y.Setup(ctx, o11yConfig(c))
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11yc.StartSpan(ctx, "main: run")
	defer o11yc.End(runSpan, &err)
	defer func() {
		if errors.Is(err, termination.ErrTerminated) {
			return
		}
		reportError(ctx, err)
	}()

	o11yc.Log(ctx, "starting check",
		o11yc.Field("version", Version),
		o11yc.Field("table", c.Table),
	)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	return runGroup(ctx, checkOptions(c))
}

// runGroup races the check against process signals. The check finishing stops
// the signal handler.
func runGroup(ctx context.Context, opts check.Options) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return terminationHook(ctx)
	})
	g.Go(func() (err error) {
		defer stop()
		ctx, span := o11yc.StartSpan(ctx, "main: check")
		defer o11yc.End(span, &err)
		defer func() {
			if r := recover(); r != nil {
				err = o11yc.HandlePanic(ctx, span, r)
			}
		}()
		if err := check.Run(ctx, opts); err != nil {
			return checkFailed{err: err}
		}
		return nil
	})
	return g.Wait()
}

func o11yConfig(c cli) o11y.Config {
	return o11y.Config{
		Statsd:            c.O11yStatsd,
		RollbarToken:      c.O11yRollbarToken,
		RollbarEnv:        c.O11yRollbarEnv,
		RollbarServerRoot: "github.com/studyquest/achievement-check",
		HoneycombEnabled:  c.O11yHoneycombEnabled,
		HoneycombDataset:  c.O11yHoneycombDataset,
		HoneycombKey:      c.O11yHoneycombKey,
		Format:            c.O11yFormat,
		Version:           Version,
		Service:           serviceName,
		StatsNamespace:    "achievement_check.",
		Mode:              "cli",
	}
}

func checkOptions(c cli) check.Options {
	probe := achievements.DefaultProbe()
	probe.UserID = c.ProbeUserID
	return check.Options{
		AppName: fmt.Sprintf("%s-%s", serviceName, Version),
		DB: db.Config{
			Host: c.DBHost,
			Port: c.DBPort,
			User: c.DBUser,
			Pass: c.DBPassword,
			Name: c.DBName,
			SSL:  c.DBSSL,
		},
		Table:       c.Table,
		SampleLimit: c.SampleLimit,
		Probe:       probe,
		SkipInsert:  c.SkipInsert,
		Out:         os.Stdout,
		Colour:      c.Colour,
	}
}
