// Package dbfixture creates a throwaway Postgres database per test.
//
// Tests are skipped when no server is reachable, unless CI=true.
package dbfixture

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4"
	"github.com/jmoiron/sqlx"
	"gotest.tools/v3/assert"

	"github.com/studyquest/achievement-check/config/secret"
	"github.com/studyquest/achievement-check/db"
	"github.com/studyquest/achievement-check/o11y"
	"github.com/studyquest/achievement-check/testing/internal/types"
	"github.com/studyquest/achievement-check/valueonly"
)

const appName = "dbfixture"

var globalFixture = &SharedFixture{}

var mustRunAllTests = os.Getenv("CI") == "true"

type SharedFixture struct {
	once sync.Once
	m    *Manager
}

func (s *SharedFixture) Manager() *Manager {
	return s.m
}

// SetupSystem connects the shared manager on first use.
// callers should not rely on the fact this currently uses a package global
func SetupSystem(t types.TestingTB, con Connection) *SharedFixture {
	globalFixture.once.Do(func() {
		var err error
		globalFixture.m, err = NewManager(con)
		if err != nil {
			var noDBError *NoDBError
			if errors.As(err, &noDBError) && !mustRunAllTests {
				t.Skip(noDBError.Error())
			}
			t.Fatal(err.Error())
		}
	})
	if globalFixture.m == nil {
		t.Skip("global fixtures failed setup")
	}
	return globalFixture
}

// Connection points at a server where User may create and drop databases.
type Connection struct {
	Host     string
	Port     int
	User     string
	Password secret.String
}

func (c Connection) config(name string) db.Config {
	return db.Config{
		Host:         c.Host,
		Port:         c.Port,
		User:         c.User,
		Pass:         c.Password,
		Name:         name,
		MaxOpenConns: 5,
	}
}

// SetupDB creates a database named after the test, applies schema to it and
// drops it again when the test finishes.
func SetupDB(ctx context.Context, t types.TestingTB, schema string, con Connection) *Fixture {
	t.Helper()
	shared := SetupSystem(t, con)
	fix, err := shared.Manager().NewDB(ctx, con, t.Name(), schema)
	assert.Assert(t, err)
	t.Cleanup(func() {
		ctx, cancel := valueonly.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if r := recover(); r != nil {
			_ = fix.Cleanup(ctx)
			panic(r)
		}
		assert.Assert(t, fix.Cleanup(ctx))
	})
	return fix
}

type Manager struct {
	db *sqlx.DB
}

func NewManager(con Connection) (*Manager, error) {
	d, err := open(context.Background(), con.config("postgres"))
	if err != nil {
		return nil, err
	}
	return &Manager{db: d}, nil
}

// NewDB returns a new database fixture. The database name is dbName with a random prefix.
func (m *Manager) NewDB(ctx context.Context, con Connection, dbName, schema string) (_ *Fixture, err error) {
	ctx, span := o11y.StartSpan(ctx, "dbfixture: new-db")
	defer o11y.End(span, &err)

	name := fmt.Sprintf("%s-%s", randomSuffix(), dbName)
	if len(name) > 63 {
		name = name[:63]
	}

	fix := &Fixture{DBName: name, Config: con.config(name)}
	span.AddField("dbname", fix.DBName)
	span.AddField("host", con.Host)

	_, err = m.db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{fix.DBName}.Sanitize()))
	if err != nil {
		return nil, err
	}

	fix.DB, err = open(ctx, fix.Config)
	if err != nil {
		return nil, err
	}
	fix.TX = db.NewTxManager(fix.DB)
	fix.Cleanup = func(ctx context.Context) error {
		return m.cleanup(ctx, fix)
	}

	if schema != "" {
		o11y.Log(ctx, "applying schema")
		_, err = fix.DB.ExecContext(ctx, schema)
		if err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	err = fix.DB.SelectContext(ctx, &fix.tables, tableNameQuery)
	if err != nil {
		return nil, fmt.Errorf("could not get list of tables: %w", err)
	}

	return fix, nil
}

const tableNameQuery = `
SELECT
    table_name,
    table_schema
FROM
    information_schema.tables
WHERE
    table_type = 'BASE TABLE'
AND
    table_schema NOT IN ('pg_catalog', 'information_schema')
`

func (m *Manager) Close() error {
	return m.db.Close()
}

type NoDBError struct {
	err error
}

func (e *NoDBError) Error() string {
	return fmt.Sprintf("no database available: %s", e.err)
}

func (e *NoDBError) Unwrap() error {
	return e.err
}

func open(ctx context.Context, cfg db.Config) (*sqlx.DB, error) {
	d, err := db.New(ctx, appName, cfg)
	if err != nil {
		return nil, err
	}
	err = d.PingContext(ctx)
	if err != nil {
		return nil, &NoDBError{err: multierror.Append(err, d.Close()).ErrorOrNil()}
	}
	return d, nil
}

func (m *Manager) cleanup(ctx context.Context, fix *Fixture) error {
	var result error
	if err := fix.DB.Close(); err != nil {
		o11y.LogError(ctx, "dbfixture: cleanup close", err)
		result = multierror.Append(result, err)
	}

	if os.Getenv("TEST_PRESERVE_DB") != "" {
		return result
	}

	dbName := pgx.Identifier{fix.DBName}.Sanitize()

	// kick out any malingering connections before dropping the database
	_, err := m.db.ExecContext(ctx, fmt.Sprintf("REVOKE CONNECT ON DATABASE %s FROM public;", dbName))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("revoke con: %w", err))
	}

	_, err = m.db.ExecContext(ctx, `
SELECT pid, pg_terminate_backend(pid)
FROM pg_stat_activity
WHERE datname = $1 AND pid <> pg_backend_pid();
`, fix.DBName)
	if err != nil {
		o11y.LogError(ctx, "dbfixture: cleanup drop con", err)
	}

	_, err = m.db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE %s", dbName))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("drop db: %w", err))
	}

	return result
}

func randomSuffix() string {
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "not-random"
	}
	return hex.EncodeToString(bytes)
}

type Fixture struct {
	DBName string
	// Config connects to the fixture database, hand it to code that opens its own handle.
	Config  db.Config
	DB      *sqlx.DB
	TX      *db.TxManager
	Cleanup func(ctx context.Context) error

	tables []table
}

type table struct {
	Schema string `db:"table_schema"`
	Name   string `db:"table_name"`
}

// Reset empties every table the schema created.
func (f *Fixture) Reset(ctx context.Context) (err error) {
	return f.TX.WithTx(ctx, func(ctx context.Context, tx db.Querier) error {
		for _, table := range f.tables {
			// nolint: gosec
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`,
				pgx.Identifier{table.Schema, table.Name}.Sanitize()))
			if err != nil && !errors.Is(err, db.ErrNop) {
				return fmt.Errorf("could not delete from table: %w", err)
			}
		}
		return nil
	})
}
