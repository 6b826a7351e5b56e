package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Load PostgresSQL Driver

	"github.com/studyquest/achievement-check/config/secret"
	"github.com/studyquest/achievement-check/o11y"
)

type Config struct {
	Host string
	Port int
	User string
	Pass secret.String
	Name string
	SSL  bool

	// ConnectTimeout is handed to the server as connect_timeout, in whole seconds.
	ConnectTimeout time.Duration
	// MaxOpenConns defaults to 1, everything the checker does is sequential.
	MaxOpenConns int
}

func (c Config) host() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URI builds the libpq connection URL for the config.
func (c Config) URI(appName string) string {
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	params := url.Values{}
	params.Set("connect_timeout", fmt.Sprintf("%d", int(timeout.Seconds())))
	params.Set("application_name", appName)
	if c.SSL {
		params.Set("sslmode", "require")
	} else {
		params.Set("sslmode", "disable")
	}
	uri := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Pass.Raw()),
		Host:     c.host(),
		Path:     c.Name,
		RawQuery: params.Encode(),
	}
	return uri.String()
}

// New opens a database handle. It does not touch the network, use a HealthCheck
// or any query to find out whether the server is reachable.
func New(ctx context.Context, appName string, options Config) (db *sqlx.DB, err error) {
	_, span := o11y.StartSpan(ctx, "db: open")
	defer o11y.End(span, &err)

	span.AddField("host", options.host())
	span.AddField("dbname", options.Name)
	span.AddField("username", options.User)

	db, err = sqlx.Open("postgres", options.URI(appName))
	if err != nil {
		return nil, err
	}

	maxOpen := options.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	return db, nil
}
