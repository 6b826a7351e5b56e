package db

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestConfig_URI(t *testing.T) {
	cfg := Config{
		Host: "127.0.0.1",
		Port: 54322,
		User: "postgres",
		Pass: "p@ss word",
		Name: "postgres",
	}

	u, err := url.Parse(cfg.URI("achievement-check"))
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(u.Scheme, "postgres"))
	assert.Check(t, cmp.Equal(u.Host, "127.0.0.1:54322"))
	assert.Check(t, cmp.Equal(u.Path, "/postgres"))
	assert.Check(t, cmp.Equal(u.User.Username(), "postgres"))
	pass, _ := u.User.Password()
	assert.Check(t, cmp.Equal(pass, "p@ss word"))

	q := u.Query()
	assert.Check(t, cmp.Equal(q.Get("sslmode"), "disable"))
	assert.Check(t, cmp.Equal(q.Get("connect_timeout"), "5"))
	assert.Check(t, cmp.Equal(q.Get("application_name"), "achievement-check"))
}

func TestConfig_URI_SSLAndTimeout(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, SSL: true, ConnectTimeout: 12 * time.Second}
	q, err := url.ParseQuery(strings.SplitN(cfg.URI("x"), "?", 2)[1])
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(q.Get("sslmode"), "require"))
	assert.Check(t, cmp.Equal(q.Get("connect_timeout"), "12"))
}

func TestNew_SingleConnection(t *testing.T) {
	db, err := New(context.Background(), "achievement-check", Config{
		Host: "localhost",
		Port: 5432,
		User: "user",
		Pass: "password",
		Name: "dbname",
	})
	assert.Assert(t, err)
	defer db.Close()

	assert.Check(t, cmp.Equal(db.Stats().MaxOpenConnections, 1))
	assert.Check(t, cmp.Equal(db.DriverName(), "postgres"))
}
