package o11y

import (
	"context"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"github.com/studyquest/achievement-check/config/secret"
	"github.com/studyquest/achievement-check/db"
	"github.com/studyquest/achievement-check/internal/syncbuffer"
	"github.com/studyquest/achievement-check/o11y"
	"github.com/studyquest/achievement-check/testing/fakestatsd"
)

func TestSetup_SecretRedacted(t *testing.T) {
	buf := &syncbuffer.SyncBuffer{}
	ctx, cleanup, err := Setup(context.Background(), Config{
		Format:  "json",
		Service: "achievement-check",
		Version: "test",
		Writer:  buf,
	})
	assert.Assert(t, err)

	_, span := o11y.StartSpan(ctx, "secret test")
	span.AddField("password", secret.String("super-secret"))
	span.End()
	cleanup(ctx)

	assert.Check(t, !strings.Contains(buf.String(), "super-secret"), buf.String())
	assert.Check(t, cmp.Contains(buf.String(), "REDACTED"))
	assert.Check(t, cmp.Contains(buf.String(), `"service":"achievement-check"`))
}

func TestSetup_TextFormat(t *testing.T) {
	buf := &syncbuffer.SyncBuffer{}
	ctx, cleanup, err := Setup(context.Background(), Config{
		Format:  "text",
		Service: "achievement-check",
		Writer:  buf,
	})
	assert.Assert(t, err)

	o11y.Log(ctx, "check: connected", o11y.Field("table", "user_achievements"))
	cleanup(ctx)

	assert.Check(t, cmp.Contains(buf.String(), "check: connected app.table=user_achievements"))
}

func TestSetup_DoesNotError(t *testing.T) {
	ctx, cleanup, err := Setup(context.Background(), Config{
		Statsd:            "127.0.0.1:8125",
		RollbarToken:      "qwertyuiop",
		RollbarDisabled:   true,
		RollbarEnv:        "development",
		RollbarServerRoot: "github.com/studyquest/achievement-check",
		HoneycombEnabled:  false,
		HoneycombDataset:  "does-not-exist",
		HoneycombKey:      "1234567890",
		Format:            "color",
		Version:           "1.2.3",
		Service:           "test-service",
		StatsNamespace:    "test.service.",
		Mode:              "check",
		Debug:             true,
	})
	assert.Assert(t, err)
	_, ok := o11y.FromContext(ctx).(rollbarProvider)
	assert.Check(t, ok)
	cleanup(ctx)
}

func TestSetup_RejectsMissingHoneycombKey(t *testing.T) {
	_, _, err := Setup(context.Background(), Config{
		HoneycombEnabled: true,
	})
	assert.Check(t, cmp.ErrorContains(err, "honeycomb_key"))
}

func TestSetup_StatsdMetrics(t *testing.T) {
	s := fakestatsd.New(t)
	ctx, cleanup, err := Setup(context.Background(), Config{
		Statsd:         s.Addr(),
		Format:         "none",
		Service:        "achievement-check",
		Version:        "1.2.3",
		StatsNamespace: "achievement_check.",
	})
	assert.Assert(t, err)

	_, span := db.Span(ctx, "user_achievements", "columns")
	o11y.End(span, nil)
	// closing the provider flushes the statsd client
	cleanup(ctx)

	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		if len(s.Named("achievement_check.db.query")) == 0 {
			return poll.Continue("no db.query metric yet")
		}
		return poll.Success()
	})
	m := s.Named("achievement_check.db.query")[0]
	assert.Check(t, strings.HasSuffix(m.Value, "|ms"), m.Value)
	assert.Check(t, cmp.Contains(m.Tags, "service:achievement-check"))
	assert.Check(t, cmp.Contains(m.Tags, "db.entity:user_achievements"))
	assert.Check(t, cmp.Contains(m.Tags, "db.query_name:columns"))
	assert.Check(t, cmp.Contains(m.Tags, "result:success"))
}
