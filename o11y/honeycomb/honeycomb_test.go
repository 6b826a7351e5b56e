package honeycomb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/studyquest/achievement-check/o11y"
)

func TestHoneycomb_CheckSpan(t *testing.T) {
	var events []string
	url := honeycombServer(t, func(e string) { events = append(events, e) })

	h := New(Config{
		Dataset:     "achievement-check",
		Host:        url,
		SendTraces:  true,
		ServiceName: "achievement-check",
	})
	h.AddGlobalField("service", "achievement-check")

	ctx := o11y.WithProvider(context.Background(), h)
	ctx, span := o11y.StartSpan(ctx, "check: run")
	o11y.AddFieldToTrace(ctx, "table", "user_achievements")

	_, query := o11y.StartSpan(ctx, "db: user_achievements.columns")
	query.AddRawField("db.system", "postgresql")
	query.AddField("columns", 7)
	// no metrics provider is configured, the metric must not leak into the event
	query.RecordMetric(o11y.Timing("db.query", "db.entity"))
	query.End()
	span.End()
	h.Close(ctx)

	all := strings.Join(events, "\n")
	assert.Check(t, cmp.Contains(all, `"name":"db: user_achievements.columns"`))
	assert.Check(t, cmp.Contains(all, `"name":"check: run"`))
	assert.Check(t, cmp.Contains(all, `"service":"achievement-check"`))
	assert.Check(t, cmp.Contains(all, `"app.table":"user_achievements"`), "trace fields reach child spans")
	assert.Check(t, cmp.Contains(all, `"app.columns":7`), "span.AddField is prefixed")
	assert.Check(t, cmp.Contains(all, `"db.system":"postgresql"`), "span.AddRawField is unprefixed")
	assert.Check(t, !strings.Contains(all, metricKey))
}

func TestHoneycomb_ValidatesKeys(t *testing.T) {
	h := New(Config{Format: "none"})
	ctx := o11y.WithProvider(context.Background(), h)
	defer h.Close(ctx)
	ctx, span := o11y.StartSpan(ctx, "check: keys")
	defer span.End()

	tests := map[string]func(){
		"global":  func() { h.AddGlobalField("db-host", "x") },
		"trace":   func() { o11y.AddFieldToTrace(ctx, "probe-user", "x") },
		"context": func() { o11y.AddField(ctx, "sample-limit", "x") },
		"span":    func() { span.AddField("xp-bonus", "x") },
		"raw":     func() { span.AddRawField("db-entity", "x") },
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				err, ok := recover().(error)
				assert.Assert(t, ok)
				assert.Check(t, cmp.ErrorContains(err, "cannot contain '-'"))
			}()
			f()
		})
	}
}

func TestHoneycomb_Metrics(t *testing.T) {
	metrics := &fakeMetrics{}
	h := New(Config{Format: "none", Metrics: metrics})
	ctx := o11y.WithProvider(context.Background(), h)

	_ = func() (err error) {
		_, span := h.StartSpan(ctx, "db: user_achievements.sample")
		defer o11y.End(span, &err)
		span.RecordMetric(o11y.Timing("db.query", "db.entity", "db.query_name", "result"))
		span.RecordMetric(o11y.Gauge("check.rows", "rows", "db.entity"))
		span.AddRawField("db.entity", "user_achievements")
		span.AddRawField("db.query_name", "sample")
		span.AddField("rows", 3)
		return nil
	}()

	_ = func() (err error) {
		_, span := h.StartSpan(ctx, "db: missing.columns")
		defer o11y.End(span, &err)
		span.RecordMetric(o11y.Incr("check.step", "db.entity"))
		span.AddRawField("db.entity", "missing")
		return o11y.NewWarning("table not found")
	}()
	h.Close(ctx)

	assert.Check(t, cmp.DeepEqual(metrics.calls, []metricCall{
		{Metric: "timer", Name: "db.query", Rate: 1, Value: 1,
			Tags: []string{"db.entity:user_achievements", "db.query_name:sample", "result:success"}},
		{Metric: "gauge", Name: "check.rows", Rate: 1, Value: 3,
			Tags: []string{"db.entity:user_achievements"}},
		{Metric: "count", Name: "warning", Rate: 1, ValueInt: 1, Tags: []string{"type:o11y"}},
		{Metric: "count", Name: "check.step", Rate: 1, ValueInt: 1, Tags: []string{"db.entity:missing"}},
	}, cmpNonZeroValue))
}

func TestHoneycomb_Results(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    []string
		notWant string
	}{
		{
			name:    "success",
			want:    []string{`"result":"success"`},
			notWant: `"error"`,
		},
		{
			name: "error",
			err:  errors.New("connection refused"),
			want: []string{`"result":"error"`, `"error":"connection refused"`},
		},
		{
			name:    "warning",
			err:     fmt.Errorf("%w: user_achievements", o11y.NewWarning("table not found")),
			want:    []string{`"result":"success"`, `"warning":"table not found: user_achievements"`},
			notWant: `"error"`,
		},
		{
			name:    "canceled",
			err:     context.Canceled,
			want:    []string{`"result":"canceled"`},
			notWant: `"error"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event string
			url := honeycombServer(t, func(e string) { event = e })
			h := New(Config{Dataset: "achievement-check", Host: url, SendTraces: true, Format: "none"})

			ctx := context.Background()
			_ = func() (err error) {
				_, span := h.StartSpan(ctx, "check: "+tt.name)
				defer o11y.End(span, &err)
				return tt.err
			}()
			h.Close(ctx)

			for _, w := range tt.want {
				assert.Check(t, cmp.Contains(event, w))
			}
			if tt.notWant != "" {
				assert.Check(t, !strings.Contains(event, tt.notWant), event)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	c := Config{SendTraces: true}
	assert.Check(t, cmp.ErrorContains(c.Validate(), "honeycomb_key"))

	c = Config{Format: "yaml"}
	assert.Check(t, cmp.ErrorContains(c.Validate(), "unknown o11y format"))

	c = Config{Format: "text"}
	assert.Check(t, c.Validate())
}

// honeycombServer accepts the zstd encoded batches libhoney sends.
func honeycombServer(t *testing.T, cb func(string)) string {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reader, err := zstd.NewReader(r.Body)
		if err != nil {
			t.Error("could not create zstd reader", err)
			return
		}
		defer reader.Close()
		defer r.Body.Close()

		b, err := io.ReadAll(reader)
		if err != nil {
			t.Error("could not read request", err)
		}
		cb(string(b))
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

// timings vary, so any positive value matches
var cmpNonZeroValue = gocmp.Options{gocmp.FilterPath(func(p gocmp.Path) bool {
	return p.Last().String() == ".Value"
}, gocmp.Comparer(func(a, b float64) bool {
	return (a > 0) == (b > 0)
}))}

type metricCall struct {
	Metric   string
	Name     string
	Value    float64
	ValueInt int64
	Tags     []string
	Rate     float64
}

type fakeMetrics struct {
	calls []metricCall
}

func (f *fakeMetrics) Close() error { return nil }

func (f *fakeMetrics) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, metricCall{Metric: "timer", Name: name, Value: value, Tags: tags, Rate: rate})
	return nil
}

func (f *fakeMetrics) Gauge(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, metricCall{Metric: "gauge", Name: name, Value: value, Tags: tags, Rate: rate})
	return nil
}

func (f *fakeMetrics) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, metricCall{Metric: "count", Name: name, ValueInt: value, Tags: tags, Rate: rate})
	return nil
}
