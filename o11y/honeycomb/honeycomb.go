// Package honeycomb implements o11y tracing on top of the honeycomb beeline.
//
// Every span is written to a local writer (text, colour or json) and, when enabled,
// shipped to a honeycomb dataset as well.
package honeycomb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/studyquest/achievement-check/o11y"
)

type Config struct {
	Host        string
	Dataset     string
	Key         string
	Format      string
	SendTraces  bool // ship spans to the honeycomb API as well as the local writer
	Sender      transmission.Sender
	Writer      io.Writer
	Metrics     o11y.ClosableMetricsProvider
	ServiceName string

	Debug bool
}

func (c *Config) Validate() error {
	// The key is only needed when sending traces with the default Sender
	if c.SendTraces && c.Key == "" && c.Sender == nil {
		return errors.New("honeycomb_key key required for honeycomb")
	}
	switch c.Format {
	case "", "text", "color", "colour", "json", "none":
	default:
		return fmt.Errorf("unknown o11y format %q", c.Format)
	}
	return nil
}

func (c *Config) sender() transmission.Sender {
	w := c.Writer
	if w == nil {
		w = os.Stderr
	}

	s := &MultiSender{}
	if c.SendTraces {
		remote := c.Sender
		if remote == nil {
			remote = &transmission.Honeycomb{
				MaxBatchSize:         libhoney.DefaultMaxBatchSize,
				BatchTimeout:         libhoney.DefaultBatchTimeout,
				MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
				PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
				UserAgentAddition:    c.ServiceName,
			}
		}
		s.Senders = append(s.Senders, remote)
	}

	switch c.Format {
	case "text":
		s.Senders = append(s.Senders, &TextSender{w: w})
	case "colour", "color":
		s.Senders = append(s.Senders, &TextSender{w: w, colour: true})
	case "none":
	default:
		s.Senders = append(s.Senders, &transmission.WriterSender{W: w})
	}

	if len(s.Senders) == 0 {
		// libhoney refuses to start without a sender
		s.Senders = append(s.Senders, &transmission.DiscardSender{})
	}
	return s
}

// metricKey is the span field that carries recorded metrics to the presend hook.
const metricKey = "__MAGIC_METRIC_KEY__"

type honeycomb struct {
	metrics o11y.ClosableMetricsProvider
}

// New initialises the beeline and returns a provider that emits spans to the
// configured writer and, optionally, to honeycomb.
func New(conf Config) o11y.Provider {
	// beeline ignores this error in its own constructor, so we do too
	hc, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		Dataset:      conf.Dataset,
		APIHost:      conf.Host,
		Transmission: conf.sender(),
	})

	beeline.Init(beeline.Config{
		Client:      hc,
		Debug:       conf.Debug,
		WriteKey:    conf.Key,
		ServiceName: conf.ServiceName,
		PresendHook: presend(conf.Metrics),
	})

	return &honeycomb{metrics: conf.Metrics}
}

func presend(mp o11y.MetricsProvider) func(map[string]interface{}) {
	return func(fields map[string]interface{}) {
		metrics, _ := fields[metricKey].([]o11y.Metric)
		delete(fields, metricKey)
		if mp == nil {
			return
		}

		tag := []string{fmtTag("type", "o11y")}
		if _, ok := fields["error"]; ok {
			_ = mp.Count("error", 1, tag, 1)
		}
		if _, ok := fields["warning"]; ok {
			_ = mp.Count("warning", 1, tag, 1)
		}

		for _, m := range metrics {
			sendMetric(mp, m, fields)
		}
	}
}

func sendMetric(mp o11y.MetricsProvider, m o11y.Metric, fields map[string]interface{}) {
	tags := tagsFromFields(m.TagFields, fields)
	switch m.Type {
	case o11y.MetricTimer:
		val, ok := getField(m.Field, fields)
		if !ok {
			return
		}
		ms, ok := toMilliSecond(val)
		if !ok {
			panic(m.Field + " can not be coerced to milliseconds")
		}
		_ = mp.TimeInMilliseconds(m.Name, ms, tags, 1)
	case o11y.MetricCount:
		var n int64 = 1
		if m.Field != "" {
			val, ok := getField(m.Field, fields)
			if !ok {
				return
			}
			if n, ok = toInt64(val); !ok {
				panic(m.Field + " can not be coerced to int")
			}
		}
		_ = mp.Count(m.Name, n, tags, 1)
	case o11y.MetricGauge:
		val, ok := getField(m.Field, fields)
		if !ok {
			return
		}
		f, ok := toFloat64(val)
		if !ok {
			panic(m.Field + " can not be coerced to float")
		}
		_ = mp.Gauge(m.Name, f, tags, 1)
	}
}

func tagsFromFields(names []string, fields map[string]interface{}) []string {
	tags := make([]string, 0, len(names))
	for _, name := range names {
		if val, ok := getField(name, fields); ok {
			tags = append(tags, fmtTag(name, val))
		}
	}
	return tags
}

// getField also looks for the app. prefixed name that span.AddField writes.
func getField(name string, fields map[string]interface{}) (interface{}, bool) {
	if val, ok := fields[name]; ok {
		return val, true
	}
	val, ok := fields["app."+name]
	return val, ok
}

func toInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func toFloat64(val interface{}) (float64, bool) {
	if f, ok := val.(float64); ok {
		return f, true
	}
	if i, ok := toInt64(val); ok {
		return float64(i), true
	}
	return 0, false
}

func toMilliSecond(val interface{}) (float64, bool) {
	if f, ok := toFloat64(val); ok {
		return f, true
	}
	switch d := val.(type) {
	case time.Duration:
		return float64(d.Milliseconds()), true
	case *time.Duration:
		return float64(d.Milliseconds()), true
	}
	return 0, false
}

func fmtTag(name string, val interface{}) string {
	return fmt.Sprintf("%s:%v", name, val)
}

func (h *honeycomb) AddGlobalField(key string, val interface{}) {
	mustValidateKey(key)
	client.AddField(key, val)
}

func (h *honeycomb) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	var s *trace.Span
	if parent := trace.GetSpanFromContext(ctx); parent != nil {
		ctx, s = parent.CreateAsyncChild(ctx)
	} else {
		// no trace yet, so the root span of a new trace becomes this span
		ctx, _ = trace.NewTrace(ctx, nil)
		s = trace.GetSpanFromContext(ctx)
	}
	s.AddField("name", name)
	return ctx, WrapSpan(s)
}

func (h *honeycomb) GetSpan(ctx context.Context) o11y.Span {
	return WrapSpan(trace.GetSpanFromContext(ctx))
}

func (h *honeycomb) AddField(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddField(ctx, key, val)
}

func (h *honeycomb) AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddFieldToTrace(ctx, key, val)
}

func (h *honeycomb) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := beeline.StartSpan(ctx, name)
	span := WrapSpan(s)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	span.End()
}

func (h *honeycomb) Close(_ context.Context) {
	beeline.Close()
	if h.metrics != nil {
		_ = h.metrics.Close()
	}
}

func (h *honeycomb) MetricsProvider() o11y.MetricsProvider {
	return h.metrics
}

func WrapSpan(s *trace.Span) o11y.Span {
	if s == nil {
		return nil
	}
	return &span{span: s}
}

type span struct {
	span    *trace.Span
	metrics []o11y.Metric
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	s.span.AddField(key, val)
}

func (s *span) RecordMetric(metric o11y.Metric) {
	s.metrics = append(s.metrics, metric)
	// the presend hook picks these up from the span fields
	s.span.AddField(metricKey, s.metrics)
}

func (s *span) End() {
	s.span.Send()
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}
