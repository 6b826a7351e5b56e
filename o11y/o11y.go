// Package o11y is the tracing, metrics and error reporting surface used across
// the checker. Code calls the package functions with a ctx, and the provider
// stored in it decides where events go.
package o11y

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"
)

// Provider is the tracing backend a check reports to. The honeycomb package
// implements it, and FromContext falls back to a no-op one.
type Provider interface {
	// AddGlobalField sets a field on every span the process sends, such as service or version.
	AddGlobalField(key string, val interface{})

	// StartSpan opens a child of the span in ctx, or a new trace when there is none.
	// Callers must End the span, normally through a deferred o11y.End(span, &err).
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// GetSpan returns the span in ctx, or nil.
	GetSpan(ctx context.Context) Span

	// AddField sets an "app." prefixed field on the span in ctx.
	AddField(ctx context.Context, key string, val interface{})

	// AddFieldToTrace sets an "app." prefixed field on the whole trace in ctx.
	AddFieldToTrace(ctx context.Context, key string, val interface{})

	// Log sends an event with no duration.
	Log(ctx context.Context, name string, fields ...Pair)

	// Close flushes pending events and metrics.
	Close(ctx context.Context)

	MetricsProvider() MetricsProvider
}

type Span interface {
	// AddField sets an "app." prefixed field.
	AddField(key string, val interface{})
	// AddRawField sets a field as named. Plumbing uses it for keys like
	// db.entity or result.
	AddRawField(key string, val interface{})
	// RecordMetric derives metric from the span's fields when it ends.
	RecordMetric(metric Metric)
	// End sends the span. It must not be used afterwards.
	End()
}

type MetricType string

const (
	MetricTimer = "timer"
	MetricGauge = "gauge"
	MetricCount = "count"
)

// Metric names a statsd metric and the span fields its value and tags come from.
type Metric struct {
	Type      MetricType
	Name      string
	Field     string
	TagFields []string
}

// Timing records the span duration in milliseconds.
func Timing(name string, tagFields ...string) Metric {
	return Metric{Type: MetricTimer, Name: name, Field: "duration_ms", TagFields: tagFields}
}

// Incr counts one per span.
func Incr(name string, tagFields ...string) Metric {
	return Metric{Type: MetricCount, Name: name, TagFields: tagFields}
}

// Gauge reports the numeric span field valueField.
func Gauge(name, valueField string, tagFields ...string) Metric {
	return Metric{Type: MetricGauge, Name: name, Field: valueField, TagFields: tagFields}
}

// MetricsProvider is the subset of the statsd client the checker uses.
type MetricsProvider interface {
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

type ClosableMetricsProvider interface {
	MetricsProvider
	io.Closer
}

type providerKey struct{}

// WithProvider stores p in a child of ctx.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider in ctx, or a no-op provider.
func FromContext(ctx context.Context) Provider {
	provider, ok := ctx.Value(providerKey{}).(Provider)
	if !ok {
		return defaultProvider
	}
	return provider
}

// Log emits a point-in-time event through the provider in ctx.
func Log(ctx context.Context, name string, fields ...Pair) {
	FromContext(ctx).Log(ctx, name, fields...)
}

// LogError emits a point-in-time event carrying err as its result.
func LogError(ctx context.Context, name string, err error, fields ...Pair) {
	_, span := StartSpan(ctx, name)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	AddResultToSpan(span, err)
	span.End()
}

// StartSpan opens a span on the provider in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return FromContext(ctx).StartSpan(ctx, name)
}

// AddField sets a field on the span in ctx.
func AddField(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).AddField(ctx, key, val)
}

// AddFieldToTrace sets a field on every span of the trace in ctx.
func AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).AddFieldToTrace(ctx, key, val)
}

// End records the outcome held in *err and sends the span. Defer it against a
// named error return:
//
//	ctx, span := o11y.StartSpan(ctx, "check: columns")
//	defer o11y.End(span, &err)
func End(span Span, err *error) {
	var actualErr error
	if err != nil {
		actualErr = *err
	}
	AddResultToSpan(span, actualErr)
	span.End()
}

// AddResultToSpan sets result to success, error or canceled. Warnings keep
// result=success and are recorded under warning instead of error.
func AddResultToSpan(span Span, err error) {
	switch {
	case IsWarning(err):
		span.AddRawField("warning", err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// An interrupted or timed out check is not a fault in the code being traced.
		span.AddRawField("result", "canceled")
		span.AddRawField("warning", err.Error())
		return
	case err != nil:
		span.AddRawField("result", "error")
		span.AddRawField("error", err.Error())
		return
	}
	span.AddRawField("result", "success")
}

// Pair is one field handed to Log or LogError.
type Pair struct {
	Key   string
	Value interface{}
}

// Field builds a Pair.
func Field(key string, value interface{}) Pair {
	return Pair{Key: key, Value: value}
}

// HandlePanic records a recovered panic on the span and, when the provider in ctx
// reports to rollbar, forwards it there too.
func HandlePanic(ctx context.Context, span Span, panic interface{}) (err error) {
	err = fmt.Errorf("panic handled: %+v", panic)
	span.AddRawField("panic", panic)
	span.AddRawField("has_panicked", "true")
	span.AddRawField("stack", string(debug.Stack()))
	span.RecordMetric(Incr("panics", "name"))

	rollable, ok := FromContext(ctx).(rollbarAble)
	if !ok {
		return err
	}
	rollable.RollBarClient().LogPanic(panic, true)
	return err
}

// ReportError forwards err to rollbar when the provider in ctx is configured for it.
// Warnings and cancellations are never reported.
func ReportError(ctx context.Context, err error) {
	if err == nil || DontErrorTrace(err) {
		return
	}
	if rollable, ok := FromContext(ctx).(rollbarAble); ok {
		rollable.RollBarClient().ErrorWithLevel(rollbar.ERR, err)
	}
}

type rollbarAble interface {
	RollBarClient() *rollbar.Client
}

var defaultProvider = &noopProvider{}

type noopProvider struct{}

func (c *noopProvider) AddGlobalField(string, interface{}) {}

func (c *noopProvider) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (c *noopProvider) GetSpan(context.Context) Span {
	return &noopSpan{}
}

func (c *noopProvider) AddField(context.Context, string, interface{}) {}

func (c *noopProvider) AddFieldToTrace(context.Context, string, interface{}) {}

func (c *noopProvider) Close(context.Context) {}

func (c *noopProvider) Log(context.Context, string, ...Pair) {}

func (c *noopProvider) MetricsProvider() MetricsProvider {
	return &statsd.NoOpClient{}
}

type noopSpan struct{}

func (s *noopSpan) AddField(key string, val interface{})    {}
func (s *noopSpan) AddRawField(key string, val interface{}) {}
func (s *noopSpan) RecordMetric(metric Metric)              {}
func (s *noopSpan) End()                                    {}
