// Package o11y wires the o11y provider from command line configuration.
package o11y

import (
	"context"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"

	"github.com/studyquest/achievement-check/config/secret"
	"github.com/studyquest/achievement-check/o11y"
	"github.com/studyquest/achievement-check/o11y/honeycomb"
)

type Config struct {
	Statsd            string
	RollbarToken      secret.String
	RollbarEnv        string
	RollbarServerRoot string
	HoneycombEnabled  bool
	HoneycombDataset  string
	HoneycombKey      secret.String
	Format            string
	Version           string
	Service           string
	StatsNamespace    string

	// Optional
	Writer          io.Writer
	Mode            string
	Debug           bool
	RollbarDisabled bool
}

// Setup initialises the o11y system and returns a context carrying the provider,
// along with the cleanup func that flushes it.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	conf := honeycomb.Config{
		Dataset:     o.HoneycombDataset,
		Key:         o.HoneycombKey.Raw(),
		Format:      o.Format,
		SendTraces:  o.HoneycombEnabled,
		Writer:      o.Writer,
		ServiceName: o.Service,
		Debug:       o.Debug,
	}
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}

	hostname, _ := os.Hostname()

	metrics, err := statsdClient(o, hostname)
	if err != nil {
		return nil, nil, err
	}
	conf.Metrics = metrics

	provider := honeycomb.New(conf)
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)
	if o.Mode != "" {
		provider.AddGlobalField("mode", o.Mode)
	}

	if o.RollbarToken != "" {
		client := rollbar.NewAsync(o.RollbarToken.Raw(), o.RollbarEnv, o.Version, hostname, o.RollbarServerRoot)
		client.SetEnabled(!o.RollbarDisabled)
		provider = rollbarProvider{
			Provider: provider,
			client:   client,
		}
	}

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func statsdClient(o Config, hostname string) (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}
	tags := []string{
		"service:" + o.Service,
		"version:" + o.Version,
		"hostname:" + hostname,
	}
	if o.Mode != "" {
		tags = append(tags, "mode:"+o.Mode)
	}
	return statsd.New(o.Statsd,
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags(tags),
		statsd.WithoutTelemetry(),
	)
}

// rollbarProvider exposes the rollbar client to o11y.ReportError and o11y.HandlePanic.
type rollbarProvider struct {
	o11y.Provider
	client *rollbar.Client
}

func (p rollbarProvider) Close(ctx context.Context) {
	p.Provider.Close(ctx)
	_ = p.client.Close()
}

func (p rollbarProvider) RollBarClient() *rollbar.Client {
	return p.client
}
