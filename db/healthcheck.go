package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyquest/achievement-check/o11y"
)

type HealthCheck struct {
	Name string
	DB   *sqlx.DB
}

// Version pings the server and returns the result of SELECT VERSION().
func (h *HealthCheck) Version(ctx context.Context) (version string, err error) {
	ctx, span := o11y.StartSpan(ctx, "db: health-check")
	defer o11y.End(span, &err)
	span.AddField("name", h.Name)

	if err = h.DB.PingContext(ctx); err != nil {
		_, err = mapError(err)
		return "", fmt.Errorf("postgreSQL health check failed on ping: %w", err)
	}
	if err = h.DB.GetContext(ctx, &version, `SELECT VERSION()`); err != nil {
		_, err = mapError(err)
		return "", fmt.Errorf("postgreSQL health check failed on select: %w", err)
	}
	span.AddField("version", version)
	return version, nil
}

func (h *HealthCheck) Gauges(_ context.Context) map[string]float64 {
	stats := h.DB.Stats()
	return map[string]float64{
		"open":                float64(stats.OpenConnections),
		"in_use":              float64(stats.InUse),
		"idle":                float64(stats.Idle),
		"wait_count":          float64(stats.WaitCount),
		"wait_duration":       float64(stats.WaitDuration / time.Millisecond),
		"max_lifetime_closed": float64(stats.MaxLifetimeClosed),
	}
}

// RecordGauges sends the connection gauges to the metrics provider in ctx.
func (h *HealthCheck) RecordGauges(ctx context.Context) {
	mp := o11y.FromContext(ctx).MetricsProvider()
	if mp == nil {
		return
	}
	tags := []string{"db:" + h.Name}
	for name, val := range h.Gauges(ctx) {
		_ = mp.Gauge("db."+name, val, tags, 1)
	}
}
