// Package telemetry defines the OpenTelemetry instruments recorded by the pipeline.
// Nothing is exported unless the host process installs a meter provider.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "ideaforge"

// Instruments holds the pipeline counters and histograms. A nil *Instruments is valid
// and records nothing.
type Instruments struct {
	generationCalls metric.Int64Counter
	cacheHits       metric.Int64Counter
	replyFailures   metric.Int64Counter
	stageDuration   metric.Float64Histogram
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Instruments, error) {
	calls, err := meter.Int64Counter("ideaforge.generation.calls",
		metric.WithDescription("Generation service requests"))
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Counter("ideaforge.cache.hits",
		metric.WithDescription("Summaries served from the cache"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("ideaforge.reply.failures",
		metric.WithDescription("Generation replies rejected by parsing or validation"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("ideaforge.stage.duration",
		metric.WithDescription("Pipeline stage wall time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		generationCalls: calls,
		cacheHits:       hits,
		replyFailures:   failures,
		stageDuration:   duration,
	}, nil
}

// Global creates the instruments on the global meter provider.
func Global() (*Instruments, error) {
	return New(otel.Meter(MeterName))
}

// GenerationCall counts one request sent with the given persona.
func (i *Instruments) GenerationCall(ctx context.Context, persona string) {
	if i == nil {
		return
	}
	i.generationCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("persona", persona)))
}

// CacheHit counts one cached summary.
func (i *Instruments) CacheHit(ctx context.Context) {
	if i == nil {
		return
	}
	i.cacheHits.Add(ctx, 1)
}

// ReplyFailure counts one rejected reply.
func (i *Instruments) ReplyFailure(ctx context.Context, persona, reason string) {
	if i == nil {
		return
	}
	i.replyFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("persona", persona),
		attribute.String("reason", reason),
	))
}

// StageDuration records how long a stage ran.
func (i *Instruments) StageDuration(ctx context.Context, stage string, d time.Duration) {
	if i == nil {
		return
	}
	i.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}
