package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNilInstrumentsRecordNothing(t *testing.T) {
	var i *Instruments
	ctx := context.Background()

	assert.NotPanics(t, func() {
		i.GenerationCall(ctx, "summarizer")
		i.CacheHit(ctx)
		i.ReplyFailure(ctx, "grouper", "schema")
		i.StageDuration(ctx, "group", time.Second)
	})
}

func TestNewOnNoopMeter(t *testing.T) {
	i, err := New(noop.NewMeterProvider().Meter(MeterName))
	require.NoError(t, err)
	require.NotNil(t, i)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		i.GenerationCall(ctx, "summarizer")
		i.CacheHit(ctx)
		i.ReplyFailure(ctx, "summarizer", "parse")
		i.StageDuration(ctx, "summarize", 1500*time.Millisecond)
	})
}

func TestGlobal(t *testing.T) {
	i, err := Global()
	require.NoError(t, err)
	assert.NotNil(t, i)
}
