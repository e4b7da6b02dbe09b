package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	require.NoError(t, InitTelemetry(TelemetryConfig{Enabled: false}))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitTelemetry_UnknownExporter(t *testing.T) {
	err := InitTelemetry(TelemetryConfig{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trace exporter")
}

func TestInitTelemetry_Stdout(t *testing.T) {
	require.NoError(t, InitTelemetry(TelemetryConfig{Enabled: true, Exporter: "stdout", SampleRatio: 0.5}))
	defer func() {
		assert.NoError(t, Shutdown(context.Background()))
	}()

	ctx, span := StartSpan(context.Background(), "test.operation", attribute.String("symbol", "BTC"))
	assert.NotNil(t, ctx)
	assert.True(t, span.SpanContext().IsValid())
	EndSpan(span, nil)
}

func TestEndSpan_WithError(t *testing.T) {
	_, span := StartSpan(context.Background(), "test.failure")
	EndSpan(span, errors.New("boom"))
}
