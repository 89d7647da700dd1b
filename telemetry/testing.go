package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry is an enabled Telemetry whose spans and metrics are kept in
// memory for assertions.
type TestTelemetry struct {
	*Telemetry
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry creates a TestTelemetry and shuts it down when t finishes.
// Unlike New it leaves the otel globals untouched.
func NewTestTelemetry(t *testing.T) *TestTelemetry {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel, err := newTelemetry(tp, mp)
	require.NoError(t, err)
	tel.enabled = true

	t.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
	})

	return &TestTelemetry{
		Telemetry: tel,
		spans:     spans,
		reader:    reader,
	}
}

// Spans returns the spans ended so far.
func (tt *TestTelemetry) Spans() []sdktrace.ReadOnlySpan {
	return tt.spans.Ended()
}

// Collect returns the metrics recorded so far.
func (tt *TestTelemetry) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.reader.Collect(context.Background(), &rm))
	return rm
}

// Metric returns the recorded metric called name, or false if there is none.
func (tt *TestTelemetry) Metric(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()

	rm := tt.Collect(t)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}
