// Package telemetry sets up OpenTelemetry tracing and metrics for the
// calculator servers and clients.
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xizhibei/go-calculator-rpc"

// Environment variables read by NewFromEnv.
const (
	EnvEnabled     = "OTEL_ENABLED"
	EnvDebug       = "OTEL_DEBUG"
	EnvEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvEnvironment = "OTEL_ENVIRONMENT"

	defaultEndpoint = "localhost:4317"
)

// Telemetry holds OpenTelemetry components
type Telemetry struct {
	tp              *sdktrace.TracerProvider
	mp              *sdkmetric.MeterProvider
	tracer          trace.Tracer
	meter           metric.Meter
	requestDuration metric.Float64Histogram
	errorCounter    metric.Int64Counter
	enabled         bool
}

// Config holds configuration for telemetry setup
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string

	// Enabled turns exporting on. A disabled config yields a no-op Telemetry.
	Enabled bool
	// Debug exports to TraceWriter and MetricWriter instead of OTLP.
	Debug bool

	TraceWriter  io.Writer
	MetricWriter io.Writer
}

// New creates a Telemetry from cfg and installs its providers and the W3C
// trace context propagator as the otel globals.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resource")
	}

	if cfg.TraceWriter == nil {
		cfg.TraceWriter = os.Stdout
	}
	if cfg.MetricWriter == nil {
		cfg.MetricWriter = os.Stdout
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = defaultEndpoint
	}

	var traceExporter sdktrace.SpanExporter
	if cfg.Debug {
		traceExporter, err = stdouttrace.New(
			stdouttrace.WithWriter(cfg.TraceWriter),
			stdouttrace.WithPrettyPrint(),
		)
	} else {
		traceExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	var metricExporter sdkmetric.Exporter
	if cfg.Debug {
		enc := json.NewEncoder(cfg.MetricWriter)
		enc.SetIndent("", "  ")

		metricExporter, err = stdoutmetric.New(
			stdoutmetric.WithEncoder(enc),
			stdoutmetric.WithoutTimestamps(),
		)
	} else {
		metricExporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create metric exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "request_duration"},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
					},
				},
			),
		),
	)
	otel.SetMeterProvider(mp)

	t, err := newTelemetry(tp, mp)
	if err != nil {
		return nil, err
	}
	t.enabled = true
	return t, nil
}

// NewFromEnv creates a Telemetry configured from the OTEL_* environment
// variables. Telemetry stays disabled unless OTEL_ENABLED is true.
func NewFromEnv(ctx context.Context, serviceName, serviceVersion string) (*Telemetry, error) {
	return New(ctx, Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    getEnvOrDefault(EnvEnvironment, "development"),
		OTLPEndpoint:   getEnvOrDefault(EnvEndpoint, defaultEndpoint),
		Enabled:        getEnvBool(EnvEnabled),
		Debug:          getEnvBool(EnvDebug),
	})
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// NewNoop creates a Telemetry that records nothing.
// Its providers are not installed globally.
func NewNoop() *Telemetry {
	res := resource.NewSchemaless(semconv.ServiceName("noop"))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.NeverSample()),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)

	t, err := newTelemetry(tp, mp)
	if err != nil {
		// Instruments of a meter provider without readers cannot fail.
		panic(err)
	}
	return t
}

func newTelemetry(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"request_duration",
		metric.WithDescription("Duration of RPC requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create request duration histogram")
	}

	errorCounter, err := meter.Int64Counter(
		"error_count",
		metric.WithDescription("Number of RPC errors"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create error counter")
	}

	return &Telemetry{
		tp:              tp,
		mp:              mp,
		tracer:          tp.Tracer(instrumentationName),
		meter:           meter,
		requestDuration: requestDuration,
		errorCounter:    errorCounter,
	}, nil
}

// IsEnabled reports whether the telemetry exports anything.
func (t *Telemetry) IsEnabled() bool {
	return t.enabled
}

// Shutdown flushes and stops the trace and meter providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.tp.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown trace provider")
	}
	if err := t.mp.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown meter provider")
	}
	return nil
}

// RecordRequest records the request duration and, when err is set, increments the error counter.
func (t *Telemetry) RecordRequest(ctx context.Context, duration time.Duration, method string, status string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("status", status),
	}

	t.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// StartSpan starts a new span and returns the context and span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
