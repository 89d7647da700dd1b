package telemetry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
)

type TelemetrySuite struct {
	suite.Suite
	ctx context.Context
}

func (s *TelemetrySuite) SetupTest() {
	s.ctx = context.Background()
}

func TestTelemetrySuite(t *testing.T) {
	suite.Run(t, new(TelemetrySuite))
}

func (s *TelemetrySuite) TestNewDebug() {
	tel, err := New(s.ctx, Config{
		ServiceName:    "subtract-server",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		Enabled:        true,
		Debug:          true,
		TraceWriter:    io.Discard,
		MetricWriter:   io.Discard,
	})
	s.Require().NoError(err)
	s.True(tel.IsEnabled())
	s.NotNil(tel.requestDuration)
	s.NotNil(tel.errorCounter)
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestNewDisabled() {
	tel, err := New(s.ctx, Config{ServiceName: "subtract-server"})
	s.Require().NoError(err)
	s.False(tel.IsEnabled())
}

func (s *TelemetrySuite) TestNewNoop() {
	tel := NewNoop()
	s.False(tel.IsEnabled())

	_, span := tel.StartSpan(s.ctx, "calculator/subtract")
	s.False(span.IsRecording())
	span.End()

	// Must not panic without a reader.
	tel.RecordRequest(s.ctx, time.Millisecond, "subtract", "200", nil)
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestNewFromEnv() {
	s.T().Setenv(EnvEnabled, "false")
	tel, err := NewFromEnv(s.ctx, "subtract-server", "1.0.0")
	s.Require().NoError(err)
	s.False(tel.IsEnabled())

	s.T().Setenv(EnvEnabled, "true")
	s.T().Setenv(EnvDebug, "1")
	tel, err = NewFromEnv(s.ctx, "subtract-server", "1.0.0")
	s.Require().NoError(err)
	s.True(tel.IsEnabled())
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestGetEnvOrDefault() {
	s.T().Setenv("CALC_TEST_ENV", "value")
	s.Equal("value", getEnvOrDefault("CALC_TEST_ENV", "default"))

	s.T().Setenv("CALC_TEST_ENV", "")
	s.Equal("default", getEnvOrDefault("CALC_TEST_ENV", "default"))
	s.Equal("default", getEnvOrDefault("CALC_TEST_ENV_UNSET", "default"))
}

func (s *TelemetrySuite) TestGetEnvBool() {
	s.T().Setenv("CALC_TEST_BOOL", "yes")
	s.False(getEnvBool("CALC_TEST_BOOL"))

	s.T().Setenv("CALC_TEST_BOOL", "TRUE")
	s.True(getEnvBool("CALC_TEST_BOOL"))
}

func (s *TelemetrySuite) TestStartSpan() {
	tel := NewTestTelemetry(s.T())

	ctx, span := tel.StartSpan(s.ctx, "calculator/subtract", trace.WithSpanKind(trace.SpanKindServer))
	s.True(trace.SpanContextFromContext(ctx).IsValid())
	span.End()

	spans := tel.Spans()
	s.Require().Len(spans, 1)
	s.Equal("calculator/subtract", spans[0].Name())
	s.Equal(trace.SpanKindServer, spans[0].SpanKind())
}

func (s *TelemetrySuite) TestRecordRequest() {
	tel := NewTestTelemetry(s.T())

	tel.RecordRequest(s.ctx, 100*time.Millisecond, "subtract", "200", nil)
	tel.RecordRequest(s.ctx, 200*time.Millisecond, "subtract", "400", errors.New("invalid request"))

	m, ok := tel.Metric(s.T(), "request_duration")
	s.Require().True(ok)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	s.Require().True(ok)

	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	s.Equal(uint64(2), count)

	m, ok = tel.Metric(s.T(), "error_count")
	s.Require().True(ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	s.Require().True(ok)
	s.Require().Len(sum.DataPoints, 1)
	s.Equal(int64(1), sum.DataPoints[0].Value)
}
