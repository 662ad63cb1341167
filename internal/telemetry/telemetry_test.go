package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/apc/internal/telemetry"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, telemetry.ParseLevel(in), "level %q", in)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := telemetry.NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	cli, err := telemetry.NewCLILogger("error")
	require.NoError(t, err)
	assert.False(t, cli.Core().Enabled(zapcore.WarnLevel))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	first := telemetry.NewMetrics()
	second := telemetry.NewMetrics()

	first.RecordRequest("create_delivery", "apc", "success", 0.12)
	first.RecordRequest("create_delivery", "apc", "success", 0.08)
	first.RecordError("apc", "upstream", "ERROR")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.RequestsTotal.WithLabelValues("create_delivery", "apc", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.CarrierErrors.WithLabelValues("apc", "upstream", "ERROR")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.RequestsTotal.WithLabelValues("create_delivery", "apc", "success")))
}

func TestMetrics_Handler(t *testing.T) {
	m := telemetry.NewMetrics()
	m.RecordRequest("track", "apc", "error", 0.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `apc_requests_total{carrier="apc",operation="track",status="error"} 1`)
	assert.Contains(t, string(body), "apc_request_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitTracer(t *testing.T) {
	tracer, shutdown, err := telemetry.InitTracer(context.Background(), "http://127.0.0.1:1", "apc-test", "0.0.0")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestTracer_Global(t *testing.T) {
	tracer := telemetry.Tracer("apc-test")
	require.NotNil(t, tracer)

	assert.NotPanics(t, func() {
		_, span := tracer.Start(context.Background(), "global")
		span.End()
	})
}
