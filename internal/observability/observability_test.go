package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "courtroom.turn", map[string]any{"session_id": "1a2b3c4d"})
	assert.NotNil(t, ctx)
	span.End()
}

func TestInit_Stdout(t *testing.T) {
	shutdown, err := Init(Config{Exporter: "stdout"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), "courtroom.generate", map[string]any{"role": "judge"})
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(Config{Exporter: "zipkin"}, nil)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "court-test")
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer abc, x-team=court")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "court-test", cfg.ServiceName)
	assert.Equal(t, "otlp", cfg.Exporter)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer abc", "x-team": "court"}, cfg.Headers)
}

func TestConvertToAttribute(t *testing.T) {
	tests := []struct {
		value any
		want  attribute.Value
	}{
		{"judge", attribute.StringValue("judge")},
		{3, attribute.IntValue(3)},
		{int64(4), attribute.Int64Value(4)},
		{0.5, attribute.Float64Value(0.5)},
		{true, attribute.BoolValue(true)},
		{1500 * time.Millisecond, attribute.Int64Value(1500)},
		{[]string{"a"}, attribute.StringValue("[a]")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, convertToAttribute("k", tt.value).Value)
	}
}
