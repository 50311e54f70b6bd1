package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupTracing_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := SetupTracing(TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled tracing must not replace the global provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetupTracing_File(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := SetupTracing(TracingConfig{Enabled: true, Output: path, SampleRate: 1, Version: "test"})
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "interceptor.intercept")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "interceptor.intercept") {
		t.Errorf("span not exported: %s", data)
	}
	if !strings.Contains(string(data), "control-interceptor") {
		t.Errorf("service resource missing: %s", data)
	}
}

func TestSetupTracing_BadOutput(t *testing.T) {
	_, err := SetupTracing(TracingConfig{Enabled: true, Output: filepath.Join(t.TempDir(), "missing", "spans.json")})
	if err == nil {
		t.Error("SetupTracing() should fail for an unwritable output")
	}
}

func TestNewProvider_Sampling(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{rate: 1, want: 1},
		{rate: 0, want: 0},
	}

	for _, tt := range tests {
		exporter := tracetest.NewInMemoryExporter()
		provider := NewProvider(sdktrace.WithSyncer(exporter), TracingConfig{SampleRate: tt.rate})

		_, span := provider.Tracer("test").Start(context.Background(), "resolver.resolve")
		span.End()

		if got := len(exporter.GetSpans()); got != tt.want {
			t.Errorf("rate %v: exported %d spans, want %d", tt.rate, got, tt.want)
		}
		_ = provider.Shutdown(context.Background())
	}
}

func TestCreateSampler(t *testing.T) {
	if got := createSampler(0.5).Description(); !strings.HasPrefix(got, "TraceIDRatioBased") {
		t.Errorf("createSampler(0.5) = %s", got)
	}
	if got := createSampler(2).Description(); got != "AlwaysOnSampler" {
		t.Errorf("createSampler(2) = %s", got)
	}
	if got := createSampler(-1).Description(); got != "AlwaysOffSampler" {
		t.Errorf("createSampler(-1) = %s", got)
	}
}
