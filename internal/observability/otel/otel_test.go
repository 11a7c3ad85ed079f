package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "disabled is always valid",
			cfg:     Config{Enabled: false, Protocol: "invalid", SampleRatio: -1},
			wantErr: false,
		},
		{
			name:    "valid otlphttp",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 0.5},
			wantErr: false,
		},
		{
			name:    "valid otlpgrpc",
			cfg:     Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 1.0},
			wantErr: false,
		},
		{
			name:    "invalid protocol",
			cfg:     Config{Enabled: true, Protocol: "invalid", SampleRatio: 1.0},
			wantErr: true,
		},
		{
			name:    "sample ratio out of range",
			cfg:     Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleContextRoundTrip(t *testing.T) {
	if From(context.Background()) != nil {
		t.Fatal("expected nil handle on bare context")
	}

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	handle := InitWithProvider(tp)

	ctx := WithHandle(context.Background(), handle)
	got := From(ctx)
	if got == nil {
		t.Fatal("expected handle from context")
	}

	_, span := got.Tracer.Start(ctx, "edupack.test")
	span.End()

	if len(exporter.GetSpans()) != 1 {
		t.Errorf("expected 1 recorded span, got %d", len(exporter.GetSpans()))
	}
}
