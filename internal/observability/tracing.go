// Package observability wires OpenTelemetry tracing into Genkit.
//
// Spans are exported over OTLP HTTP to a local collector agent, which
// handles authentication, buffering and forwarding to whatever backend is
// configured. Tracing is optional: exporter setup failures disable tracing
// with a warning instead of failing startup.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultAgentHost is the default OTLP HTTP endpoint of a local agent.
const DefaultAgentHost = "localhost:4318"

// Config for trace export.
type Config struct {
	// AgentHost is the collector's OTLP HTTP endpoint (default localhost:4318).
	AgentHost string
	// Environment tags spans with the deployment environment.
	Environment string
	// ServiceName is the service name shown in the APM backend.
	ServiceName string
}

// SetupTracing registers an OTLP exporter with Genkit's TracerProvider and
// returns a shutdown function that flushes pending spans.
func SetupTracing(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads these when building its resource.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}
