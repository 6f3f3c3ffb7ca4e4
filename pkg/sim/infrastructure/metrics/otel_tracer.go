package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	config "github.com/spaceforge/forgesim/pkg/sim/core/config"
	model "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	metrics "github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	exception "github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	logger "github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const tracerModule = "tracer"

// OpenTelemetryTracer is an implementation of metrics.Tracer backed by the
// OpenTelemetry SDK. When tracing is disabled or no endpoint is configured,
// spans are created but never exported.
type OpenTelemetryTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOpenTelemetryTracer builds the tracer, wiring an OTLP gRPC exporter when
// one is configured.
func NewOpenTelemetryTracer(cfg config.TracingConfig) (*OpenTelemetryTracer, error) {
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", "forgesim"),
	)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled && cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, exception.NewFatalError(tracerModule, "failed to create OTLP trace exporter for '"+cfg.OTLPEndpoint+"'", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Trace export enabled to %s.", cfg.OTLPEndpoint)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &OpenTelemetryTracer{
		provider: provider,
		tracer:   provider.Tracer("forgesim"),
	}, nil
}

// Shutdown flushes and stops the span processors.
func (t *OpenTelemetryTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StartRunSpan starts a span covering one simulation run.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, runID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "forgesim.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	return ctx, func() { span.End() }
}

// StartJobSpan starts a span covering one job's active window.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, jobIndex int, job model.Job) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "forgesim.job",
		trace.WithAttributes(
			attribute.Int("job.index", jobIndex),
			attribute.Int("job.start_tick", job.StartTick),
			attribute.Int("job.end_tick", job.EndTick),
			attribute.Float64("job.target_flux", job.TargetFlux),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
