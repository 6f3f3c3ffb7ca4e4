package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/spaceforge/forgesim/pkg/sim/core/config"
	metrics "github.com/spaceforge/forgesim/pkg/sim/core/metrics"
)

// newMetricRecorder selects the Prometheus recorder, or the no-op recorder
// when metrics are disabled.
func newMetricRecorder(cfg *config.Config) metrics.MetricRecorder {
	if !cfg.ForgeSim.Metrics.Enabled {
		return metrics.NewNoOpMetricRecorder()
	}
	return NewPrometheusRecorder()
}

// newTracer adapts the root config for NewOpenTelemetryTracer.
func newTracer(cfg *config.Config) (*OpenTelemetryTracer, error) {
	return NewOpenTelemetryTracer(cfg.ForgeSim.Tracing)
}

// registerTracerShutdown flushes spans on application stop.
func registerTracerShutdown(lc fx.Lifecycle, t *OpenTelemetryTracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
}

// serveMetrics starts the /metrics listener when configured.
func serveMetrics(cfg *config.Config, recorder metrics.MetricRecorder) {
	if !cfg.ForgeSim.Metrics.Enabled || cfg.ForgeSim.Metrics.ListenAddress == "" {
		return
	}
	if prom, ok := recorder.(*PrometheusRecorder); ok {
		prom.ServeMetrics(cfg.ForgeSim.Metrics.ListenAddress)
	}
}

// Module is an Fx module that provides the metrics.MetricRecorder and
// metrics.Tracer implementations.
var Module = fx.Options(
	fx.Provide(newMetricRecorder),
	// Provide OpenTelemetryTracer as a core metrics.Tracer interface.
	fx.Provide(newTracer),
	fx.Provide(func(t *OpenTelemetryTracer) metrics.Tracer { return t }),
	fx.Invoke(registerTracerShutdown),
	fx.Invoke(serveMetrics),
)
