// Package metrics provides the Prometheus implementation of the core
// MetricRecorder and the OpenTelemetry implementation of the core Tracer.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	metrics "github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	logger "github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Tick metrics
	tickCounter      prometheus.Counter
	busAddedWatts    prometheus.Gauge
	busRequestedW    prometheus.Gauge
	busGrantedW      prometheus.Gauge
	batteryChargeWh  prometheus.Gauge
	solarOutputWatts prometheus.Gauge

	// Power metrics
	grantRatio *prometheus.GaugeVec

	// Job metrics
	jobStatusCounter *prometheus.CounterVec
	jobAbortCounter  *prometheus.CounterVec

	// Generic durations
	durationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		tickCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forgesim_ticks_total",
			Help: "Total number of completed simulation ticks.",
		}),
		busAddedWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgesim_bus_added_watts",
			Help: "Generation pushed onto the power bus in the latest tick.",
		}),
		busRequestedW: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgesim_bus_requested_watts",
			Help: "Total draw requests on the power bus in the latest tick.",
		}),
		busGrantedW: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgesim_bus_granted_watts",
			Help: "Total power granted by the bus in the latest tick.",
		}),
		batteryChargeWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgesim_battery_charge_wh",
			Help: "Battery stored energy after settlement.",
		}),
		solarOutputWatts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forgesim_solar_output_watts",
			Help: "Solar array electrical output in the latest tick.",
		}),
		grantRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forgesim_grant_ratio",
			Help: "Granted/requested power ratio per consumer in the latest tick.",
		}, []string{"consumer"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgesim_job_status_total",
			Help: "Total job state transitions by status.",
		}, []string{"status"}),
		jobAbortCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forgesim_job_abort_total",
			Help: "Total job aborts by health gate.",
		}, []string{"gate"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgesim_operation_duration_seconds",
			Help:    "Duration of named simulation operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(r.tickCounter)
	registry.MustRegister(r.busAddedWatts)
	registry.MustRegister(r.busRequestedW)
	registry.MustRegister(r.busGrantedW)
	registry.MustRegister(r.batteryChargeWh)
	registry.MustRegister(r.solarOutputWatts)
	registry.MustRegister(r.grantRatio)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.jobAbortCounter)
	registry.MustRegister(r.durationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// ServeMetrics exposes /metrics on the given address in a background goroutine.
func (r *PrometheusRecorder) ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	go func() {
		logger.Infof("Prometheus metrics listening on %s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("Metrics listener failed: %v", err)
		}
	}()
}

// RecordTick records the completion of one engine tick.
func (r *PrometheusRecorder) RecordTick(ctx context.Context, snapshot *model.EngineSnapshot) {
	r.tickCounter.Inc()
	r.busAddedWatts.Set(snapshot.Bus.AddedW)
	r.busRequestedW.Set(snapshot.Bus.RequestedW)
	r.busGrantedW.Set(snapshot.Bus.GrantedW)
	r.solarOutputWatts.Set(snapshot.SolarOutputW)
}

// RecordPowerGrant records one draw request's grant ratio.
func (r *PrometheusRecorder) RecordPowerGrant(ctx context.Context, consumer string, requestedW, grantedW float64) {
	ratio := 1.0
	if requestedW > 0 {
		ratio = grantedW / requestedW
	}
	r.grantRatio.WithLabelValues(consumer).Set(ratio)
}

// RecordBatteryCharge records the battery's stored energy.
func (r *PrometheusRecorder) RecordBatteryCharge(ctx context.Context, chargeWh float64) {
	r.batteryChargeWh.Set(chargeWh)
}

// RecordJobStart records a job activation.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, jobIndex int) {
	r.jobStatusCounter.WithLabelValues(model.JobStatusActive.String()).Inc()
	logger.Debugf("Metrics: Job %d started.", jobIndex)
}

// RecordJobEnd records a job reaching a terminal state.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, jobIndex int, status model.JobStatus) {
	r.jobStatusCounter.WithLabelValues(status.String()).Inc()
	logger.Debugf("Metrics: Job %d ended with status %s.", jobIndex, status)
}

// RecordJobAbort records a health-gate abort.
func (r *PrometheusRecorder) RecordJobAbort(ctx context.Context, jobIndex int, gate model.AbortGate) {
	r.jobAbortCounter.WithLabelValues(string(gate)).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.durationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
