package metrics

import (
	"context"
	"time"

	model "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordTick does nothing.
func (r *NoOpMetricRecorder) RecordTick(ctx context.Context, snapshot *model.EngineSnapshot) {}

// RecordPowerGrant does nothing.
func (r *NoOpMetricRecorder) RecordPowerGrant(ctx context.Context, consumer string, requestedW, grantedW float64) {
}

// RecordBatteryCharge does nothing.
func (r *NoOpMetricRecorder) RecordBatteryCharge(ctx context.Context, chargeWh float64) {}

// RecordJobStart does nothing.
func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, jobIndex int) {}

// RecordJobEnd does nothing.
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, jobIndex int, status model.JobStatus) {
}

// RecordJobAbort does nothing.
func (r *NoOpMetricRecorder) RecordJobAbort(ctx context.Context, jobIndex int, gate model.AbortGate) {
}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartRunSpan starts a Span for a simulation run.
func (t *NoOpTracer) StartRunSpan(ctx context.Context, runID string) (context.Context, func()) {
	return ctx, func() {}
}

// StartJobSpan starts a Span for a job's active window.
func (t *NoOpTracer) StartJobSpan(ctx context.Context, jobIndex int, job model.Job) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError records an error in the current Span.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent records an event in the current Span.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
