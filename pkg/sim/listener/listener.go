// Package listener implements job lifecycle listeners: logging, trace events
// and a composite that fans out to every registered listener.
package listener

import (
	"context"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// LoggingListener writes job transitions to the application log.
type LoggingListener struct{}

// NewLoggingListener creates a new LoggingListener.
func NewLoggingListener() *LoggingListener {
	return &LoggingListener{}
}

// OnJobStart logs the activation.
func (l *LoggingListener) OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	logger.Infof("Listener: job %d active (window [%d, %d], warmup %d ticks).",
		jobIndex, job.StartTick, job.EndTick, state.WarmupTicks)
}

// OnJobComplete logs the completion.
func (l *LoggingListener) OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	logger.Infof("Listener: job %d completed.", jobIndex)
}

// OnJobAbort logs the abort with the gate and streak detail.
func (l *LoggingListener) OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int) {
	logger.Warnf("Listener: job %d aborted on tick %d (gate %s, underflux %d, temp-miss %d).",
		jobIndex, tick, state.Gate, state.UnderfluxStreak, state.TempMissStreak)
}

var _ ports.JobLifecycleListener = (*LoggingListener)(nil)

// TracingListener records job transitions as span events on the current trace.
type TracingListener struct {
	tracer metrics.Tracer
}

// NewTracingListener creates a new TracingListener.
func NewTracingListener(tracer metrics.Tracer) *TracingListener {
	return &TracingListener{tracer: tracer}
}

// OnJobStart records an activation event.
func (l *TracingListener) OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	l.tracer.RecordEvent(ctx, "job_start", map[string]interface{}{
		"job_index":    jobIndex,
		"start_tick":   job.StartTick,
		"end_tick":     job.EndTick,
		"warmup_ticks": state.WarmupTicks,
	})
}

// OnJobComplete records a completion event.
func (l *TracingListener) OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	l.tracer.RecordEvent(ctx, "job_complete", map[string]interface{}{
		"job_index": jobIndex,
	})
}

// OnJobAbort records an abort event with the gate detail.
func (l *TracingListener) OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int) {
	l.tracer.RecordEvent(ctx, "job_abort", map[string]interface{}{
		"job_index":        jobIndex,
		"tick":             tick,
		"gate":             string(state.Gate),
		"underflux_streak": state.UnderfluxStreak,
		"temp_miss_streak": state.TempMissStreak,
	})
}

var _ ports.JobLifecycleListener = (*TracingListener)(nil)

// CompositeListener fans out every notification to its children in order.
type CompositeListener struct {
	listeners []ports.JobLifecycleListener
}

// NewCompositeListener creates a composite over the given listeners.
func NewCompositeListener(listeners ...ports.JobLifecycleListener) *CompositeListener {
	return &CompositeListener{listeners: listeners}
}

// OnJobStart notifies every child.
func (c *CompositeListener) OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	for _, l := range c.listeners {
		l.OnJobStart(ctx, jobIndex, job, state)
	}
}

// OnJobComplete notifies every child.
func (c *CompositeListener) OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
	for _, l := range c.listeners {
		l.OnJobComplete(ctx, jobIndex, job, state)
	}
}

// OnJobAbort notifies every child.
func (c *CompositeListener) OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int) {
	for _, l := range c.listeners {
		l.OnJobAbort(ctx, jobIndex, job, state, tick)
	}
}

var _ ports.JobLifecycleListener = (*CompositeListener)(nil)
