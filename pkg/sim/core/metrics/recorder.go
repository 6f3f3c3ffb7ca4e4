package metrics

import (
	"context"
	"time"

	model "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
)

// MetricRecorder is an abstract interface for recording simulation metrics.
//
// This interface provides a standardized way to record tick-, power- and
// job-level events, which facilitates integration with different metrics
// backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordTick records the completion of one engine tick.
	//
	// ctx: The context for the operation.
	// snapshot: The diagnostic snapshot latched at the end of the tick.
	RecordTick(ctx context.Context, snapshot *model.EngineSnapshot)

	// RecordPowerGrant records one satisfied (or partially satisfied) draw request.
	//
	// ctx: The context for the operation.
	// consumer: The name of the requesting consumer (e.g., "heater_substrate").
	// requestedW: The requested power in watts.
	// grantedW: The granted power in watts.
	RecordPowerGrant(ctx context.Context, consumer string, requestedW, grantedW float64)

	// RecordBatteryCharge records the battery's stored energy after settlement.
	//
	// ctx: The context for the operation.
	// chargeWh: Stored energy in watt-hours.
	RecordBatteryCharge(ctx context.Context, chargeWh float64)

	// RecordJobStart records a job's inactive-to-active transition.
	//
	// ctx: The context for the operation.
	// jobIndex: The job's position in the schedule table.
	RecordJobStart(ctx context.Context, jobIndex int)

	// RecordJobEnd records a job reaching a terminal state.
	//
	// ctx: The context for the operation.
	// jobIndex: The job's position in the schedule table.
	// status: The terminal status (COMPLETED or ABORTED).
	RecordJobEnd(ctx context.Context, jobIndex int, status model.JobStatus)

	// RecordJobAbort records a health-gate abort.
	//
	// ctx: The context for the operation.
	// jobIndex: The job's position in the schedule table.
	// gate: The gate that fired (UNDERFLUX or TEMP_MISS).
	RecordJobAbort(ctx context.Context, jobIndex int, gate model.AbortGate)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "tick_duration", "plume_advance").
	// duration: The length of the duration to record.
	// tags: A map of additional tags or attributes to associate with the duration.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
