package metrics

import (
	"context"

	model "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// This interface provides functionality to integrate with tracing systems like
// OpenTelemetry, enabling visualization of run and job execution flows.
type Tracer interface {
	// StartRunSpan starts a Span covering one simulation run.
	//
	// ctx: The parent context.
	// runID: The run identifier.
	//
	// Returns: A context with the new Span set, and a function to end the Span.
	//          It is recommended to call the returned function in a defer statement.
	StartRunSpan(ctx context.Context, runID string) (context.Context, func())

	// StartJobSpan starts a Span covering one job's active window.
	//
	// ctx: The parent context (typically a context with a run Span).
	// jobIndex: The job's position in the schedule table.
	// job: The schedule entry being traced.
	//
	// Returns: A context with the new Span set, and a function to end the Span.
	StartJobSpan(ctx context.Context, jobIndex int, job model.Job) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// ctx: The context with the current Span.
	// module: The name of the component where the error occurred (e.g., "plume", "scheduler").
	// err: The error to record.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// ctx: The context with the current Span.
	// name: The name of the event (e.g., "job_abort", "eclipse_entry").
	// attributes: Additional attributes to associate with the event.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
