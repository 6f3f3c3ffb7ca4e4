package ports

import (
	"context"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
)

// JobLifecycleListener receives notifications at job state transitions.
// Implementations must be cheap and must not mutate the passed state.
type JobLifecycleListener interface {
	// OnJobStart is called on a job's inactive-to-active transition.
	OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState)
	// OnJobComplete is called when a job's window ends without an abort.
	OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState)
	// OnJobAbort is called on the tick a health gate fires.
	OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int)
}
