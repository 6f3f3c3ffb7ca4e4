// Package ports defines the interfaces through which the simulation core talks
// to its collaborators: illumination sources, the external plume solver bridge,
// dose accumulation, diagnostic sinks and the run-log repository.
// Implementations live under pkg/sim/infrastructure and pkg/sim/orbit.
package ports

import (
	"context"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
)

// Illumination reports how much sunlight reaches the solar array on a tick.
type Illumination interface {
	// SunlitFraction returns the illumination scale in [0, 1] at simulation
	// time t (seconds). Zero means full eclipse.
	SunlitFraction(t float64) float64
}

// PlumeSolver is the coupling surface to the external flow solver.
// Parameter writes take effect on the next Advance after MarkDirty.
type PlumeSolver interface {
	// SetParameter stages a named scalar for the solver's input deck.
	SetParameter(name string, value float64)
	// MarkDirty forces the input deck to be rewritten and reloaded before
	// the next Advance.
	MarkDirty()
	// Advance runs the solver for one coupling block.
	Advance(ctx context.Context, steps int) error
	// ReadState returns the latest wafer flux (cm^-2 s^-1), effusion cell
	// temperature (K) and chamber density from the solver's diagnostics.
	// Missing or non-finite values carry the previous reading forward.
	ReadState() (flux, tempK, density float64, err error)
}

// DoseSink receives beam state updates and accumulates deposited dose.
type DoseSink interface {
	// SetBeamState records whether the beam is on, which job drives it and
	// the current wafer flux. Takes effect on the sink's next tick.
	SetBeamState(jobIndex int, beamOn bool, flux float64)
	// MarkJobAborted tags the given job's accumulated dose as suspect.
	MarkJobAborted(jobIndex int)
}

// Telemetry is the wide-row diagnostic sink. One logical stream per component;
// the column set of a stream is fixed by its first row.
type Telemetry interface {
	// LogWide appends one row to the named component stream.
	LogWide(component string, tick int, timeS float64, cols []string, vals []float64) error
	// Close flushes and releases all streams.
	Close() error
}

// RunLogRepository persists terminal job outcomes.
type RunLogRepository interface {
	// SaveJobRecord stores one terminal job outcome.
	SaveJobRecord(ctx context.Context, rec *model.JobExecutionRecord) error
	// FindJobRecords returns all records for a run, in insertion order.
	FindJobRecords(ctx context.Context, runID string) ([]model.JobExecutionRecord, error)
	// Close releases the underlying database handle.
	Close() error
}
