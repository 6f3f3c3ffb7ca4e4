// Package model defines the core domain types shared across the simulation runtime:
// the per-tick context, the job schedule entries and their runtime state machine,
// and the diagnostic projections latched by the engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TickContext carries the identity of one simulation tick.
// It is constructed once per tick, passed by value to every component,
// and never mutated after construction.
type TickContext struct {
	// TickIndex is the zero-based tick counter.
	TickIndex int
	// Time is seconds elapsed since the start of the run.
	Time float64
	// Dt is the tick duration in seconds, always positive.
	Dt float64
}

// JobStatus represents the state of a scheduled production job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusActive    JobStatus = "ACTIVE"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusAborted   JobStatus = "ABORTED"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal checks if the JobStatus represents a finished state.
// Aborted is terminal and permanent; an aborted job is never re-activated.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusAborted:
		return true
	default:
		return false
	}
}

// AbortGate identifies which health gate fired a job abort.
type AbortGate string

const (
	AbortGateNone      AbortGate = "NONE"
	AbortGateUnderflux AbortGate = "UNDERFLUX"
	AbortGateTempMiss  AbortGate = "TEMP_MISS"
)

// Job is one immutable row of the production schedule.
// A job is eligible for tick T iff StartTick <= T <= EndTick and it has not
// been aborted. At most one job is active at a time; the first match in table
// order wins.
type Job struct {
	// StartTick is the first tick of the job window (inclusive).
	StartTick int
	// EndTick is the last tick of the job window (inclusive).
	EndTick int
	// TargetFlux is the commanded wafer flux in cm^-2 s^-1, forwarded to the
	// external plume solver while the job runs.
	TargetFlux float64
	// HeaterPowerHint is the legacy commanded heater demand in watts.
	HeaterPowerHint float64
}

// Contains reports whether tick t falls inside the job window.
func (j Job) Contains(t int) bool {
	return t >= j.StartTick && t <= j.EndTick
}

// JobRuntimeState is the scheduler-owned mutable state of one job.
// It is created when the job first becomes active, reset on every
// inactive-to-active transition, and frozen (but retained) once aborted.
type JobRuntimeState struct {
	// Status is the job's position in the Pending -> Active -> {Completed, Aborted} machine.
	Status JobStatus
	// TicksSinceActivated counts ticks since the most recent activation.
	TicksSinceActivated int
	// UnderfluxStreak counts consecutive armed ticks with delivered/demanded
	// power below the flux fraction threshold.
	UnderfluxStreak int
	// TempMissStreak counts consecutive armed ticks with achieved/target
	// temperature below the tolerance fraction.
	TempMissStreak int
	// WarmupTicks is the physically derived grace window before arming.
	WarmupTicks int
	// ThermalProxyK is the target temperature derived from the job's
	// commanded heater power, used by the temperature-miss gate.
	ThermalProxyK float64
	// Gate records which gate fired the abort, if any.
	Gate AbortGate
	// LastHealthTick de-duplicates health evaluation within one tick.
	LastHealthTick int
}

// NewJobRuntimeState returns the state for a freshly activated job.
func NewJobRuntimeState() *JobRuntimeState {
	return &JobRuntimeState{
		Status:         JobStatusPending,
		Gate:           AbortGateNone,
		LastHealthTick: -1,
	}
}

// ResetCounters zeroes the per-activation counters. Called on every
// inactive-to-active transition and after an abort.
func (s *JobRuntimeState) ResetCounters() {
	s.TicksSinceActivated = 0
	s.UnderfluxStreak = 0
	s.TempMissStreak = 0
	s.LastHealthTick = -1
}

// BusTotals is the per-tick accumulator snapshot of the power bus,
// latched by the engine before the bus resets for the next tick.
type BusTotals struct {
	// AddedW is total generation pushed onto the bus this tick.
	AddedW float64
	// RequestedW is the sum of all draw requests this tick, regardless of grant size.
	RequestedW float64
	// GrantedW is the sum of all power actually granted this tick.
	GrantedW float64
	// AvailableW is the power still on the bus at latch time.
	AvailableW float64
}

// EngineSnapshot is a per-tick read-only projection of bus/battery/solar/job
// state, produced for diagnostics only. It never feeds back into simulation state.
type EngineSnapshot struct {
	TickIndex int
	Time      float64
	Bus       BusTotals
	// BatteryChargeWh is the stored energy after settlement.
	BatteryChargeWh float64
	// SolarOutputW is the electrical output of the array this tick.
	SolarOutputW float64
	// JobFailed is set for exactly one snapshot after a job abort.
	JobFailed bool
}

// JobExecutionRecord is one terminal job outcome persisted to the run log.
type JobExecutionRecord struct {
	// ID is a generated unique identifier for this record.
	ID string `gorm:"primaryKey;size:36"`
	// RunID groups records belonging to one simulation run.
	RunID string `gorm:"index;size:36"`
	// JobIndex is the job's position in the schedule table.
	JobIndex  int
	StartTick int
	EndTick   int
	// FinalStatus is COMPLETED or ABORTED, or ACTIVE when the run ended with
	// the job still open.
	FinalStatus string `gorm:"size:16"`
	// AbortGate names the gate that fired, or NONE.
	AbortGate string `gorm:"size:16"`
	// AbortTick is the tick the abort fired, -1 when the job completed.
	AbortTick       int
	UnderfluxStreak int
	TempMissStreak  int
	WarmupTicks     int
	TargetFlux      float64
	CreatedAt       time.Time
}

// NewJobExecutionRecord builds a record with a fresh identifier.
func NewJobExecutionRecord(runID string, jobIndex int, job Job, state *JobRuntimeState, abortTick int) *JobExecutionRecord {
	return &JobExecutionRecord{
		ID:              uuid.New().String(),
		RunID:           runID,
		JobIndex:        jobIndex,
		StartTick:       job.StartTick,
		EndTick:         job.EndTick,
		FinalStatus:     state.Status.String(),
		AbortGate:       string(state.Gate),
		AbortTick:       abortTick,
		UnderfluxStreak: state.UnderfluxStreak,
		TempMissStreak:  state.TempMissStreak,
		WarmupTicks:     state.WarmupTicks,
		TargetFlux:      job.TargetFlux,
	}
}
