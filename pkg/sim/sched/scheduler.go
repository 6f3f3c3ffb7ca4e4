package sched

import (
	"context"
	"math"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// Dependencies collects the scheduler's collaborators.
type Dependencies struct {
	Bank      *power.HeaterBank
	Effusion  *power.ThermalLoad
	Plume     ports.PlumeSolver
	Dose      ports.DoseSink
	Listener  ports.JobLifecycleListener
	Telemetry ports.Telemetry
	RunLog    ports.RunLogRepository // may be nil when the run log is disabled
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
}

// Scheduler drives the job state machine: Pending -> Active -> {Completed, Aborted}.
// At most one job is active at a time; the first eligible job in table order
// wins. An aborted job is permanently skipped.
//
// The scheduler's Tick stages heater demands and solver parameters for the
// current tick and runs before the heater bank in the engine's phase pipeline.
// EvaluateHealth runs after the heater bank, so the gates see this tick's
// delivered power and temperature.
type Scheduler struct {
	name  string
	cfg   config.JobsConfig
	runID string

	jobs   []model.Job
	states []*model.JobRuntimeState

	// activeIdx is the index of the active job, -1 when idle.
	activeIdx int

	deps Dependencies

	jobSpanCtx context.Context
	endJobSpan func()

	lastFlux float64
	lastTick int
}

// NewScheduler builds the scheduler over a loaded job table.
func NewScheduler(cfg config.JobsConfig, runID string, jobs []model.Job, deps Dependencies) *Scheduler {
	states := make([]*model.JobRuntimeState, len(jobs))
	for i := range states {
		states[i] = model.NewJobRuntimeState()
	}
	return &Scheduler{
		name:      "scheduler",
		cfg:       cfg,
		runID:     runID,
		jobs:      jobs,
		states:    states,
		activeIdx: -1,
		deps:      deps,
		lastFlux:  FluxFloorCm2s,
	}
}

// Name returns the component's stable identifier.
func (s *Scheduler) Name() string { return s.name }

// Initialize is a no-op; the job table is loaded before construction.
func (s *Scheduler) Initialize() error { return nil }

// Tick retires, activates and commands jobs for the current tick.
// It stages demands and solver parameters; delivery happens when the heater
// bank ticks afterwards.
func (s *Scheduler) Tick(tc model.TickContext) error {
	s.lastTick = tc.TickIndex
	if flux, _, _, err := s.deps.Plume.ReadState(); err != nil {
		logger.Warnf("Plume state read failed on tick %d: %v", tc.TickIndex, err)
	} else {
		s.lastFlux = flux
	}

	// Retire the active job once the tick leaves its window.
	if s.activeIdx >= 0 && tc.TickIndex > s.jobs[s.activeIdx].EndTick {
		s.completeJob(tc)
	}

	// Activate the first eligible job in table order.
	if s.activeIdx < 0 {
		for i, job := range s.jobs {
			if !job.Contains(tc.TickIndex) || s.states[i].Status.IsTerminal() {
				continue
			}
			s.activateJob(i, tc)
			break
		}
	}

	if s.activeIdx >= 0 {
		s.commandActive(tc)
	} else {
		s.commandIdle()
	}
	return nil
}

// activateJob transitions job i to Active and computes its warm-up window and
// thermal proxy target from the effusion cell's RC constants.
func (s *Scheduler) activateJob(i int, tc model.TickContext) {
	job := s.jobs[i]
	st := s.states[i]
	st.ResetCounters()
	st.Status = model.JobStatusActive
	s.activeIdx = i

	demandW := FluxToHeaterPower(job.TargetFlux)
	tssK := s.steadyStateK(demandW)
	st.ThermalProxyK = tssK
	st.WarmupTicks = s.estimateWarmupTicks(tc.Dt, st.ThermalProxyK, tssK)

	logger.Infof("Job %d activated on tick %d (window [%d, %d], flux %.3g, demand %.1fW, warmup %d ticks, proxy %.1fK).",
		i, tc.TickIndex, job.StartTick, job.EndTick, job.TargetFlux, demandW, st.WarmupTicks, st.ThermalProxyK)

	ctx := context.Background()
	s.jobSpanCtx, s.endJobSpan = s.deps.Tracer.StartJobSpan(ctx, i, job)
	s.deps.Listener.OnJobStart(s.jobSpanCtx, i, job, st)
	s.deps.Recorder.RecordJobStart(s.jobSpanCtx, i)
}

// steadyStateK returns the first-order steady state Tss = Tenv + P/h for the
// effusion cell under sustained power P.
func (s *Scheduler) steadyStateK(demandW float64) float64 {
	h := s.deps.Effusion.LossWPerK()
	if h <= 0 {
		return s.deps.Effusion.AmbientK()
	}
	return s.deps.Effusion.AmbientK() + demandW/h
}

// estimateWarmupTicks derives the grace window from the exponential charging
// curve: t = -tau * ln(1 - ratio) with tau = C/h and ratio the configured
// fraction of the target temperature normalized by the steady state, converted
// to ticks and clamped to the configured safety bound. The ratio is capped
// below unity so the log stays finite for unreachable targets.
func (s *Scheduler) estimateWarmupTicks(dt, targetK, steadyK float64) int {
	h := s.deps.Effusion.LossWPerK()
	c := s.deps.Effusion.CapacitanceJPerK()
	if h <= 0 || c <= 0 || dt <= 0 || steadyK <= 0 {
		return 0
	}

	ratio := s.cfg.WarmupTargetFraction * targetK / steadyK
	if ratio >= 0.99 {
		ratio = 0.99
	}
	if ratio <= 0 {
		return 0
	}

	tau := c / h
	tSec := -tau * math.Log(1.0-ratio)
	ticks := int(math.Ceil(tSec / dt))
	if ticks < 0 {
		ticks = 0
	}
	if ticks > s.cfg.WarmupMaxTicks {
		ticks = s.cfg.WarmupMaxTicks
	}
	return ticks
}

// commandActive stages demands and solver parameters for the active job.
func (s *Scheduler) commandActive(tc model.TickContext) {
	job := s.jobs[s.activeIdx]
	st := s.states[s.activeIdx]

	demandW := FluxToHeaterPower(job.TargetFlux)
	s.deps.Bank.SetEffusionDemand(demandW)
	s.deps.Bank.SetSubstrateDemand(job.HeaterPowerHint)
	s.deps.Effusion.SetTargetK(st.ThermalProxyK)

	s.deps.Plume.SetParameter("Fwafer_cm2s", job.TargetFlux)
	s.deps.Plume.SetParameter("mbe_active", 1.0)

	s.deps.Dose.SetBeamState(s.activeIdx, true, s.lastFlux)
}

// commandIdle stages the no-job baseline: idle heaters, floor-level solver
// flux, beam off.
func (s *Scheduler) commandIdle() {
	s.deps.Bank.SetEffusionDemand(0)
	s.deps.Bank.SetSubstrateDemand(0)
	s.deps.Effusion.SetTargetK(s.deps.Effusion.AmbientK())

	s.deps.Plume.SetParameter("Fwafer_cm2s", FluxFloorCm2s)
	s.deps.Plume.SetParameter("mbe_active", 0.0)

	s.deps.Dose.SetBeamState(-1, false, FluxFloorCm2s)
}

// EvaluateHealth runs the streak gates against this tick's delivery and
// temperature, fires an abort when a streak reaches its limit, and emits the
// scheduler's diagnostic row. Returns true when a job was aborted this tick.
// Evaluating twice in the same tick is a no-op on the second call.
func (s *Scheduler) EvaluateHealth(tc model.TickContext) (bool, error) {
	aborted := s.evaluate(tc)
	return aborted, s.logState(tc)
}

func (s *Scheduler) evaluate(tc model.TickContext) bool {
	if s.activeIdx < 0 {
		return false
	}
	st := s.states[s.activeIdx]
	if st.Status != model.JobStatusActive || st.LastHealthTick == tc.TickIndex {
		return false
	}
	st.LastHealthTick = tc.TickIndex
	st.TicksSinceActivated++

	if !s.armed(st) {
		// Grace period: streaks stay pinned at zero until arming.
		st.UnderfluxStreak = 0
		st.TempMissStreak = 0
		return false
	}

	demandedW := s.deps.Bank.RequestedW()
	deliveredW := s.deps.Bank.DeliveredW()
	if demandedW > 0 && deliveredW/demandedW < s.cfg.FluxFractionThreshold {
		st.UnderfluxStreak++
	} else {
		st.UnderfluxStreak = 0
	}

	if st.ThermalProxyK > 0 && s.deps.Effusion.TemperatureK()/st.ThermalProxyK < s.cfg.TempToleranceFraction {
		st.TempMissStreak++
	} else {
		st.TempMissStreak = 0
	}

	gate := model.AbortGateNone
	switch {
	case st.UnderfluxStreak >= s.cfg.UnderfluxLimitTicks:
		gate = model.AbortGateUnderflux
	case st.TempMissStreak >= s.cfg.TempMissLimitTicks:
		gate = model.AbortGateTempMiss
	}
	if gate == model.AbortGateNone {
		return false
	}
	s.abortJob(gate, tc)
	return true
}

// armed reports whether health gating is live for the active job: past the
// warm-up window and with a non-trivial temperature target.
func (s *Scheduler) armed(st *model.JobRuntimeState) bool {
	return st.TicksSinceActivated > st.WarmupTicks && st.ThermalProxyK > s.cfg.TrivialAmbientK
}

// abortJob marks the active job Aborted, notifies collaborators, forces the
// solver back to the safe floor and falls through to the idle baseline for the
// same tick.
func (s *Scheduler) abortJob(gate model.AbortGate, tc model.TickContext) {
	idx := s.activeIdx
	job := s.jobs[idx]
	st := s.states[idx]
	st.Status = model.JobStatusAborted
	st.Gate = gate

	logger.Warnf("Job %d aborted on tick %d by gate %s (underflux streak %d, temp-miss streak %d).",
		idx, tc.TickIndex, gate, st.UnderfluxStreak, st.TempMissStreak)

	s.deps.Dose.MarkJobAborted(idx)
	s.deps.Plume.SetParameter("Fwafer_cm2s", FluxFloorCm2s)
	s.deps.Plume.SetParameter("mbe_active", 0.0)
	s.deps.Plume.MarkDirty()
	s.deps.Dose.SetBeamState(idx, false, FluxFloorCm2s)

	ctx := s.jobSpanCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.deps.Tracer.RecordError(ctx, moduleName,
		exception.NewSimErrorf(moduleName, "job %d aborted by gate %s on tick %d", idx, gate, tc.TickIndex))
	s.deps.Listener.OnJobAbort(ctx, idx, job, st, tc.TickIndex)
	s.deps.Recorder.RecordJobAbort(ctx, idx, st.Gate)
	s.deps.Recorder.RecordJobEnd(ctx, idx, st.Status)
	s.saveRecord(ctx, idx, tc.TickIndex)
	s.closeJobSpan()

	st.ResetCounters()
	s.activeIdx = -1
	s.commandIdle()
}

// completeJob marks the active job Completed when its window ends.
func (s *Scheduler) completeJob(tc model.TickContext) {
	idx := s.activeIdx
	job := s.jobs[idx]
	st := s.states[idx]
	st.Status = model.JobStatusCompleted

	logger.Infof("Job %d completed on tick %d (window [%d, %d]).", idx, tc.TickIndex, job.StartTick, job.EndTick)

	ctx := s.jobSpanCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.deps.Listener.OnJobComplete(ctx, idx, job, st)
	s.deps.Recorder.RecordJobEnd(ctx, idx, st.Status)
	s.saveRecord(ctx, idx, -1)
	s.closeJobSpan()

	s.activeIdx = -1
}

// saveRecord persists the terminal outcome when the run log is enabled.
func (s *Scheduler) saveRecord(ctx context.Context, idx, abortTick int) {
	if s.deps.RunLog == nil {
		return
	}
	rec := model.NewJobExecutionRecord(s.runID, idx, s.jobs[idx], s.states[idx], abortTick)
	if err := s.deps.RunLog.SaveJobRecord(ctx, rec); err != nil {
		logger.Errorf("Failed to save job record for job %d: %v", idx, err)
	}
}

func (s *Scheduler) closeJobSpan() {
	if s.endJobSpan != nil {
		s.endJobSpan()
	}
	s.jobSpanCtx = nil
	s.endJobSpan = nil
}

// logState emits the scheduler's per-tick diagnostic row.
func (s *Scheduler) logState(tc model.TickContext) error {
	activeJob := -1.0
	statusCode := 0.0
	warmup := 0.0
	ticksActive := 0.0
	underflux := 0.0
	tempMiss := 0.0
	armedFlag := 0.0
	proxyK := 0.0
	if s.activeIdx >= 0 {
		st := s.states[s.activeIdx]
		activeJob = float64(s.activeIdx)
		statusCode = statusToCode(st.Status)
		warmup = float64(st.WarmupTicks)
		ticksActive = float64(st.TicksSinceActivated)
		underflux = float64(st.UnderfluxStreak)
		tempMiss = float64(st.TempMissStreak)
		if s.armed(st) {
			armedFlag = 1.0
		}
		proxyK = st.ThermalProxyK
	}
	return s.deps.Telemetry.LogWide(s.name, tc.TickIndex, tc.Time,
		[]string{"active_job", "status", "warmup_ticks", "ticks_active", "underflux_streak", "temp_miss_streak", "armed", "proxy_k", "flux_reading"},
		[]float64{activeJob, statusCode, warmup, ticksActive, underflux, tempMiss, armedFlag, proxyK, s.lastFlux})
}

func statusToCode(st model.JobStatus) float64 {
	switch st {
	case model.JobStatusPending:
		return 0
	case model.JobStatusActive:
		return 1
	case model.JobStatusCompleted:
		return 2
	case model.JobStatusAborted:
		return 3
	default:
		return -1
	}
}

// JobStates exposes the runtime states for diagnostics and tests.
func (s *Scheduler) JobStates() []*model.JobRuntimeState { return s.states }

// ActiveJobIndex returns the active job index, -1 when idle.
func (s *Scheduler) ActiveJobIndex() int { return s.activeIdx }

// Shutdown records a job left open when the run ends, so the run log covers
// every started job, then closes any open span.
func (s *Scheduler) Shutdown() error {
	if s.activeIdx >= 0 {
		idx := s.activeIdx
		st := s.states[idx]
		logger.Infof("Run ended with job %d still active on tick %d; recording its open state.", idx, s.lastTick)

		ctx := s.jobSpanCtx
		if ctx == nil {
			ctx = context.Background()
		}
		s.deps.Recorder.RecordJobEnd(ctx, idx, st.Status)
		s.saveRecord(ctx, idx, -1)
		s.activeIdx = -1
	}
	s.closeJobSpan()
	return nil
}

var _ ports.Component = (*Scheduler)(nil)
