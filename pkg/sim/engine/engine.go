package engine

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const engineModule = "engine"

// SimulationEngine owns every component and executes ticks in a fixed phase
// order:
//
//  1. Generation: the solar array pushes power onto the bus.
//  2. Baseline load: the housekeeping draw is taken before any other consumer.
//  3. Load phase: scheduler, heater bank, health gates, then the independent
//     components through the tick dispatcher.
//  4. Latch: bus accumulators are copied before settlement zeroes them.
//  5. Settlement: the bus pushes surplus to the battery and resets.
//  6. Storage: the battery logs its post-settlement charge.
//  7. Snapshot: one diagnostic row combining latched totals and component state.
//
// Phases 1-2 and 4-7 are strictly single threaded; only phase 3's independent
// components run concurrently. The order must not change: later phases read
// what earlier phases produced.
type SimulationEngine struct {
	runCfg        config.RunConfig
	baselineLoadW float64
	runID         string

	solar     *power.SolarArray
	bus       *power.PowerBus
	battery   *power.Battery
	bank      *power.HeaterBank
	scheduler *sched.Scheduler

	dispatcher *TickDispatcher
	dispatched []ports.Component

	telemetry ports.Telemetry
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer

	// jobFailed is the one-shot failure flag: set when a job aborts, visible
	// in exactly one snapshot, cleared immediately after emission.
	jobFailed bool

	lastSnapshot model.EngineSnapshot
}

// EngineDeps collects the engine's collaborators.
type EngineDeps struct {
	Solar      *power.SolarArray
	Bus        *power.PowerBus
	Battery    *power.Battery
	Bank       *power.HeaterBank
	Scheduler  *sched.Scheduler
	Dispatched []ports.Component
	Telemetry  ports.Telemetry
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
}

// NewSimulationEngine builds the engine with explicit typed references to the
// distinguished components and a list of independent components for the
// dispatcher.
func NewSimulationEngine(cfg *config.Config, runID string, deps EngineDeps) *SimulationEngine {
	return &SimulationEngine{
		runCfg:        cfg.ForgeSim.Run,
		baselineLoadW: cfg.ForgeSim.Power.BaselineLoadW,
		runID:         runID,
		solar:         deps.Solar,
		bus:           deps.Bus,
		battery:       deps.Battery,
		bank:          deps.Bank,
		scheduler:     deps.Scheduler,
		dispatcher:    NewTickDispatcher(),
		dispatched:    deps.Dispatched,
		telemetry:     deps.Telemetry,
		recorder:      deps.Recorder,
		tracer:        deps.Tracer,
	}
}

// MarkJobFailedThisTick raises the one-shot job failure flag. Idempotent
// within a tick; the flag is cleared after the next snapshot.
func (e *SimulationEngine) MarkJobFailedThisTick() {
	e.jobFailed = true
}

// allComponents returns every owned component for initialize/shutdown sweeps.
func (e *SimulationEngine) allComponents() []ports.Component {
	cs := []ports.Component{e.solar, e.bus, e.battery, e.bank, e.scheduler}
	return append(cs, e.dispatched...)
}

// Initialize prepares every component and starts the dispatcher workers.
func (e *SimulationEngine) Initialize() error {
	for _, c := range e.allComponents() {
		if err := c.Initialize(); err != nil {
			return exception.NewFatalError(engineModule, "failed to initialize component '"+c.Name()+"'", err)
		}
	}
	for _, c := range e.dispatched {
		if err := e.dispatcher.Register(c); err != nil {
			return err
		}
	}
	return e.dispatcher.Start()
}

// Run executes the configured number of ticks. Cancellation of ctx stops the
// run between ticks; in-flight phases always complete.
func (e *SimulationEngine) Run(ctx context.Context) error {
	runCtx, endRun := e.tracer.StartRunSpan(ctx, e.runID)
	defer endRun()

	logger.Infof("Run %s starting: %d ticks at dt=%.1fs.", e.runID, e.runCfg.Ticks, e.runCfg.DtSeconds)

	for i := 0; i < e.runCfg.Ticks; i++ {
		select {
		case <-ctx.Done():
			logger.Warnf("Run %s cancelled on tick %d.", e.runID, i)
			return ctx.Err()
		default:
		}

		tc := model.TickContext{
			TickIndex: i,
			Time:      float64(i) * e.runCfg.DtSeconds,
			Dt:        e.runCfg.DtSeconds,
		}
		started := time.Now()
		if err := e.runTick(runCtx, tc); err != nil {
			e.tracer.RecordError(runCtx, engineModule, err)
			return err
		}
		e.recorder.RecordDuration(runCtx, "tick_duration", time.Since(started), map[string]string{"run_id": e.runID})
	}

	logger.Infof("Run %s finished after %d ticks.", e.runID, e.runCfg.Ticks)
	return nil
}

// runTick executes the seven phases for one tick.
func (e *SimulationEngine) runTick(ctx context.Context, tc model.TickContext) error {
	// Phase 1: generation.
	if err := e.solar.Tick(tc); err != nil {
		return err
	}

	// Phase 2: baseline housekeeping load, before any other consumer.
	e.bus.DrawPower("baseline", e.baselineLoadW, tc)

	// Phase 3: scheduler stages demands, heater bank draws and applies heat,
	// health gates see this tick's delivery, then the independent components
	// run concurrently.
	if err := e.scheduler.Tick(tc); err != nil {
		return err
	}
	if err := e.bank.Tick(tc); err != nil {
		return err
	}
	aborted, err := e.scheduler.EvaluateHealth(tc)
	if err != nil {
		return err
	}
	if aborted {
		e.MarkJobFailedThisTick()
	}
	if err := e.dispatcher.RunTick(tc); err != nil {
		return err
	}

	// Phase 4: latch bus totals before settlement resets them. Snapshot values
	// must reflect this tick's activity, not the post-reset zero state.
	totals := e.bus.Totals()

	// Phase 5: settlement.
	if err := e.bus.Tick(tc); err != nil {
		return err
	}

	// Phase 6: storage, last so the logged charge is post-settlement.
	if err := e.battery.Tick(tc); err != nil {
		return err
	}

	// Phase 7: snapshot.
	return e.emitSnapshot(ctx, tc, totals)
}

// emitSnapshot publishes the per-tick diagnostic projection and clears the
// one-shot failure flag.
func (e *SimulationEngine) emitSnapshot(ctx context.Context, tc model.TickContext, totals model.BusTotals) error {
	snap := model.EngineSnapshot{
		TickIndex:       tc.TickIndex,
		Time:            tc.Time,
		Bus:             totals,
		BatteryChargeWh: e.battery.ChargeWh(),
		SolarOutputW:    e.solar.OutputW(),
		JobFailed:       e.jobFailed,
	}
	e.lastSnapshot = snap
	e.jobFailed = false

	e.recorder.RecordTick(ctx, &snap)
	e.recorder.RecordBatteryCharge(ctx, snap.BatteryChargeWh)

	failed := 0.0
	if snap.JobFailed {
		failed = 1.0
	}
	return e.telemetry.LogWide("engine", tc.TickIndex, tc.Time,
		[]string{"added_w", "requested_w", "granted_w", "remaining_w", "battery_wh", "solar_w", "job_failed"},
		[]float64{totals.AddedW, totals.RequestedW, totals.GrantedW, totals.AvailableW, snap.BatteryChargeWh, snap.SolarOutputW, failed})
}

// LastSnapshot returns the most recent snapshot.
func (e *SimulationEngine) LastSnapshot() model.EngineSnapshot { return e.lastSnapshot }

// Shutdown stops the dispatcher and shuts every component down, joining errors.
func (e *SimulationEngine) Shutdown() error {
	e.dispatcher.Stop()

	var result *multierror.Error
	for _, c := range e.allComponents() {
		if err := c.Shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
