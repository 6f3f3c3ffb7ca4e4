package sched_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
)

// nopTelemetry discards every row.
type nopTelemetry struct{}

func (nopTelemetry) LogWide(component string, tick int, timeS float64, cols []string, vals []float64) error {
	return nil
}
func (nopTelemetry) Close() error { return nil }

// fakePlume records parameter writes and serves a fixed flux reading.
type fakePlume struct {
	mu     sync.Mutex
	flux   float64
	params map[string]float64
	dirty  bool
}

func newFakePlume(flux float64) *fakePlume {
	return &fakePlume{flux: flux, params: make(map[string]float64)}
}

func (p *fakePlume) SetParameter(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params[name] = value
}

func (p *fakePlume) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

func (p *fakePlume) Advance(ctx context.Context, steps int) error { return nil }

func (p *fakePlume) ReadState() (float64, float64, float64, error) {
	return p.flux, 0, 0, nil
}

func (p *fakePlume) param(name string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params[name]
}

// fakeDose records the last beam command and abort marks.
type fakeDose struct {
	mu       sync.Mutex
	jobIndex int
	beamOn   bool
	aborted  []int
}

func (d *fakeDose) SetBeamState(jobIndex int, beamOn bool, flux float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobIndex = jobIndex
	d.beamOn = beamOn
}

func (d *fakeDose) MarkJobAborted(jobIndex int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = append(d.aborted, jobIndex)
}

// fakeRunLog keeps saved records in memory.
type fakeRunLog struct {
	mu   sync.Mutex
	recs []*model.JobExecutionRecord
}

func (r *fakeRunLog) SaveJobRecord(ctx context.Context, rec *model.JobExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeRunLog) FindJobRecords(ctx context.Context, runID string) ([]model.JobExecutionRecord, error) {
	return nil, nil
}

func (r *fakeRunLog) Close() error { return nil }

func (r *fakeRunLog) records() []*model.JobExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.JobExecutionRecord(nil), r.recs...)
}

// nopListener discards lifecycle notifications.
type nopListener struct{}

func (nopListener) OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
}
func (nopListener) OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
}
func (nopListener) OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int) {
}

type schedFixture struct {
	scheduler *sched.Scheduler
	bus       *power.PowerBus
	bank      *power.HeaterBank
	effusion  *power.ThermalLoad
	plume     *fakePlume
	dose      *fakeDose
	runlog    *fakeRunLog
}

func newSchedFixture(t *testing.T, jobsCfg config.JobsConfig, jobs []model.Job) schedFixture {
	t.Helper()

	cfg := config.NewConfig()
	recorder := metrics.NewNoOpMetricRecorder()

	battery := power.NewBattery(config.BatteryConfig{}, nopTelemetry{}) // empty battery
	bus := power.NewPowerBus(battery, nopTelemetry{}, recorder)
	effusion := power.NewThermalLoad("effusion_cell", cfg.ForgeSim.Thermal.Effusion, nopTelemetry{})
	substrate := power.NewThermalLoad("substrate_heater", cfg.ForgeSim.Thermal.Substrate, nopTelemetry{})
	bank := power.NewHeaterBank(cfg.ForgeSim.Power.HeaterBank, bus, effusion, substrate, nopTelemetry{})

	plume := newFakePlume(5.0e13)
	dose := &fakeDose{}
	runlog := &fakeRunLog{}

	scheduler := sched.NewScheduler(jobsCfg, "test-run", jobs, sched.Dependencies{
		Bank:      bank,
		Effusion:  effusion,
		Plume:     plume,
		Dose:      dose,
		Listener:  nopListener{},
		Telemetry: nopTelemetry{},
		RunLog:    runlog,
		Recorder:  recorder,
		Tracer:    metrics.NewNoOpTracer(),
	})
	return schedFixture{scheduler: scheduler, bus: bus, bank: bank, effusion: effusion, plume: plume, dose: dose, runlog: runlog}
}

// step runs one engine load phase: stage, deliver, gate.
func (f schedFixture) step(t *testing.T, i int, busPowerW float64) bool {
	t.Helper()
	tc := model.TickContext{TickIndex: i, Time: float64(i) * 60.0, Dt: 60.0}
	if busPowerW > 0 {
		f.bus.AddPower(busPowerW)
	}
	require.NoError(t, f.scheduler.Tick(tc))
	require.NoError(t, f.bank.Tick(tc))
	aborted, err := f.scheduler.EvaluateHealth(tc)
	require.NoError(t, err)
	require.NoError(t, f.bus.Tick(tc))
	return aborted
}

func defaultJobsCfg() config.JobsConfig {
	return config.NewConfig().ForgeSim.Jobs
}

func TestSchedulerActivatesJobAndStagesDemands(t *testing.T) {
	jobs := []model.Job{{StartTick: 5, EndTick: 50, TargetFlux: 1.0e14, HeaterPowerHint: 800.0}}
	fx := newSchedFixture(t, defaultJobsCfg(), jobs)

	// Before the window the scheduler stays idle and commands the baseline.
	fx.step(t, 0, 2000.0)
	assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())
	assert.Equal(t, sched.FluxFloorCm2s, fx.plume.param("Fwafer_cm2s"))
	assert.Equal(t, 0.0, fx.plume.param("mbe_active"))

	fx.step(t, 5, 2000.0)
	assert.Equal(t, 0, fx.scheduler.ActiveJobIndex())

	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusActive, st.Status)

	// Proxy Tss = Tenv + P/h = 300 + 180/1.5 = 420 K for the high design flux.
	assert.InDelta(t, 420.0, st.ThermalProxyK, 1e-9)

	// Warm-up from the charging curve: ceil(-666.7*ln(0.1)/60) = 26 ticks.
	assert.Equal(t, 26, st.WarmupTicks)

	// Demands staged for the heater bank: mapped flux plus the legacy hint.
	eff, sub := fx.bank.Demands()
	assert.InDelta(t, 180.0, eff, 1e-9)
	assert.Equal(t, 800.0, sub)

	// Solver sees the commanded flux with the beam enabled.
	assert.Equal(t, 1.0e14, fx.plume.param("Fwafer_cm2s"))
	assert.Equal(t, 1.0, fx.plume.param("mbe_active"))
	assert.True(t, fx.dose.beamOn)
	assert.Equal(t, 0, fx.dose.jobIndex)
}

func TestSchedulerWarmupRatioIsCappedBelowUnity(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 1.0 // target equals the steady state exactly
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	fx.step(t, 0, 2000.0)

	// ratio caps at 0.99: ceil(-666.7*ln(0.01)/60) = 52 ticks, under the
	// 240-tick safety bound.
	assert.Equal(t, 52, fx.scheduler.JobStates()[0].WarmupTicks)
}

func TestSchedulerHealthEvaluationIsIdempotentPerTick(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 0.0 // no grace window, armed from the first tick
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	tc := model.TickContext{TickIndex: 0, Time: 0, Dt: 60.0}
	require.NoError(t, fx.scheduler.Tick(tc))
	require.NoError(t, fx.bank.Tick(tc))

	_, err := fx.scheduler.EvaluateHealth(tc)
	require.NoError(t, err)
	st := fx.scheduler.JobStates()[0]
	ticksAfterFirst := st.TicksSinceActivated
	streakAfterFirst := st.UnderfluxStreak

	// A second evaluation in the same tick changes nothing.
	aborted, err := fx.scheduler.EvaluateHealth(tc)
	require.NoError(t, err)
	assert.False(t, aborted)
	assert.Equal(t, ticksAfterFirst, st.TicksSinceActivated)
	assert.Equal(t, streakAfterFirst, st.UnderfluxStreak)
}

func TestSchedulerAbortsOnFifthConsecutiveUnderfluxTick(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 0.0
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	// No power anywhere: every armed tick is an under-flux tick.
	for i := 0; i < 4; i++ {
		assert.False(t, fx.step(t, i, 0), "no abort expected on tick %d", i)
	}
	assert.True(t, fx.step(t, 4, 0), "abort expected on the fifth under-flux tick")

	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusAborted, st.Status)
	assert.Equal(t, model.AbortGateUnderflux, st.Gate)
	assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())

	// Abort side effects: dose marked, beam off, solver back to the floor.
	assert.Equal(t, []int{0}, fx.dose.aborted)
	assert.False(t, fx.dose.beamOn)
	assert.Equal(t, sched.FluxFloorCm2s, fx.plume.param("Fwafer_cm2s"))
	assert.Equal(t, 0.0, fx.plume.param("mbe_active"))

	// The idle baseline applies on the same tick: demands are zeroed.
	eff, sub := fx.bank.Demands()
	assert.Equal(t, 0.0, eff)
	assert.Equal(t, 0.0, sub)
}

func TestSchedulerAbortsOnTemperatureMissDespiteFullDelivery(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 0.0
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	// Ample bus power: delivery is complete, but with no warm-up grace the
	// cell cannot reach 95% of its 420 K proxy in five ticks.
	aborted := false
	for i := 0; i < 5 && !aborted; i++ {
		aborted = fx.step(t, i, 2000.0)
	}
	assert.True(t, aborted)
	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusAborted, st.Status)
	assert.Equal(t, model.AbortGateTempMiss, st.Gate)
}

func TestSchedulerNeverArmsBelowTrivialTarget(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 0.0
	cfg.TrivialAmbientK = 1000.0 // every proxy is trivial
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	// Total starvation, but the gates never arm.
	for i := 0; i < 20; i++ {
		assert.False(t, fx.step(t, i, 0))
	}
	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusActive, st.Status)
	assert.Equal(t, 0, st.UnderfluxStreak)
	assert.Equal(t, 0, st.TempMissStreak)
}

func TestSchedulerCompletesJobAndActivatesNext(t *testing.T) {
	jobs := []model.Job{
		{StartTick: 0, EndTick: 2, TargetFlux: 1.0e14},
		{StartTick: 4, EndTick: 8, TargetFlux: 5.0e13},
	}
	fx := newSchedFixture(t, defaultJobsCfg(), jobs)

	for i := 0; i <= 2; i++ {
		fx.step(t, i, 2000.0)
	}
	assert.Equal(t, 0, fx.scheduler.ActiveJobIndex())

	// Tick 3 leaves job 0's window: it completes and nothing is active.
	fx.step(t, 3, 2000.0)
	assert.Equal(t, model.JobStatusCompleted, fx.scheduler.JobStates()[0].Status)
	assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())

	fx.step(t, 4, 2000.0)
	assert.Equal(t, 1, fx.scheduler.ActiveJobIndex())
	assert.Equal(t, model.JobStatusActive, fx.scheduler.JobStates()[1].Status)
}

func TestSchedulerRecordsJobStillOpenAtShutdown(t *testing.T) {
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, defaultJobsCfg(), jobs)

	for i := 0; i < 3; i++ {
		fx.step(t, i, 2000.0)
	}
	require.Equal(t, 0, fx.scheduler.ActiveJobIndex())

	require.NoError(t, fx.scheduler.Shutdown())

	recs := fx.runlog.records()
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].JobIndex)
	assert.Equal(t, "ACTIVE", recs[0].FinalStatus)
	assert.Equal(t, "test-run", recs[0].RunID)
	assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())
}

func TestSchedulerNeverReactivatesAbortedJob(t *testing.T) {
	cfg := defaultJobsCfg()
	cfg.WarmupTargetFraction = 0.0
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newSchedFixture(t, cfg, jobs)

	aborted := false
	for i := 0; i < 10 && !aborted; i++ {
		aborted = fx.step(t, i, 0)
	}
	require.True(t, aborted)

	// The window is still open, but the aborted job stays terminal.
	for i := 10; i < 20; i++ {
		fx.step(t, i, 0)
		assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())
	}
	assert.Equal(t, model.JobStatusAborted, fx.scheduler.JobStates()[0].Status)
}
