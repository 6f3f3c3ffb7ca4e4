package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/engine"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
)

// captureTelemetry records every row per component. Safe for concurrent use.
type captureTelemetry struct {
	mu   sync.Mutex
	rows map[string][][]float64
}

func newCaptureTelemetry() *captureTelemetry {
	return &captureTelemetry{rows: make(map[string][][]float64)}
}

func (c *captureTelemetry) LogWide(component string, tick int, timeS float64, cols []string, vals []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := make([]float64, len(vals))
	copy(row, vals)
	c.rows[component] = append(c.rows[component], row)
	return nil
}

func (c *captureTelemetry) Close() error { return nil }

// constantIllumination is a fixed-fraction ports.Illumination.
type constantIllumination float64

func (c constantIllumination) SunlitFraction(t float64) float64 { return float64(c) }

// stubPlume answers ReadState with a fixed flux and ignores everything else.
type stubPlume struct{ flux float64 }

func (s *stubPlume) SetParameter(name string, value float64)     {}
func (s *stubPlume) MarkDirty()                                  {}
func (s *stubPlume) Advance(ctx context.Context, steps int) error { return nil }
func (s *stubPlume) ReadState() (float64, float64, float64, error) {
	return s.flux, 0, 0, nil
}

// stubDose discards beam state updates.
type stubDose struct{}

func (stubDose) SetBeamState(jobIndex int, beamOn bool, flux float64) {}
func (stubDose) MarkJobAborted(jobIndex int)                          {}

// stubListener discards lifecycle notifications.
type stubListener struct{}

func (stubListener) OnJobStart(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
}
func (stubListener) OnJobComplete(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState) {
}
func (stubListener) OnJobAbort(ctx context.Context, jobIndex int, job model.Job, state *model.JobRuntimeState, tick int) {
}

// engineFixture wires a complete engine around one job and a fixed sun fraction.
type engineFixture struct {
	engine    *engine.SimulationEngine
	scheduler *sched.Scheduler
	effusion  *power.ThermalLoad
	telemetry *captureTelemetry
}

func newEngineFixture(t *testing.T, ticks int, sunlit float64, jobs []model.Job, mutate func(*config.Config)) engineFixture {
	t.Helper()

	cfg := config.NewConfig()
	cfg.ForgeSim.Run.Ticks = ticks
	cfg.ForgeSim.Run.DtSeconds = 60.0
	if mutate != nil {
		mutate(cfg)
	}

	capture := newCaptureTelemetry()
	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()

	battery := power.NewBattery(cfg.ForgeSim.Power.Battery, capture)
	bus := power.NewPowerBus(battery, capture, recorder)
	solar := power.NewSolarArray(cfg.ForgeSim.Power.Solar, constantIllumination(sunlit), bus, capture)
	effusion := power.NewThermalLoad("effusion_cell", cfg.ForgeSim.Thermal.Effusion, capture)
	substrate := power.NewThermalLoad("substrate_heater", cfg.ForgeSim.Thermal.Substrate, capture)
	bank := power.NewHeaterBank(cfg.ForgeSim.Power.HeaterBank, bus, effusion, substrate, capture)

	scheduler := sched.NewScheduler(cfg.ForgeSim.Jobs, "test-run", jobs, sched.Dependencies{
		Bank:      bank,
		Effusion:  effusion,
		Plume:     &stubPlume{flux: 5.0e13},
		Dose:      stubDose{},
		Listener:  stubListener{},
		Telemetry: capture,
		Recorder:  recorder,
		Tracer:    tracer,
	})

	eng := engine.NewSimulationEngine(cfg, "test-run", engine.EngineDeps{
		Solar:      solar,
		Bus:        bus,
		Battery:    battery,
		Bank:       bank,
		Scheduler:  scheduler,
		Dispatched: []ports.Component{effusion, substrate},
		Telemetry:  capture,
		Recorder:   recorder,
		Tracer:     tracer,
	})

	return engineFixture{engine: eng, scheduler: scheduler, effusion: effusion, telemetry: capture}
}

func TestEngineRunsJobToCompletionUnderAmplePower(t *testing.T) {
	// One job commanding the high design flux; full sun gives ~1700 W, far more
	// than the ~180 W heater demand.
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14, HeaterPowerHint: 0}}
	fx := newEngineFixture(t, 102, 1.0, jobs, nil)

	require.NoError(t, fx.engine.Initialize())
	require.NoError(t, fx.engine.Run(context.Background()))
	require.NoError(t, fx.engine.Shutdown())

	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusCompleted, st.Status)
	assert.Equal(t, model.AbortGateNone, st.Gate)

	// The warm-up estimate is finite and physically plausible for tau = C/h
	// = 666.7 s at dt = 60 s.
	assert.Greater(t, st.WarmupTicks, 0)
	assert.LessOrEqual(t, st.WarmupTicks, 240)

	// With sustained full delivery the cell sits near its steady-state proxy.
	assert.GreaterOrEqual(t, fx.effusion.TemperatureK()/st.ThermalProxyK, 0.95)

	// No snapshot carried the failure flag.
	for _, row := range fx.telemetry.rows["engine"] {
		assert.Equal(t, 0.0, row[len(row)-1])
	}
}

func TestEngineAbortsStarvedJobOnFifthArmedTick(t *testing.T) {
	// Permanent eclipse and a near-empty battery: heater delivery collapses
	// immediately, so the under-flux gate fires once the warm-up window ends.
	jobs := []model.Job{{StartTick: 0, EndTick: 200, TargetFlux: 1.0e14, HeaterPowerHint: 0}}
	fx := newEngineFixture(t, 80, 0.0, jobs, func(cfg *config.Config) {
		cfg.ForgeSim.Power.Battery.CapacityWh = 2.0
	})

	require.NoError(t, fx.engine.Initialize())
	require.NoError(t, fx.engine.Run(context.Background()))
	require.NoError(t, fx.engine.Shutdown())

	st := fx.scheduler.JobStates()[0]
	assert.Equal(t, model.JobStatusAborted, st.Status)
	assert.Equal(t, model.AbortGateUnderflux, st.Gate)
	assert.Equal(t, -1, fx.scheduler.ActiveJobIndex())

	// The failure flag shows up in exactly one snapshot.
	failed := 0
	for _, row := range fx.telemetry.rows["engine"] {
		if row[len(row)-1] == 1.0 {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestEngineRunStopsOnContextCancellation(t *testing.T) {
	jobs := []model.Job{{StartTick: 0, EndTick: 100, TargetFlux: 1.0e14}}
	fx := newEngineFixture(t, 1000, 1.0, jobs, nil)

	require.NoError(t, fx.engine.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fx.engine.Run(ctx), context.Canceled)
	require.NoError(t, fx.engine.Shutdown())
}
