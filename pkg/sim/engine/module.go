package engine

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
)

// engineParams collects the engine's Fx dependencies. Independent phase-3
// components join through the "dispatched" value group.
type engineParams struct {
	fx.In
	Config     *config.Config
	RunID      string `name:"runID"`
	Solar      *power.SolarArray
	Bus        *power.PowerBus
	Battery    *power.Battery
	Bank       *power.HeaterBank
	Scheduler  *sched.Scheduler
	Effusion   *power.ThermalLoad `name:"effusion"`
	Substrate  *power.ThermalLoad `name:"substrate"`
	Dispatched []ports.Component  `group:"dispatched"`
	Telemetry  ports.Telemetry
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
}

// newSimulationEngine assembles the engine. The thermal loads join the
// dispatcher alongside the grouped components; their Tick only logs state, so
// they have no intra-tick dependency on anything else in the pool.
func newSimulationEngine(p engineParams) *SimulationEngine {
	dispatched := append([]ports.Component{p.Effusion, p.Substrate}, p.Dispatched...)
	return NewSimulationEngine(p.Config, p.RunID, EngineDeps{
		Solar:      p.Solar,
		Bus:        p.Bus,
		Battery:    p.Battery,
		Bank:       p.Bank,
		Scheduler:  p.Scheduler,
		Dispatched: dispatched,
		Telemetry:  p.Telemetry,
		Recorder:   p.Recorder,
		Tracer:     p.Tracer,
	})
}

// Module provides the tick dispatcher and simulation engine to Fx.
var Module = fx.Options(
	fx.Provide(newSimulationEngine),
)
