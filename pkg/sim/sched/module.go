package sched

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/power"
)

// schedulerParams collects the scheduler's Fx dependencies.
type schedulerParams struct {
	fx.In
	Config    *config.Config
	RunID     string `name:"runID"`
	Jobs      []model.Job
	Bank      *power.HeaterBank
	Effusion  *power.ThermalLoad `name:"effusion"`
	Plume     ports.PlumeSolver
	Dose      ports.DoseSink
	Listener  ports.JobLifecycleListener
	Telemetry ports.Telemetry
	RunLog    ports.RunLogRepository `optional:"true"`
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
}

// newJobTable loads the schedule once for every consumer.
func newJobTable(cfg *config.Config) ([]model.Job, error) {
	return LoadJobTable(cfg.ForgeSim.Jobs.TablePath)
}

// newScheduler assembles the scheduler over the loaded job table.
func newScheduler(p schedulerParams) (*Scheduler, error) {
	deps := Dependencies{
		Bank:      p.Bank,
		Effusion:  p.Effusion,
		Plume:     p.Plume,
		Dose:      p.Dose,
		Listener:  p.Listener,
		Telemetry: p.Telemetry,
		RunLog:    p.RunLog,
		Recorder:  p.Recorder,
		Tracer:    p.Tracer,
	}
	return NewScheduler(p.Config.ForgeSim.Jobs, p.RunID, p.Jobs, deps), nil
}

// Module provides the job table and scheduler to Fx.
var Module = fx.Options(
	fx.Provide(newJobTable),
	fx.Provide(newScheduler),
)
