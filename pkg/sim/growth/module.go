package growth

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/telemetry"
	"github.com/spaceforge/forgesim/pkg/sim/power"
)

// monitorParams collects the monitor's Fx dependencies.
type monitorParams struct {
	fx.In
	Config *config.Config
	RunID  string `name:"runID"`
	Jobs   []model.Job
	Bus    *power.PowerBus
}

// newMonitor sizes the monitor to the job table and resolves its artifact directory.
func newMonitor(p monitorParams) *Monitor {
	dir := telemetry.ResolveOutputDir(p.Config.ForgeSim.Telemetry.OutputDir, p.RunID)
	return NewMonitor(p.Config.ForgeSim.Growth, len(p.Jobs), dir, p.Bus)
}

// Module provides the growth monitor to Fx, as the scheduler's dose sink and
// as a dispatched component.
var Module = fx.Options(
	fx.Provide(newMonitor),
	fx.Provide(func(m *Monitor) ports.DoseSink { return m }),
	fx.Provide(fx.Annotate(
		func(m *Monitor) ports.Component { return m },
		fx.ResultTags(`group:"dispatched"`),
	)),
)
