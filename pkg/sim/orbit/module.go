package orbit

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// newModel adapts the root config for NewModel.
func newModel(cfg *config.Config, telemetry ports.Telemetry) *Model {
	return NewModel(cfg.ForgeSim.Orbit, telemetry)
}

// Module provides the orbit model to Fx, both as the Illumination source and
// as a dispatched component for per-tick logging.
var Module = fx.Options(
	fx.Provide(newModel),
	fx.Provide(func(m *Model) ports.Illumination { return m }),
	fx.Provide(fx.Annotate(
		func(m *Model) ports.Component { return m },
		fx.ResultTags(`group:"dispatched"`),
	)),
)
