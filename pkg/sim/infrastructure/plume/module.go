package plume

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// newFileBridge adapts the root config for NewFileBridge.
func newFileBridge(cfg *config.Config, telemetry ports.Telemetry) *FileBridge {
	return NewFileBridge(cfg.ForgeSim.Plume, telemetry)
}

// Module provides the solver bridge to Fx, as the scheduler's plume port and
// as a dispatched component for the coupling cadence.
var Module = fx.Options(
	fx.Provide(newFileBridge),
	fx.Provide(func(b *FileBridge) ports.PlumeSolver { return b }),
	fx.Provide(fx.Annotate(
		func(b *FileBridge) ports.Component { return b },
		fx.ResultTags(`group:"dispatched"`),
	)),
)
