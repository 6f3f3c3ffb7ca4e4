package runlog

import (
	"context"

	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// newRepository opens the configured run log, or a no-op repository when the
// run log is disabled.
func newRepository(cfg *config.Config) (ports.RunLogRepository, error) {
	if !cfg.ForgeSim.RunLog.Enabled {
		return NoopRepository{}, nil
	}
	return Open(cfg.ForgeSim.RunLog)
}

// registerClose closes the repository on application stop.
func registerClose(lc fx.Lifecycle, repo ports.RunLogRepository) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return repo.Close()
		},
	})
}

// Module provides the run log repository to Fx.
var Module = fx.Options(
	fx.Provide(newRepository),
	fx.Invoke(registerClose),
)
