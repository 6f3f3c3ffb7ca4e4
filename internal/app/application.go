// Package app assembles the simulation runtime with uber-fx and drives one run.
package app

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/fx"

	config "github.com/spaceforge/forgesim/pkg/sim/core/config"
	coremetrics "github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/engine"
	"github.com/spaceforge/forgesim/pkg/sim/growth"
	inframetrics "github.com/spaceforge/forgesim/pkg/sim/infrastructure/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/plume"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/runlog"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/telemetry"
	"github.com/spaceforge/forgesim/pkg/sim/listener"
	"github.com/spaceforge/forgesim/pkg/sim/orbit"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// newRunID takes the configured run ID or generates one.
func newRunID(cfg *config.Config) string {
	if id := cfg.ForgeSim.Run.RunID; id != "" {
		return id
	}
	id := uuid.New().String()
	logger.Infof("Generated run ID %s.", id)
	return id
}

// Module provides application-level wiring.
var Module = fx.Options(
	fx.Provide(fx.Annotate(newRunID, fx.ResultTags(`name:"runID"`))),
)

// appOptions assembles the full dependency graph for one simulation run.
func appOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	return []fx.Option{
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		logger.Module,
		config.Module,
		inframetrics.Module,
		telemetry.Module,
		runlog.Module,
		orbit.Module,
		power.Module,
		plume.Module,
		growth.Module,
		listener.Module,
		sched.Module,
		engine.Module,
		Module,

		fx.Invoke(fx.Annotate(startSimulation, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // eng *engine.SimulationEngine
			"",              // recorder coremetrics.MetricRecorder (forces construction)
			`name:"appCtx"`, // appCtx context.Context
		))),
	}
}

// RunApplication sets up and runs the simulation using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	app := fx.New(appOptions(appCtx, envFilePath, embeddedConfig)...)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startSimulation runs the engine in a background goroutine and shuts the
// application down when the run finishes.
func startSimulation(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	eng *engine.SimulationEngine,
	recorder coremetrics.MetricRecorder,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				exitCode := 0
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered during simulation run: %v", r)
						exitCode = 1
					}
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				if err := eng.Initialize(); err != nil {
					logger.Errorf("Engine initialization failed: %v", err)
					exitCode = 1
					return
				}
				if err := eng.Run(appCtx); err != nil {
					logger.Errorf("Simulation run failed: %v", err)
					exitCode = 1
				}
				if err := eng.Shutdown(); err != nil {
					logger.Errorf("Engine shutdown reported errors: %v", err)
					exitCode = 1
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
