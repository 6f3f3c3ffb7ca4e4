package telemetry

import (
	"context"

	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// sinkParams collects the sink's Fx dependencies.
type sinkParams struct {
	fx.In
	Config *config.Config
	RunID  string `name:"runID"`
}

// newCSVSink resolves the run directory and opens the sink.
func newCSVSink(p sinkParams) (*CSVSink, error) {
	dir := ResolveOutputDir(p.Config.ForgeSim.Telemetry.OutputDir, p.RunID)
	return NewCSVSink(dir)
}

// registerClose flushes and closes every stream on application stop.
func registerClose(lc fx.Lifecycle, sink *CSVSink) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sink.Close()
		},
	})
}

// Module provides the CSV telemetry sink to Fx.
var Module = fx.Options(
	fx.Provide(newCSVSink),
	fx.Provide(func(s *CSVSink) ports.Telemetry { return s }),
	fx.Invoke(registerClose),
)
