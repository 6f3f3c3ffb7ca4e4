package listener

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// newComposite assembles the default listener chain.
func newComposite(tracer metrics.Tracer) ports.JobLifecycleListener {
	return NewCompositeListener(
		NewLoggingListener(),
		NewTracingListener(tracer),
	)
}

// Module provides the job lifecycle listener chain to Fx.
var Module = fx.Options(
	fx.Provide(newComposite),
)
