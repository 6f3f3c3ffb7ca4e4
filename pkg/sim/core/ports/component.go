package ports

import "github.com/spaceforge/forgesim/pkg/sim/core/domain/model"

// Component is the contract every simulated unit implements.
// The engine calls Initialize once before the first tick, Tick once per tick
// (possibly from a dispatcher worker goroutine), and Shutdown once after the
// last tick. Name must be stable and unique; it keys diagnostic streams.
type Component interface {
	// Name returns the component's stable identifier.
	Name() string
	// Initialize prepares the component before the first tick.
	Initialize() error
	// Tick advances the component by one step.
	Tick(tc model.TickContext) error
	// Shutdown releases the component's resources after the final tick.
	Shutdown() error
}
