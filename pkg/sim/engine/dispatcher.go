// Package engine contains the concurrent tick dispatcher and the phase-ordered
// simulation engine that drives one run.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const dispatcherModule = "dispatcher"

// tickResult is one worker's completion token for a tick generation.
type tickResult struct {
	component string
	err       error
}

// TickDispatcher runs a fixed set of components once per tick, concurrently,
// and blocks the caller until all of them have finished. One goroutine per
// component; the tick context is sent by value through each worker's channel,
// so every component sees the same context for a generation. There is no
// guarantee about completion order within a generation, so dispatched
// components must not depend on each other's output for the same tick.
//
// Register all components before Start. RunTick and Stop are called from the
// engine's single goroutine.
type TickDispatcher struct {
	components []ports.Component
	tickChs    []chan model.TickContext
	doneCh     chan tickResult

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewTickDispatcher creates an empty dispatcher.
func NewTickDispatcher() *TickDispatcher {
	return &TickDispatcher{
		doneCh: make(chan tickResult),
	}
}

// Register adds a component. Must be called before Start.
func (d *TickDispatcher) Register(c ports.Component) error {
	if d.started {
		return exception.NewSimErrorf(dispatcherModule, "cannot register component '%s' after start", c.Name())
	}
	d.components = append(d.components, c)
	return nil
}

// Start launches one worker goroutine per registered component.
func (d *TickDispatcher) Start() error {
	if d.started {
		return exception.NewSimErrorf(dispatcherModule, "dispatcher already started")
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.tickChs = make([]chan model.TickContext, len(d.components))
	for i, c := range d.components {
		ch := make(chan model.TickContext)
		d.tickChs[i] = ch
		d.wg.Add(1)
		go d.workerLoop(c, ch)
	}
	logger.Debugf("Tick dispatcher started with %d components.", len(d.components))
	return nil
}

// workerLoop waits for tick contexts, runs the component and signals completion.
// Cancellation unblocks both waits; an in-flight tick is abandoned, not rolled back.
func (d *TickDispatcher) workerLoop(c ports.Component, tickCh <-chan model.TickContext) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case tc := <-tickCh:
			err := c.Tick(tc)
			select {
			case <-d.ctx.Done():
				return
			case d.doneCh <- tickResult{component: c.Name(), err: err}:
			}
		}
	}
}

// RunTick publishes tc to every worker and blocks until all of them have
// completed it. Per-component tick errors are joined and returned together.
func (d *TickDispatcher) RunTick(tc model.TickContext) error {
	if !d.started {
		return exception.NewSimErrorf(dispatcherModule, "dispatcher not started")
	}
	for _, ch := range d.tickChs {
		select {
		case <-d.ctx.Done():
			return exception.NewSimErrorf(dispatcherModule, "dispatcher stopped during fan-out")
		case ch <- tc:
		}
	}

	var result *multierror.Error
	for i := 0; i < len(d.tickChs); i++ {
		select {
		case <-d.ctx.Done():
			return exception.NewSimErrorf(dispatcherModule, "dispatcher stopped during barrier wait")
		case res := <-d.doneCh:
			if res.err != nil {
				result = multierror.Append(result, fmt.Errorf("component '%s' tick %d: %w", res.component, tc.TickIndex, res.err))
			}
		}
	}
	return result.ErrorOrNil()
}

// Stop cancels all workers and joins them. A component call already in flight
// runs to completion before its worker exits, but its result is not collected.
func (d *TickDispatcher) Stop() {
	if !d.started {
		return
	}
	d.cancel()
	d.wg.Wait()
	logger.Debugf("Tick dispatcher stopped.")
}
