package power

import (
	"context"
	"sync"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// PowerBus arbitrates power within a single tick. Sources push generation onto
// it with AddPower; consumers pull with DrawPower and receive a partial grant
// when supply is short, topped up from the battery. The bus never stores
// energy across ticks: whatever is left at settlement goes to the battery and
// every accumulator returns to zero.
//
// Generation and settlement happen on the engine's single-threaded phase
// pipeline, but dispatched components may draw concurrently from the worker
// pool, so the accumulators and the battery fallback are serialized by a mutex.
type PowerBus struct {
	name    string
	battery *Battery

	mu         sync.Mutex
	availableW float64
	addedW     float64
	requestedW float64
	grantedW   float64

	telemetry ports.Telemetry
	recorder  metrics.MetricRecorder
}

// NewPowerBus creates a bus backed by the given battery.
func NewPowerBus(battery *Battery, telemetry ports.Telemetry, recorder metrics.MetricRecorder) *PowerBus {
	return &PowerBus{
		name:      "power_bus",
		battery:   battery,
		telemetry: telemetry,
		recorder:  recorder,
	}
}

// Name returns the component's stable identifier.
func (p *PowerBus) Name() string { return p.name }

// Initialize is a no-op.
func (p *PowerBus) Initialize() error { return nil }

// AddPower accumulates generation for the current tick. Non-positive input is ignored.
func (p *PowerBus) AddPower(watts float64) {
	if watts <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availableW += watts
	p.addedW += watts
}

// DrawPower grants up to requestedW watts to the named consumer. The grant is
// served first from the bus's available pool, then the remainder from the
// battery. The requested accumulator always counts the full request; the
// granted accumulator counts only what was delivered.
func (p *PowerBus) DrawPower(consumer string, requestedW float64, tc model.TickContext) float64 {
	if requestedW <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestedW += requestedW

	grantedW := 0.0
	if p.availableW > 0 {
		fromBus := requestedW
		if fromBus > p.availableW {
			fromBus = p.availableW
		}
		p.availableW -= fromBus
		grantedW += fromBus
	}
	if shortfallW := requestedW - grantedW; shortfallW > 0 {
		grantedW += p.battery.Discharge(shortfallW, tc.Dt)
	}

	p.grantedW += grantedW
	p.recorder.RecordPowerGrant(context.Background(), consumer, requestedW, grantedW)
	return grantedW
}

// Totals returns the current accumulator values. The engine latches these
// before settlement zeroes them.
func (p *PowerBus) Totals() model.BusTotals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.BusTotals{
		AddedW:     p.addedW,
		RequestedW: p.requestedW,
		GrantedW:   p.grantedW,
		AvailableW: p.availableW,
	}
}

// Tick settles the current tick: leftover generation is pushed to the battery
// as surplus, one diagnostic row is emitted, and every accumulator resets.
func (p *PowerBus) Tick(tc model.TickContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.availableW > 0 {
		p.battery.ChargeFromSurplus(p.availableW, tc.Dt)
	}

	err := p.telemetry.LogWide(p.name, tc.TickIndex, tc.Time,
		[]string{"added_w", "requested_w", "granted_w", "remaining_w"},
		[]float64{p.addedW, p.requestedW, p.grantedW, p.availableW})

	p.availableW = 0
	p.addedW = 0
	p.requestedW = 0
	p.grantedW = 0
	return err
}

// Shutdown is a no-op.
func (p *PowerBus) Shutdown() error { return nil }

var _ ports.Component = (*PowerBus)(nil)
