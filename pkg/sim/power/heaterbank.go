package power

import (
	"sync"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// HeaterBank allocates bus power between the effusion cell and the substrate
// heater. Demands are set by the scheduler between ticks under a mutex. On
// tick, demands exceeding the bank's draw ceiling are proportionally scaled
// down, then drawn from the bus in the configured priority order: the first
// draw has first claim on bus availability, so priority decides who absorbs
// the bus shortfall and who falls back to the battery.
type HeaterBank struct {
	name              string
	maxDrawW          float64
	prioritySubstrate bool

	mu               sync.Mutex
	effusionDemandW  float64
	substrateDemandW float64

	bus       *PowerBus
	effusion  *ThermalLoad
	substrate *ThermalLoad

	lastRequestedW float64
	lastDeliveredW float64

	telemetry ports.Telemetry
}

// NewHeaterBank wires the allocator to its bus and thermal loads.
func NewHeaterBank(cfg config.HeaterBankConfig, bus *PowerBus, effusion, substrate *ThermalLoad, telemetry ports.Telemetry) *HeaterBank {
	return &HeaterBank{
		name:              "heater_bank",
		maxDrawW:          cfg.MaxDrawW,
		prioritySubstrate: cfg.PrioritySubstrate,
		bus:               bus,
		effusion:          effusion,
		substrate:         substrate,
		telemetry:         telemetry,
	}
}

// Name returns the component's stable identifier.
func (h *HeaterBank) Name() string { return h.name }

// Initialize is a no-op.
func (h *HeaterBank) Initialize() error { return nil }

// SetEffusionDemand stages the effusion cell demand for the next tick.
func (h *HeaterBank) SetEffusionDemand(watts float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if watts < 0 {
		watts = 0
	}
	h.effusionDemandW = watts
}

// SetSubstrateDemand stages the substrate heater demand for the next tick.
func (h *HeaterBank) SetSubstrateDemand(watts float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if watts < 0 {
		watts = 0
	}
	h.substrateDemandW = watts
}

// Demands returns the currently staged demands.
func (h *HeaterBank) Demands() (effusionW, substrateW float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.effusionDemandW, h.substrateDemandW
}

// Tick reads both demands once, rations them to the draw ceiling, draws from
// the bus in priority order and applies the delivered watts to the loads.
func (h *HeaterBank) Tick(tc model.TickContext) error {
	effReqW, subReqW := h.Demands()

	// Proportional rationing to the bank ceiling. Both demands shrink by the
	// same factor, so neither starves unless one alone exceeds the ceiling.
	if sum := effReqW + subReqW; sum > h.maxDrawW && sum > 0 {
		scale := h.maxDrawW / sum
		effReqW *= scale
		subReqW *= scale
	}

	var effDelW, subDelW float64
	if h.prioritySubstrate {
		subDelW = h.bus.DrawPower("heater_substrate", subReqW, tc)
		effDelW = h.bus.DrawPower("heater_effusion", effReqW, tc)
	} else {
		effDelW = h.bus.DrawPower("heater_effusion", effReqW, tc)
		subDelW = h.bus.DrawPower("heater_substrate", subReqW, tc)
	}

	h.effusion.ApplyHeat(effDelW, tc.Dt)
	h.substrate.ApplyHeat(subDelW, tc.Dt)

	h.lastRequestedW = effReqW + subReqW
	h.lastDeliveredW = effDelW + subDelW

	prio := 0.0
	if h.prioritySubstrate {
		prio = 1.0
	}
	return h.telemetry.LogWide(h.name, tc.TickIndex, tc.Time,
		[]string{"eff_req_w", "eff_del_w", "sub_req_w", "sub_del_w", "priority_substrate"},
		[]float64{effReqW, effDelW, subReqW, subDelW, prio})
}

// RequestedW returns the post-rationing total demand of the most recent tick.
func (h *HeaterBank) RequestedW() float64 { return h.lastRequestedW }

// DeliveredW returns the total delivered watts of the most recent tick.
func (h *HeaterBank) DeliveredW() float64 { return h.lastDeliveredW }

// Shutdown is a no-op.
func (h *HeaterBank) Shutdown() error { return nil }

var _ ports.Component = (*HeaterBank)(nil)
