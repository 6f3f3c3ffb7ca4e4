// Package power implements the electrical subsystem: the battery energy store,
// the per-tick power bus arbiter, the solar generation source, the first-order
// thermal loads and the multi-consumer heater bank.
package power

import (
	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// Battery is a bounded energy reservoir with rate-limited charge and discharge.
// Charge stays within [0, capacity] at all times. The battery is mutated only
// through Discharge and ChargeFromSurplus, both of which are called exclusively
// from the engine's single-threaded phase pipeline.
type Battery struct {
	name              string
	capacityWh        float64
	chargeWh          float64
	maxChargeRateW    float64
	maxDischargeRateW float64
	telemetry         ports.Telemetry
}

// NewBattery creates a Battery starting at half capacity.
func NewBattery(cfg config.BatteryConfig, telemetry ports.Telemetry) *Battery {
	return &Battery{
		name:              "battery",
		capacityWh:        cfg.CapacityWh,
		chargeWh:          cfg.CapacityWh / 2.0,
		maxChargeRateW:    cfg.MaxChargeRateW,
		maxDischargeRateW: cfg.MaxDischargeRateW,
		telemetry:         telemetry,
	}
}

// Name returns the component's stable identifier.
func (b *Battery) Name() string { return b.name }

// Initialize is a no-op; the battery is ready once constructed.
func (b *Battery) Initialize() error { return nil }

// Discharge delivers up to neededW watts for a tick of dt seconds.
// Delivery is limited by the discharge rate and by the energy still stored
// (a charge of E Wh can sustain at most E*3600/dt watts over the tick).
// Returns the watts actually delivered. Non-positive requests deliver nothing.
func (b *Battery) Discharge(neededW, dt float64) float64 {
	if neededW <= 0 || dt <= 0 {
		return 0
	}
	deliveredW := neededW
	if deliveredW > b.maxDischargeRateW {
		deliveredW = b.maxDischargeRateW
	}
	if maxW := b.chargeWh * 3600.0 / dt; deliveredW > maxW {
		deliveredW = maxW
	}
	b.chargeWh -= deliveredW * dt / 3600.0
	b.clamp()
	return deliveredW
}

// ChargeFromSurplus absorbs up to surplusW watts of leftover generation for a
// tick of dt seconds, limited by the charge rate and the remaining headroom.
// Non-positive surplus is ignored.
func (b *Battery) ChargeFromSurplus(surplusW, dt float64) {
	if surplusW <= 0 || dt <= 0 {
		return
	}
	acceptedW := surplusW
	if acceptedW > b.maxChargeRateW {
		acceptedW = b.maxChargeRateW
	}
	b.chargeWh += acceptedW * dt / 3600.0
	b.clamp()
}

func (b *Battery) clamp() {
	if b.chargeWh < 0 {
		b.chargeWh = 0
	}
	if b.chargeWh > b.capacityWh {
		b.chargeWh = b.capacityWh
	}
}

// ChargeWh returns the stored energy in watt-hours.
func (b *Battery) ChargeWh() float64 { return b.chargeWh }

// CapacityWh returns the battery capacity in watt-hours.
func (b *Battery) CapacityWh() float64 { return b.capacityWh }

// Tick logs the post-settlement charge. The engine runs the battery last so
// the logged value reflects this tick's surplus push.
func (b *Battery) Tick(tc model.TickContext) error {
	return b.telemetry.LogWide(b.name, tc.TickIndex, tc.Time,
		[]string{"charge_wh", "capacity_wh"},
		[]float64{b.chargeWh, b.capacityWh})
}

// Shutdown is a no-op.
func (b *Battery) Shutdown() error { return nil }

var _ ports.Component = (*Battery)(nil)
