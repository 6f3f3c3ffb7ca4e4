package power

import (
	"math"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// ThermalLoad models a heated element (effusion cell or substrate heater) with
// a first-order thermal response: netW = appliedW - h*(T - Tenv), then
// T += (netW / C) * dt. Temperature is clamped finite and non-negative,
// falling back to ambient on numerical failure.
//
// The target temperature field is advisory only. It is set from the active
// job's flux so the health monitor can compare achieved against desired; it
// never feeds back into the integration.
type ThermalLoad struct {
	name string

	capacitanceJPerK float64
	lossWPerK        float64
	ambientK         float64

	temperatureK float64
	lastAppliedW float64
	targetK      float64
	telemetry    ports.Telemetry
}

// NewThermalLoad creates a load at ambient temperature.
func NewThermalLoad(name string, cfg config.ThermalLoadConfig, telemetry ports.Telemetry) *ThermalLoad {
	return &ThermalLoad{
		name:             name,
		capacitanceJPerK: cfg.CapacitanceJPerK,
		lossWPerK:        cfg.LossWPerK,
		ambientK:         cfg.AmbientK,
		temperatureK:     cfg.AmbientK,
		telemetry:        telemetry,
	}
}

// Name returns the component's stable identifier.
func (t *ThermalLoad) Name() string { return t.name }

// Initialize is a no-op.
func (t *ThermalLoad) Initialize() error { return nil }

// ApplyHeat integrates one tick of delivered power into temperature.
func (t *ThermalLoad) ApplyHeat(deliveredW, dt float64) {
	t.lastAppliedW = deliveredW
	netW := deliveredW - t.lossWPerK*(t.temperatureK-t.ambientK)
	t.temperatureK += (netW / t.capacitanceJPerK) * dt

	if math.IsNaN(t.temperatureK) || math.IsInf(t.temperatureK, 0) {
		t.temperatureK = t.ambientK
	}
	if t.temperatureK < 0 {
		t.temperatureK = 0
	}
}

// TemperatureK returns the current temperature.
func (t *ThermalLoad) TemperatureK() float64 { return t.temperatureK }

// LastAppliedW returns the watts applied on the most recent ApplyHeat call.
func (t *ThermalLoad) LastAppliedW() float64 { return t.lastAppliedW }

// SetTargetK sets the advisory target temperature.
func (t *ThermalLoad) SetTargetK(targetK float64) { t.targetK = targetK }

// TargetK returns the advisory target temperature.
func (t *ThermalLoad) TargetK() float64 { return t.targetK }

// AmbientK returns the environment temperature the load relaxes toward.
func (t *ThermalLoad) AmbientK() float64 { return t.ambientK }

// LossWPerK returns the linear loss coefficient h.
func (t *ThermalLoad) LossWPerK() float64 { return t.lossWPerK }

// CapacitanceJPerK returns the lumped heat capacity C.
func (t *ThermalLoad) CapacitanceJPerK() float64 { return t.capacitanceJPerK }

// Tick logs the load's current state. Heat is applied by the heater bank, not
// here, so the loads can be dispatched concurrently with other phase-3 components.
func (t *ThermalLoad) Tick(tc model.TickContext) error {
	if t.telemetry == nil {
		return nil
	}
	return t.telemetry.LogWide(t.name, tc.TickIndex, tc.Time,
		[]string{"temp_k", "target_k", "applied_w"},
		[]float64{t.temperatureK, t.targetK, t.lastAppliedW})
}

// Shutdown is a no-op.
func (t *ThermalLoad) Shutdown() error { return nil }

var _ ports.Component = (*ThermalLoad)(nil)
