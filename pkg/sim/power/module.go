package power

import (
	"go.uber.org/fx"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/metrics"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// newBattery adapts the root config for NewBattery.
func newBattery(cfg *config.Config, telemetry ports.Telemetry) *Battery {
	return NewBattery(cfg.ForgeSim.Power.Battery, telemetry)
}

// newPowerBus adapts the root config for NewPowerBus.
func newPowerBus(battery *Battery, telemetry ports.Telemetry, recorder metrics.MetricRecorder) *PowerBus {
	return NewPowerBus(battery, telemetry, recorder)
}

// newSolarArray adapts the root config for NewSolarArray.
func newSolarArray(cfg *config.Config, illumination ports.Illumination, bus *PowerBus, telemetry ports.Telemetry) *SolarArray {
	return NewSolarArray(cfg.ForgeSim.Power.Solar, illumination, bus, telemetry)
}

// newEffusionLoad provides the effusion cell thermal load.
func newEffusionLoad(cfg *config.Config, telemetry ports.Telemetry) *ThermalLoad {
	return NewThermalLoad("effusion_cell", cfg.ForgeSim.Thermal.Effusion, telemetry)
}

// newSubstrateLoad provides the substrate heater thermal load.
func newSubstrateLoad(cfg *config.Config, telemetry ports.Telemetry) *ThermalLoad {
	return NewThermalLoad("substrate_heater", cfg.ForgeSim.Thermal.Substrate, telemetry)
}

// newHeaterBank wires the allocator to its named thermal loads.
func newHeaterBank(cfg *config.Config, bus *PowerBus, p heaterBankParams, telemetry ports.Telemetry) *HeaterBank {
	return NewHeaterBank(cfg.ForgeSim.Power.HeaterBank, bus, p.Effusion, p.Substrate, telemetry)
}

// heaterBankParams collects the named thermal loads for the heater bank.
type heaterBankParams struct {
	fx.In
	Effusion  *ThermalLoad `name:"effusion"`
	Substrate *ThermalLoad `name:"substrate"`
}

// Module provides the electrical subsystem components to Fx.
var Module = fx.Options(
	fx.Provide(newBattery),
	fx.Provide(newPowerBus),
	fx.Provide(newSolarArray),
	fx.Provide(fx.Annotate(newEffusionLoad, fx.ResultTags(`name:"effusion"`))),
	fx.Provide(fx.Annotate(newSubstrateLoad, fx.ResultTags(`name:"substrate"`))),
	fx.Provide(newHeaterBank),
)
