package power_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/power"
)

// nopTelemetry discards every row. Shared by the power package tests.
type nopTelemetry struct{}

func (nopTelemetry) LogWide(component string, tick int, timeS float64, cols []string, vals []float64) error {
	return nil
}
func (nopTelemetry) Close() error { return nil }

func newTestBattery(capacityWh, maxChargeW, maxDischargeW float64) *power.Battery {
	return power.NewBattery(config.BatteryConfig{
		CapacityWh:        capacityWh,
		MaxChargeRateW:    maxChargeW,
		MaxDischargeRateW: maxDischargeW,
	}, nopTelemetry{})
}

func TestBatteryStartsAtHalfCapacity(t *testing.T) {
	b := newTestBattery(1000.0, 200.0, 2000.0)

	assert.Equal(t, 1000.0, b.CapacityWh())
	assert.Equal(t, 500.0, b.ChargeWh())
}

func TestBatteryDischargeConvertsWattsToWattHours(t *testing.T) {
	b := newTestBattery(1000.0, 200.0, 2000.0)

	// 100 W over a 60 s tick is 100*60/3600 = 1.666... Wh.
	delivered := b.Discharge(100.0, 60.0)

	assert.Equal(t, 100.0, delivered)
	assert.InDelta(t, 500.0-100.0*60.0/3600.0, b.ChargeWh(), 1e-9)
	assert.InDelta(t, 498.3333333, b.ChargeWh(), 1e-6)
}

func TestBatteryDischargeIsRateLimited(t *testing.T) {
	b := newTestBattery(1000.0, 200.0, 150.0)

	delivered := b.Discharge(400.0, 60.0)

	assert.Equal(t, 150.0, delivered)
}

func TestBatteryDischargeIsEnergyLimited(t *testing.T) {
	b := newTestBattery(2.0, 200.0, 5000.0) // starts at 1 Wh

	// 1 Wh can sustain at most 1*3600/60 = 60 W over a 60 s tick.
	delivered := b.Discharge(1000.0, 60.0)

	assert.InDelta(t, 60.0, delivered, 1e-9)
	assert.InDelta(t, 0.0, b.ChargeWh(), 1e-9)

	// A fully drained battery delivers nothing.
	assert.Equal(t, 0.0, b.Discharge(100.0, 60.0))
}

func TestBatteryIgnoresNonPositiveRequests(t *testing.T) {
	b := newTestBattery(1000.0, 200.0, 2000.0)

	assert.Equal(t, 0.0, b.Discharge(0.0, 60.0))
	assert.Equal(t, 0.0, b.Discharge(-50.0, 60.0))
	assert.Equal(t, 500.0, b.ChargeWh())
}

func TestBatteryChargeFromSurplusIsRateLimited(t *testing.T) {
	b := newTestBattery(1000.0, 200.0, 2000.0)

	// 500 W surplus is capped at the 200 W charge rate: 200*60/3600 Wh gained.
	b.ChargeFromSurplus(500.0, 60.0)

	assert.InDelta(t, 500.0+200.0*60.0/3600.0, b.ChargeWh(), 1e-9)
}

func TestBatteryChargeNeverExceedsCapacity(t *testing.T) {
	b := newTestBattery(10.0, 1e6, 2000.0) // starts at 5 Wh

	b.ChargeFromSurplus(1e9, 3600.0)

	assert.Equal(t, 10.0, b.ChargeWh())
}
