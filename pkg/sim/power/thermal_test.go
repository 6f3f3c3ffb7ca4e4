package power_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/power"
)

func newTestLoad(c, h, ambient float64) *power.ThermalLoad {
	return power.NewThermalLoad("test_load", config.ThermalLoadConfig{
		CapacitanceJPerK: c,
		LossWPerK:        h,
		AmbientK:         ambient,
	}, nopTelemetry{})
}

func TestThermalLoadStartsAtAmbient(t *testing.T) {
	l := newTestLoad(1000.0, 1.5, 300.0)
	assert.Equal(t, 300.0, l.TemperatureK())
}

func TestThermalLoadFirstOrderStep(t *testing.T) {
	l := newTestLoad(1000.0, 1.5, 300.0)

	// At ambient the loss term is zero: T += (150/1000)*60 = +9 K.
	l.ApplyHeat(150.0, 60.0)
	assert.InDelta(t, 309.0, l.TemperatureK(), 1e-9)
	assert.Equal(t, 150.0, l.LastAppliedW())

	// Second step loses 1.5*(309-300) = 13.5 W to the environment.
	l.ApplyHeat(150.0, 60.0)
	assert.InDelta(t, 309.0+((150.0-13.5)/1000.0)*60.0, l.TemperatureK(), 1e-9)
}

func TestThermalLoadRelaxesTowardAmbientWithoutPower(t *testing.T) {
	l := newTestLoad(1000.0, 1.5, 300.0)
	l.ApplyHeat(150.0, 60.0)
	hot := l.TemperatureK()

	l.ApplyHeat(0.0, 60.0)
	assert.Less(t, l.TemperatureK(), hot)
	assert.Greater(t, l.TemperatureK(), 300.0)
}

func TestThermalLoadApproachesSteadyState(t *testing.T) {
	l := newTestLoad(1000.0, 1.5, 300.0)

	// Tss = Tenv + P/h = 300 + 150/1.5 = 400 K.
	for i := 0; i < 500; i++ {
		l.ApplyHeat(150.0, 60.0)
	}
	assert.InDelta(t, 400.0, l.TemperatureK(), 1.0)
}

func TestThermalLoadRecoversFromNumericalFailure(t *testing.T) {
	l := newTestLoad(1000.0, 1.5, 300.0)

	l.ApplyHeat(math.NaN(), 60.0)
	assert.Equal(t, 300.0, l.TemperatureK())

	l.ApplyHeat(math.Inf(1), 60.0)
	assert.Equal(t, 300.0, l.TemperatureK())
}

func TestThermalLoadTemperatureNeverNegative(t *testing.T) {
	l := newTestLoad(1.0, 100.0, 0.5)

	for i := 0; i < 10; i++ {
		l.ApplyHeat(-1000.0, 60.0)
	}
	assert.GreaterOrEqual(t, l.TemperatureK(), 0.0)
}
