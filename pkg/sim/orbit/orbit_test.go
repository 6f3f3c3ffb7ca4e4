package orbit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/orbit"
)

func newTestModel(inclinationDeg, sunThetaDeg float64) *orbit.Model {
	return orbit.NewModel(config.OrbitConfig{
		AltitudeM:      400e3,
		InclinationDeg: inclinationDeg,
		SunThetaDeg:    sunThetaDeg,
	}, nil)
}

func TestOrbitPeriodIsForcedTo94Minutes(t *testing.T) {
	m := newTestModel(51.6, 0)
	assert.Equal(t, 94.0*60.0, m.PeriodS())
	assert.Equal(t, 6371e3+400e3, m.SemiMajorAxisM())
}

func TestOrbitStateAtKeyPhases(t *testing.T) {
	m := newTestModel(0, 0)
	r := m.SemiMajorAxisM()

	// Start of orbit: sub-solar point, full scale.
	s0 := m.StateAt(0)
	assert.InDelta(t, r, s0.XM, 1e-6)
	assert.InDelta(t, 0, s0.YM, 1e-6)
	assert.True(t, s0.InSun)
	assert.InDelta(t, 1.0, s0.SolarScale, 1e-9)

	// Half orbit: anti-solar side, eclipse.
	sHalf := m.StateAt(m.PeriodS() / 2)
	assert.InDelta(t, -r, sHalf.XM, 1e-6)
	assert.False(t, sHalf.InSun)
	assert.Equal(t, 0.0, sHalf.SolarScale)

	// A full orbit wraps back to the start.
	sFull := m.StateAt(m.PeriodS())
	assert.InDelta(t, r, sFull.XM, 1e-3)
	assert.True(t, sFull.InSun)
	assert.InDelta(t, 1.0, sFull.SolarScale, 1e-9)
}

func TestOrbitInclinationRotatesOutOfPlane(t *testing.T) {
	m := newTestModel(90.0, 0)
	r := m.SemiMajorAxisM()

	// At quarter orbit with a polar inclination all displacement goes to z.
	s := m.StateAt(m.PeriodS() / 4)
	assert.InDelta(t, 0, s.XM, 1e-3)
	assert.InDelta(t, 0, s.YM, 1e-3)
	assert.InDelta(t, r, s.ZM, 1e-3)
}

func TestOrbitRadiusIsConstant(t *testing.T) {
	m := newTestModel(51.6, 30.0)
	r := m.SemiMajorAxisM()
	for _, frac := range []float64{0, 0.1, 0.33, 0.5, 0.77, 0.99} {
		s := m.StateAt(frac * m.PeriodS())
		rmag := math.Sqrt(s.XM*s.XM + s.YM*s.YM + s.ZM*s.ZM)
		assert.InDelta(t, r, rmag, 1e-3)
	}
}

func TestOrbitSunlitFractionStaysInUnitRange(t *testing.T) {
	m := newTestModel(51.6, 45.0)
	for ti := 0; ti < 200; ti++ {
		f := m.SunlitFraction(float64(ti) * 60.0)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}
