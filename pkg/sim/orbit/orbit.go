// Package orbit models a circular Earth orbit and the sunlight it delivers:
// position and velocity in an Earth-centered inertial frame, a geometric
// eclipse check against a fixed Sun direction, and a smooth phase-locked
// solar scale used by the generation phase.
package orbit

import (
	"math"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

const (
	earthRadiusM = 6371e3
	earthMuM3S2  = 3.986004418e14

	// The period is forced to 94 minutes regardless of altitude, so the solar
	// scale stays locked to the external solver's matching sinusoid.
	forcedPeriodS = 94.0 * 60.0
)

// State holds the derived orbit quantities at one instant.
type State struct {
	ThetaRad float64

	// Position in the ECI frame, meters.
	XM, YM, ZM float64
	// Velocity in the ECI frame, meters per second.
	VxMps, VyMps, VzMps float64

	// InSun is the geometric eclipse check: true when the spacecraft is on
	// the sub-solar side of Earth.
	InSun bool
	// SolarScale is the phase-locked sinusoid in [0, 1], zeroed in eclipse.
	SolarScale float64
}

// Model is a circular-orbit illumination source. It is stateless per query:
// every derived quantity is a closed-form function of elapsed time, so it can
// be read from the generation phase and ticked for logging concurrently.
type Model struct {
	name string

	semiMajorAxisM float64
	meanMotionRadS float64
	periodS        float64
	inclinationRad float64
	sunThetaRad    float64

	telemetry ports.Telemetry
}

// NewModel builds the orbit model from configuration. Angles arrive in degrees.
func NewModel(cfg config.OrbitConfig, telemetry ports.Telemetry) *Model {
	return &Model{
		name:           "orbit",
		semiMajorAxisM: earthRadiusM + cfg.AltitudeM,
		meanMotionRadS: 2.0 * math.Pi / forcedPeriodS,
		periodS:        forcedPeriodS,
		inclinationRad: cfg.InclinationDeg * math.Pi / 180.0,
		sunThetaRad:    cfg.SunThetaDeg * math.Pi / 180.0,
		telemetry:      telemetry,
	}
}

// PeriodS returns the orbital period in seconds.
func (m *Model) PeriodS() float64 { return m.periodS }

// SemiMajorAxisM returns the orbit's semi-major axis in meters.
func (m *Model) SemiMajorAxisM() float64 { return m.semiMajorAxisM }

// StateAt computes the full orbit state at elapsed time t seconds.
func (m *Model) StateAt(t float64) State {
	twoPi := 2.0 * math.Pi
	theta := math.Mod(m.meanMotionRadS*t, twoPi)
	if theta < 0 {
		theta += twoPi
	}

	r := m.semiMajorAxisM
	ct := math.Cos(theta)
	st := math.Sin(theta)

	// Orbital-plane position, rotated by inclination about the x-axis.
	ci := math.Cos(m.inclinationRad)
	si := math.Sin(m.inclinationRad)
	x := r * ct
	y := r * st * ci
	z := r * st * si

	v := r * m.meanMotionRadS
	vx := -v * st
	vy := v * ct * ci
	vz := v * ct * si

	// Eclipse check: dot the position against the Sun direction in the
	// reference plane.
	sunX := math.Cos(m.sunThetaRad)
	sunY := math.Sin(m.sunThetaRad)
	dot := x*sunX + y*sunY
	rmag := math.Sqrt(x*x + y*y + z*z)
	cosAlpha := 0.0
	if rmag > 0 {
		cosAlpha = dot / rmag
	}
	inSun := cosAlpha > 0

	// Phase-locked sinusoid: 1 at the start of each orbit, 0 at half-orbit,
	// gated to zero by the eclipse geometry.
	scale := 0.0
	if m.periodS > 0 {
		tMod := math.Mod(t, m.periodS)
		if tMod < 0 {
			tMod += m.periodS
		}
		phi := twoPi * (tMod / m.periodS)
		scale = 0.5 * (1.0 + math.Cos(phi))
	}
	if !inSun {
		scale = 0
	}
	if scale < 0 {
		scale = 0
	}
	if scale > 1 {
		scale = 1
	}

	return State{
		ThetaRad:   theta,
		XM:         x,
		YM:         y,
		ZM:         z,
		VxMps:      vx,
		VyMps:      vy,
		VzMps:      vz,
		InSun:      inSun,
		SolarScale: scale,
	}
}

// SunlitFraction returns the illumination scale at elapsed time t.
func (m *Model) SunlitFraction(t float64) float64 {
	return m.StateAt(t).SolarScale
}

// Name returns the component's stable identifier.
func (m *Model) Name() string { return m.name }

// Initialize is a no-op.
func (m *Model) Initialize() error { return nil }

// Tick logs the orbit state for the current tick.
func (m *Model) Tick(tc model.TickContext) error {
	st := m.StateAt(tc.Time)
	inSun := 0.0
	if st.InSun {
		inSun = 1.0
	}
	return m.telemetry.LogWide(m.name, tc.TickIndex, tc.Time,
		[]string{"theta_rad", "x_m", "y_m", "z_m", "in_sun", "solar_scale"},
		[]float64{st.ThetaRad, st.XM, st.YM, st.ZM, inSun, st.SolarScale})
}

// Shutdown is a no-op.
func (m *Model) Shutdown() error { return nil }

var (
	_ ports.Illumination = (*Model)(nil)
	_ ports.Component    = (*Model)(nil)
)
