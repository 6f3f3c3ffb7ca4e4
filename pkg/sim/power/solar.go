package power

import (
	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
)

// SolarArray converts incident sunlight into bus power. Output for a tick is
// baseInputW * sunlitFraction(t) * efficiency, pushed onto the bus during the
// generation phase.
type SolarArray struct {
	name         string
	baseInputW   float64
	efficiency   float64
	illumination ports.Illumination
	bus          *PowerBus

	lastOutputW float64
	lastSunlit  float64

	telemetry ports.Telemetry
}

// NewSolarArray creates the generation source.
func NewSolarArray(cfg config.SolarConfig, illumination ports.Illumination, bus *PowerBus, telemetry ports.Telemetry) *SolarArray {
	return &SolarArray{
		name:         "solar_array",
		baseInputW:   cfg.BaseInputW,
		efficiency:   cfg.Efficiency,
		illumination: illumination,
		bus:          bus,
		telemetry:    telemetry,
	}
}

// Name returns the component's stable identifier.
func (s *SolarArray) Name() string { return s.name }

// Initialize is a no-op.
func (s *SolarArray) Initialize() error { return nil }

// Tick computes this tick's electrical output and pushes it onto the bus.
func (s *SolarArray) Tick(tc model.TickContext) error {
	sunlit := s.illumination.SunlitFraction(tc.Time)
	if sunlit < 0 {
		sunlit = 0
	}
	if sunlit > 1 {
		sunlit = 1
	}
	outputW := s.baseInputW * sunlit * s.efficiency

	s.lastSunlit = sunlit
	s.lastOutputW = outputW
	s.bus.AddPower(outputW)

	return s.telemetry.LogWide(s.name, tc.TickIndex, tc.Time,
		[]string{"sunlit_fraction", "output_w"},
		[]float64{sunlit, outputW})
}

// OutputW returns the electrical output of the most recent tick.
func (s *SolarArray) OutputW() float64 { return s.lastOutputW }

// SunlitFraction returns the illumination scale of the most recent tick.
func (s *SolarArray) SunlitFraction() float64 { return s.lastSunlit }

// Shutdown is a no-op.
func (s *SolarArray) Shutdown() error { return nil }

var _ ports.Component = (*SolarArray)(nil)
