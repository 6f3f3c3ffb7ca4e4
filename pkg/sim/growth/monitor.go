// Package growth accumulates deposited wafer dose per job from the beam state
// published by the scheduler, and writes the per-cell dose artifact on shutdown.
package growth

import (
	"math"
	"sync"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/power"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// jobAccum is the per-job dose accumulator.
type jobAccum struct {
	dose      []float64
	hadGrowth bool
	lastTEndS float64
	aborted   bool
}

// Monitor integrates wafer dose on a square grid masked to a circular wafer.
// While the beam is on, every masked cell gains flux*dt per tick. Aborted jobs
// keep their accumulated dose but are tagged suspect in the artifact.
type Monitor struct {
	name  string
	gridN int
	// waferRadiusCells keeps the mask just inside the grid edge.
	waferRadiusCells float64
	monitorPowerW    float64
	outputFormat     string
	outputDir        string

	mask []bool
	jobs []jobAccum

	mu             sync.Mutex
	activeJobIndex int
	beamOn         bool
	fluxCm2s       float64

	bus *power.PowerBus
}

// NewMonitor builds the monitor for a fixed number of jobs. outputDir must
// already be resolved (run-ID subdirectory included).
func NewMonitor(cfg config.GrowthConfig, numJobs int, outputDir string, bus *power.PowerBus) *Monitor {
	gridN := cfg.GridN
	if gridN <= 0 {
		gridN = 32
	}
	return &Monitor{
		name:             "growth_monitor",
		gridN:            gridN,
		waferRadiusCells: 0.5 * float64(gridN) * 0.95,
		monitorPowerW:    cfg.MonitorPowerW,
		outputFormat:     cfg.OutputFormat,
		outputDir:        outputDir,
		jobs:             make([]jobAccum, numJobs),
		activeJobIndex:   -1,
		bus:              bus,
	}
}

// Name returns the component's stable identifier.
func (m *Monitor) Name() string { return m.name }

// Initialize builds the wafer mask and allocates per-job dose grids.
func (m *Monitor) Initialize() error {
	total := m.gridN * m.gridN
	m.mask = make([]bool, total)

	cx := 0.5 * float64(m.gridN-1)
	cy := 0.5 * float64(m.gridN-1)
	for r := 0; r < m.gridN; r++ {
		for c := 0; c < m.gridN; c++ {
			dx := float64(c) - cx
			dy := float64(r) - cy
			m.mask[r*m.gridN+c] = math.Sqrt(dx*dx+dy*dy) <= m.waferRadiusCells
		}
	}

	for j := range m.jobs {
		m.jobs[j] = jobAccum{dose: make([]float64, total)}
	}
	return nil
}

// SetBeamState records the scheduler's beam command for the next tick.
func (m *Monitor) SetBeamState(jobIndex int, beamOn bool, flux float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeJobIndex = jobIndex
	m.beamOn = beamOn
	m.fluxCm2s = flux
}

// MarkJobAborted tags the job's accumulated dose as suspect.
func (m *Monitor) MarkJobAborted(jobIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jobIndex < 0 || jobIndex >= len(m.jobs) {
		return
	}
	m.jobs[jobIndex].aborted = true
}

// Tick integrates one tick of dose while the beam is on. The instrument draw
// is requested from the bus; a shortfall does not stop integration.
func (m *Monitor) Tick(tc model.TickContext) error {
	m.mu.Lock()
	jobIndex := m.activeJobIndex
	beamOn := m.beamOn
	flux := m.fluxCm2s
	m.mu.Unlock()

	if jobIndex < 0 || jobIndex >= len(m.jobs) || !beamOn {
		return nil
	}
	if math.IsNaN(flux) || math.IsInf(flux, 0) || flux <= 0 {
		return nil
	}

	if m.bus != nil && m.monitorPowerW > 0 {
		m.bus.DrawPower(m.name, m.monitorPowerW, tc)
	}

	if tc.Dt <= 0 {
		return nil
	}
	job := &m.jobs[jobIndex]
	increment := flux * tc.Dt
	for idx, in := range m.mask {
		if in {
			job.dose[idx] += increment
		}
	}
	job.hadGrowth = true
	job.lastTEndS = tc.Time
	return nil
}

// Shutdown writes the dose artifact for every job that saw growth.
func (m *Monitor) Shutdown() error {
	if err := m.writeArtifact(); err != nil {
		logger.Errorf("Failed to write growth dose artifact: %v", err)
		return err
	}
	return nil
}

var (
	_ ports.DoseSink  = (*Monitor)(nil)
	_ ports.Component = (*Monitor)(nil)
)
