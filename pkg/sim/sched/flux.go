// Package sched loads the job schedule table and runs the scheduler state
// machine: job activation by tick window, warm-up estimation, dual streak-based
// health gating and abort handling.
package sched

import "math"

// FluxFloorCm2s is the safe floor value forced onto the external solver's
// wafer-flux parameter whenever no job is running or a job has been aborted.
// A hard zero would stall the solver's particle bookkeeping.
const FluxFloorCm2s = 1.0e8

// Design points for the flux-to-power map.
const (
	fluxLowCm2s  = 5.0e13
	fluxHighCm2s = 1.0e14
	powerLowW    = 120.0
	powerHighW   = 180.0
	powerClampW  = 200.0
)

// FluxToHeaterPower maps a commanded wafer flux to effusion heater watts by
// linear interpolation between the two design points, clamped to [0, 200].
// Non-finite or non-positive flux means no beam and therefore no heater.
func FluxToHeaterPower(fluxCm2s float64) float64 {
	if math.IsNaN(fluxCm2s) || math.IsInf(fluxCm2s, 0) || fluxCm2s <= 0 {
		return 0
	}

	f := fluxCm2s
	if f < fluxLowCm2s {
		f = fluxLowCm2s
	}
	if f > fluxHighCm2s {
		f = fluxHighCm2s
	}

	scale := (f - fluxLowCm2s) / (fluxHighCm2s - fluxLowCm2s)
	p := powerLowW + scale*(powerHighW-powerLowW)

	if p < 0 {
		p = 0
	}
	if p > powerClampW {
		p = powerClampW
	}
	return p
}
