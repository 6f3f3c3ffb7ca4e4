// Package plume implements the file-based coupling to the external kinetic-gas
// solver: a key/value parameter deck, a directive channel for reload/advance
// commands, and a last-known-good reader for the solver's diagnostic series.
package plume

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/configbinder"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const moduleName = "plume"

const (
	paramsFileName   = "params.inc"
	commandsFileName = "solver_commands.txt"
)

// FileBridge couples the engine to the external solver through three files:
// a parameter deck the solver includes on reload, a directive file it tails
// for "reload" and "run N" commands, and the two-column diagnostic series it
// writes back. Parameter writes are staged and take effect on the next
// coupling block after the deck is marked dirty.
type FileBridge struct {
	name string

	inputDir  string
	diagPath  string
	coupleN   int
	blockN    int
	telemetry ports.Telemetry

	mu     sync.Mutex
	params map[string]float64
	dirty  bool

	cumSteps int

	// Carry-forward of the last finite diagnostic reading.
	lastTempK   float64
	lastDensity float64
	hasReading  bool
	// nInf is the baseline density captured from the first valid reading.
	nInf float64
}

// deckOverrides is the configurable subset of the initial parameter deck.
type deckOverrides struct {
	FwaferCm2s *float64 `yaml:"Fwafer_cm2s"`
	MbeActive  *float64 `yaml:"mbe_active"`
}

// NewFileBridge builds the bridge. The solver's input directory is created on
// Initialize. Configured deck overrides are bound leniently; a malformed
// override is logged and skipped.
func NewFileBridge(cfg config.PlumeConfig, telemetry ports.Telemetry) *FileBridge {
	params := map[string]float64{
		"Fwafer_cm2s": sched.FluxFloorCm2s,
		"mbe_active":  0.0,
	}
	if len(cfg.Params) > 0 {
		var overrides deckOverrides
		if err := configbinder.BindProperties(cfg.Params, &overrides); err != nil {
			logger.Warnf("Ignoring malformed plume deck overrides: %v", err)
		} else {
			if overrides.FwaferCm2s != nil {
				params["Fwafer_cm2s"] = *overrides.FwaferCm2s
			}
			if overrides.MbeActive != nil {
				params["mbe_active"] = *overrides.MbeActive
			}
		}
	}

	return &FileBridge{
		name:      "plume_bridge",
		inputDir:  cfg.InputDir,
		diagPath:  cfg.DiagPath,
		coupleN:   cfg.CoupleEveryTicks,
		blockN:    cfg.BlockSteps,
		telemetry: telemetry,
		params:    params,
		dirty:     true,
	}
}

// Name returns the component's stable identifier.
func (b *FileBridge) Name() string { return b.name }

// Initialize writes the starting deck and resets the directive channel.
func (b *FileBridge) Initialize() error {
	if err := os.MkdirAll(b.inputDir, 0o755); err != nil {
		return exception.NewFatalError(moduleName, "failed to create solver input directory '"+b.inputDir+"'", err)
	}
	if err := b.writeParams(); err != nil {
		return err
	}

	path := filepath.Join(b.inputDir, commandsFileName)
	if err := os.WriteFile(path, []byte("reload\n"), 0o644); err != nil {
		return exception.NewFatalError(moduleName, "failed to reset directive file '"+path+"'", err)
	}
	b.dirty = false
	return nil
}

// SetParameter stages a named scalar. Staging a changed value marks the deck dirty.
func (b *FileBridge) SetParameter(name string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.params[name]; ok && prev == value {
		return
	}
	b.params[name] = value
	b.dirty = true
}

// MarkDirty forces a deck rewrite and reload before the next advance.
func (b *FileBridge) MarkDirty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = true
}

// writeParams writes the parameter deck. The wafer flux is clamped to the safe
// floor and mbe_active to zero when non-finite; the solver tolerates neither a
// zero flux nor NaNs.
func (b *FileBridge) writeParams() error {
	b.mu.Lock()
	flux := b.params["Fwafer_cm2s"]
	active := b.params["mbe_active"]
	b.mu.Unlock()

	if math.IsNaN(flux) || math.IsInf(flux, 0) || flux <= 0 {
		flux = sched.FluxFloorCm2s
	}
	if math.IsNaN(active) || math.IsInf(active, 0) {
		active = 0
	}

	path := filepath.Join(b.inputDir, paramsFileName)
	f, err := os.Create(path)
	if err != nil {
		return exception.NewFatalError(moduleName, "failed to write parameter deck '"+path+"'", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "variable Fwafer_cm2s  equal %g\n", flux)
	fmt.Fprintf(w, "variable mbe_active   equal %g\n", active)
	if err := w.Flush(); err != nil {
		return exception.NewFatalError(moduleName, "failed to flush parameter deck '"+path+"'", err)
	}

	logger.Debugf("Wrote %s: Fwafer_cm2s=%g, mbe_active=%g", path, flux, active)
	return nil
}

// appendDirective appends one command line to the directive file.
func (b *FileBridge) appendDirective(line string) error {
	path := filepath.Join(b.inputDir, commandsFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return exception.NewFatalError(moduleName, "failed to open directive file '"+path+"'", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return exception.NewFatalError(moduleName, "failed to append directive to '"+path+"'", err)
	}
	return nil
}

// Advance runs the solver for one coupling block: rewrite and reload the deck
// when dirty, then issue the run directive.
func (b *FileBridge) Advance(ctx context.Context, steps int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.mu.Lock()
	dirty := b.dirty
	b.dirty = false
	b.mu.Unlock()

	if dirty {
		if err := b.writeParams(); err != nil {
			return err
		}
		if err := b.appendDirective("reload"); err != nil {
			return err
		}
	}
	if steps <= 0 {
		return nil
	}
	if err := b.appendDirective("run " + strconv.Itoa(steps)); err != nil {
		return err
	}
	b.cumSteps += steps
	return nil
}

// ReadState returns the commanded wafer flux plus the solver's latest
// temperature and density. A missing, stale or non-finite diagnostic row
// carries the previous reading forward.
func (b *FileBridge) ReadState() (flux, tempK, density float64, err error) {
	b.mu.Lock()
	flux = b.params["Fwafer_cm2s"]
	b.mu.Unlock()
	if math.IsNaN(flux) || math.IsInf(flux, 0) || flux <= 0 {
		flux = sched.FluxFloorCm2s
	}

	if t, n, ok := readLastDiagRow(b.diagPath); ok {
		b.lastTempK = t
		b.lastDensity = n
		b.hasReading = true
		if b.nInf == 0 && n > 0 {
			b.nInf = n
		}
	}
	return flux, b.lastTempK, b.lastDensity, nil
}

// readLastDiagRow parses the last non-empty data line of the solver's
// diagnostic CSV (step,time,temp_K,density_m3). Returns ok=false for a
// missing file, no data rows, or non-finite values.
func readLastDiagRow(path string) (tempK, density float64, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, false // header
	}
	var last string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if last == "" {
		return 0, 0, false
	}

	toks := strings.Split(last, ",")
	if len(toks) < 4 {
		return 0, 0, false
	}
	t, err1 := strconv.ParseFloat(strings.TrimSpace(toks[2]), 64)
	n, err2 := strconv.ParseFloat(strings.TrimSpace(toks[3]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, 0, false
	}
	return t, n, true
}

// Tick advances the solver on the coupling cadence and logs the latest reading.
func (b *FileBridge) Tick(tc model.TickContext) error {
	ran := 0.0
	if b.coupleN > 0 && tc.TickIndex%b.coupleN == 0 {
		if err := b.Advance(context.Background(), b.blockN); err != nil {
			return err
		}
		ran = float64(b.blockN)
	}

	_, tempK, density, _ := b.ReadState()
	ratio := 0.0
	if b.nInf > 0 {
		ratio = density / b.nInf
	}
	return b.telemetry.LogWide(b.name, tc.TickIndex, tc.Time,
		[]string{"temp_k", "density_m3", "density_ratio", "ran_steps", "cum_steps"},
		[]float64{tempK, density, ratio, ran, float64(b.cumSteps)})
}

// Shutdown signals the solver to stop.
func (b *FileBridge) Shutdown() error {
	return b.appendDirective("quit")
}

var (
	_ ports.PlumeSolver = (*FileBridge)(nil)
	_ ports.Component   = (*FileBridge)(nil)
)
