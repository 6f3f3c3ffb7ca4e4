package sched

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/spaceforge/forgesim/pkg/sim/core/domain/model"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const moduleName = "sched"

// LoadJobTable reads a whitespace-delimited job table:
//
//	startTick endTick targetFlux heaterPowerHint
//
// Blank lines and lines starting with '#' are skipped. Malformed rows are
// skipped with a warning; only an unreadable file is fatal.
func LoadJobTable(path string) ([]model.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to open job table '"+path+"'", err)
	}
	defer f.Close()

	var jobs []model.Job
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		job, ok := parseJobRow(line)
		if !ok {
			logger.Warnf("Skipping malformed job table row %d in %s: %q", lineNo, path, line)
			continue
		}
		jobs = append(jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to read job table '"+path+"'", err)
	}

	logger.Infof("Loaded %d jobs from %s.", len(jobs), path)
	return jobs, nil
}

// parseJobRow parses one table row. A row is valid when it has at least four
// fields, the ticks parse as integers with startTick <= endTick, and the flux
// and power hint parse as floats.
func parseJobRow(line string) (model.Job, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return model.Job{}, false
	}

	startTick, err := strconv.Atoi(fields[0])
	if err != nil {
		return model.Job{}, false
	}
	endTick, err := strconv.Atoi(fields[1])
	if err != nil {
		return model.Job{}, false
	}
	targetFlux, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return model.Job{}, false
	}
	powerHint, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return model.Job{}, false
	}

	if startTick < 0 || endTick < startTick {
		return model.Job{}, false
	}
	return model.Job{
		StartTick:       startTick,
		EndTick:         endTick,
		TargetFlux:      targetFlux,
		HeaterPowerHint: powerHint,
	}, true
}
