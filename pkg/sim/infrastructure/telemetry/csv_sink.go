// Package telemetry implements the wide-row diagnostic sink: one CSV stream
// per component, header written once, rows appended per tick.
package telemetry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/spaceforge/forgesim/pkg/sim/core/ports"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

const moduleName = "telemetry"

// ResolveOutputDir picks the artifact directory for a run. The SF_LOG_DIR
// environment variable overrides the configured base; the run ID becomes a
// subdirectory either way.
func ResolveOutputDir(configuredDir, runID string) string {
	base := configuredDir
	if env := os.Getenv("SF_LOG_DIR"); env != "" {
		base = env
	}
	if base == "" {
		base = filepath.Join("data", "raw")
	}
	if runID != "" {
		base = filepath.Join(base, runID)
	}
	return base
}

// stream is one component's open CSV file.
type stream struct {
	file   *os.File
	writer *bufio.Writer
	// cols is the column set fixed by the stream's first row.
	cols []string
}

// CSVSink writes one CSV file per component under a run directory. The first
// row of a stream fixes its schema; later rows with a different column set are
// rejected. Safe for concurrent use by dispatched components.
type CSVSink struct {
	dir string

	mu      sync.Mutex
	streams map[string]*stream
	closed  bool
}

// NewCSVSink creates the run directory and an empty sink.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to create telemetry directory '"+dir+"'", err)
	}
	logger.Infof("Telemetry sink writing to %s.", dir)
	return &CSVSink{
		dir:     dir,
		streams: make(map[string]*stream),
	}, nil
}

// Dir returns the sink's run directory.
func (s *CSVSink) Dir() string { return s.dir }

// LogWide appends one row to the named component stream, creating the file and
// writing the header on first use.
func (s *CSVSink) LogWide(component string, tick int, timeS float64, cols []string, vals []float64) error {
	if len(cols) != len(vals) {
		return exception.NewSimErrorf(moduleName, "column/value count mismatch for '%s': %d vs %d", component, len(cols), len(vals))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return exception.NewSimErrorf(moduleName, "log to '%s' after sink close", component)
	}

	st, ok := s.streams[component]
	if !ok {
		var err error
		st, err = s.openStream(component, cols)
		if err != nil {
			return err
		}
		s.streams[component] = st
	}

	if len(st.cols) != len(cols) {
		return exception.NewSimErrorf(moduleName, "schema change for '%s': stream has %d columns, row has %d", component, len(st.cols), len(cols))
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(tick))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(timeS, 'g', -1, 64))
	for _, v := range vals {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte('\n')

	if _, err := st.writer.WriteString(b.String()); err != nil {
		return exception.NewFatalError(moduleName, "failed to write row for '"+component+"'", err)
	}
	return nil
}

// openStream creates the component's file and writes the header row.
func (s *CSVSink) openStream(component string, cols []string) (*stream, error) {
	path := filepath.Join(s.dir, component+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, exception.NewFatalError(moduleName, "failed to create '"+path+"'", err)
	}

	w := bufio.NewWriter(f)
	header := "tick,time_s"
	if len(cols) > 0 {
		header += "," + strings.Join(cols, ",")
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		f.Close()
		return nil, exception.NewFatalError(moduleName, "failed to write header to '"+path+"'", err)
	}

	fixed := make([]string, len(cols))
	copy(fixed, cols)
	return &stream{file: f, writer: w, cols: fixed}, nil
}

// Close flushes and closes every stream.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var result *multierror.Error
	for component, st := range s.streams {
		if err := st.writer.Flush(); err != nil {
			result = multierror.Append(result, fmt.Errorf("flush '%s': %w", component, err))
		}
		if err := st.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", component, err))
		}
	}
	return result.ErrorOrNil()
}

var _ ports.Telemetry = (*CSVSink)(nil)
