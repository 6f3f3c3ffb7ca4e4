package telemetry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/telemetry"
)

func TestCSVSinkWritesHeaderOncePerStream(t *testing.T) {
	dir := t.TempDir()
	sink, err := telemetry.NewCSVSink(dir)
	require.NoError(t, err)

	cols := []string{"charge_wh", "capacity_wh"}
	require.NoError(t, sink.LogWide("battery", 0, 0.0, cols, []float64{500.0, 1000.0}))
	require.NoError(t, sink.LogWide("battery", 1, 60.0, cols, []float64{498.3, 1000.0}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, "battery.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tick,time_s,charge_wh,capacity_wh", lines[0])
	assert.Equal(t, "0,0,500,1000", lines[1])
	assert.Equal(t, "1,60,498.3,1000", lines[2])
}

func TestCSVSinkKeepsStreamsSeparate(t *testing.T) {
	dir := t.TempDir()
	sink, err := telemetry.NewCSVSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.LogWide("battery", 0, 0.0, []string{"charge_wh"}, []float64{500.0}))
	require.NoError(t, sink.LogWide("orbit", 0, 0.0, []string{"theta_rad"}, []float64{0.0}))
	require.NoError(t, sink.Close())

	assert.FileExists(t, filepath.Join(dir, "battery.csv"))
	assert.FileExists(t, filepath.Join(dir, "orbit.csv"))
}

func TestCSVSinkRejectsSchemaChange(t *testing.T) {
	sink, err := telemetry.NewCSVSink(t.TempDir())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.LogWide("c", 0, 0.0, []string{"a", "b"}, []float64{1, 2}))
	assert.Error(t, sink.LogWide("c", 1, 60.0, []string{"a"}, []float64{1}))
}

func TestCSVSinkRejectsColumnValueMismatch(t *testing.T) {
	sink, err := telemetry.NewCSVSink(t.TempDir())
	require.NoError(t, err)
	defer sink.Close()

	assert.Error(t, sink.LogWide("c", 0, 0.0, []string{"a", "b"}, []float64{1}))
}

func TestCSVSinkRejectsWritesAfterClose(t *testing.T) {
	sink, err := telemetry.NewCSVSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Error(t, sink.LogWide("c", 0, 0.0, []string{"a"}, []float64{1}))
	// Closing twice is harmless.
	assert.NoError(t, sink.Close())
}

func TestResolveOutputDirPrefersEnvironmentOverride(t *testing.T) {
	t.Setenv("SF_LOG_DIR", "")
	assert.Equal(t, filepath.Join("data", "raw", "run-1"), telemetry.ResolveOutputDir("data/raw", "run-1"))

	t.Setenv("SF_LOG_DIR", "/tmp/elsewhere")
	assert.Equal(t, filepath.Join("/tmp/elsewhere", "run-1"), telemetry.ResolveOutputDir("data/raw", "run-1"))
}
