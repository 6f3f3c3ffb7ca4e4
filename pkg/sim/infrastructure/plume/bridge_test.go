package plume_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceforge/forgesim/pkg/sim/core/config"
	"github.com/spaceforge/forgesim/pkg/sim/infrastructure/plume"
	"github.com/spaceforge/forgesim/pkg/sim/sched"
)

func newTestBridge(t *testing.T) (*plume.FileBridge, string) {
	t.Helper()
	dir := t.TempDir()
	b := plume.NewFileBridge(config.PlumeConfig{
		InputDir:         dir,
		DiagPath:         filepath.Join(dir, "wake_diag.csv"),
		CoupleEveryTicks: 10,
		BlockSteps:       200,
	}, nil)
	require.NoError(t, b.Initialize())
	return b, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBridgeInitializeWritesSafeDeckAndResetsDirectives(t *testing.T) {
	_, dir := newTestBridge(t)

	deck := readFile(t, filepath.Join(dir, "params.inc"))
	assert.Contains(t, deck, "variable Fwafer_cm2s  equal 1e+08")
	assert.Contains(t, deck, "variable mbe_active   equal 0")

	assert.Equal(t, "reload\n", readFile(t, filepath.Join(dir, "solver_commands.txt")))
}

func TestBridgeAdvanceReloadsOnlyWhenDirty(t *testing.T) {
	b, dir := newTestBridge(t)
	ctx := context.Background()

	// Clean deck: the advance issues only the run directive.
	require.NoError(t, b.Advance(ctx, 200))
	cmds := readFile(t, filepath.Join(dir, "solver_commands.txt"))
	assert.Equal(t, "reload\nrun 200\n", cmds)

	// A changed parameter marks the deck dirty: rewrite plus reload first.
	b.SetParameter("Fwafer_cm2s", 5.0e13)
	require.NoError(t, b.Advance(ctx, 100))
	cmds = readFile(t, filepath.Join(dir, "solver_commands.txt"))
	assert.Equal(t, "reload\nrun 200\nreload\nrun 100\n", cmds)

	deck := readFile(t, filepath.Join(dir, "params.inc"))
	assert.Contains(t, deck, "variable Fwafer_cm2s  equal 5e+13")
	assert.Contains(t, deck, "variable mbe_active   equal 0")

	// Re-staging the same value does not dirty the deck again.
	b.SetParameter("Fwafer_cm2s", 5.0e13)
	require.NoError(t, b.Advance(ctx, 50))
	cmds = readFile(t, filepath.Join(dir, "solver_commands.txt"))
	assert.True(t, strings.HasSuffix(cmds, "run 100\nrun 50\n"))
}

func TestBridgeReadStateCarriesLastReadingForward(t *testing.T) {
	b, dir := newTestBridge(t)
	diag := filepath.Join(dir, "wake_diag.csv")

	// No diagnostic file yet: flux is the commanded value, readings are zero.
	flux, tempK, density, err := b.ReadState()
	require.NoError(t, err)
	assert.Equal(t, sched.FluxFloorCm2s, flux)
	assert.Equal(t, 0.0, tempK)
	assert.Equal(t, 0.0, density)

	require.NoError(t, os.WriteFile(diag, []byte("step,time,temp_K,density_m3\n100,1.0,285.5,3.2e19\n200,2.0,290.0,3.5e19\n"), 0o644))
	_, tempK, density, err = b.ReadState()
	require.NoError(t, err)
	assert.Equal(t, 290.0, tempK)
	assert.Equal(t, 3.5e19, density)

	// A corrupted file carries the previous reading forward.
	require.NoError(t, os.WriteFile(diag, []byte("step,time,temp_K,density_m3\n300,3.0,NaN,NaN\n"), 0o644))
	_, tempK, density, err = b.ReadState()
	require.NoError(t, err)
	assert.Equal(t, 290.0, tempK)
	assert.Equal(t, 3.5e19, density)
}

func TestBridgeClampsNonPositiveFluxToFloor(t *testing.T) {
	b, dir := newTestBridge(t)

	b.SetParameter("Fwafer_cm2s", -1.0)
	require.NoError(t, b.Advance(context.Background(), 10))

	deck := readFile(t, filepath.Join(dir, "params.inc"))
	assert.Contains(t, deck, "variable Fwafer_cm2s  equal 1e+08")

	flux, _, _, err := b.ReadState()
	require.NoError(t, err)
	assert.Equal(t, sched.FluxFloorCm2s, flux)
}

func TestBridgeBindsConfiguredDeckOverrides(t *testing.T) {
	dir := t.TempDir()
	b := plume.NewFileBridge(config.PlumeConfig{
		InputDir: dir,
		DiagPath: filepath.Join(dir, "wake_diag.csv"),
		Params:   map[string]string{"Fwafer_cm2s": "2.5e13"},
	}, nil)
	require.NoError(t, b.Initialize())

	deck := readFile(t, filepath.Join(dir, "params.inc"))
	assert.Contains(t, deck, "variable Fwafer_cm2s  equal 2.5e+13")
}

func TestBridgeShutdownAppendsQuit(t *testing.T) {
	b, dir := newTestBridge(t)
	require.NoError(t, b.Shutdown())
	cmds := readFile(t, filepath.Join(dir, "solver_commands.txt"))
	assert.True(t, strings.HasSuffix(cmds, "quit\n"))
}
