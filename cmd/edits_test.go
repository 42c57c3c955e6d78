package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrace-sim/retrace/replay"
	"github.com/retrace-sim/retrace/replay/machine"
)

func demoTimeline(t *testing.T) *replay.Timeline {
	t.Helper()
	m, err := machine.Compile(machine.Demo())
	require.NoError(t, err)
	timeline, err := replay.NewTimeline(m.Program, replay.TimelineConfig{Slots: 4})
	require.NoError(t, err)
	return timeline
}

func TestLoadEdits_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
edits:
  - frame: 3
    set:
      - path: globals.coins
        value: 12
  - frame: 5
    set:
      - path: globals.vel_x
        value: -2.5
`), 0o644))

	timeline := demoTimeline(t)
	require.NoError(t, LoadEdits(path, timeline))

	st, err := timeline.Frame(3)
	require.NoError(t, err)
	v, err := st.ReadPath("globals.coins")
	require.NoError(t, err)
	n, _ := v.AsInt()
	assert.Equal(t, int64(12), n)

	st, err = timeline.Frame(5)
	require.NoError(t, err)
	v, err = st.ReadPath("globals.vel_x")
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.InDelta(t, -2.5, f, 1e-6)
}

func TestLoadEdits_RejectsUnknownPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
edits:
  - frame: 2
    set:
      - path: globals.ghost
        value: 1
`), 0o644))

	err := LoadEdits(path, demoTimeline(t))
	assert.ErrorContains(t, err, "frame 2")
}

func TestLoadEdits_RejectsNonScalarValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
edits:
  - frame: 2
    set:
      - path: globals.coins
        value: [1, 2]
`), 0o644))

	err := LoadEdits(path, demoTimeline(t))
	assert.ErrorContains(t, err, "integer or a float")
}

func TestLoadEdits_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("edits:\n  - frame: 1\n    writes: []\n"), 0o644))

	assert.Error(t, LoadEdits(path, demoTimeline(t)))
}

func TestSaveEdits_RoundTrip(t *testing.T) {
	timeline := demoTimeline(t)
	require.NoError(t, LoadEdits(writeEditFile(t, `
edits:
  - frame: 3
    set:
      - path: globals.coins
        value: 12
      - path: globals.vel_x
        value: 0.5
  - frame: 9
    set:
      - path: globals.timer
        value: 100
`), timeline))

	// Shift the log, save it, and load the result into a fresh timeline.
	require.NoError(t, timeline.InsertFrame(5))
	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, SaveEdits(out, timeline))

	restored := demoTimeline(t)
	require.NoError(t, LoadEdits(out, restored))
	assert.Equal(t, []int64{3, 10}, restored.Edits().Frames())

	st, err := restored.Frame(10)
	require.NoError(t, err)
	v, err := st.ReadPath("globals.timer")
	require.NoError(t, err)
	n, _ := v.AsInt()
	assert.Equal(t, int64(100), n)
}

func writeEditFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
