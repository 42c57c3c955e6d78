package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrace-sim/retrace/replay/mem"
)

func TestTimeline_Frame_Idempotent(t *testing.T) {
	timeline := newTestTimeline(t, 4)

	st1, err := timeline.Frame(37)
	require.NoError(t, err)
	first := st1.Clone()

	st2, err := timeline.Frame(37)
	require.NoError(t, err)

	assert.True(t, first.Equal(st2), "two Frame calls with no mutation in between are bit-identical")
}

func TestTimeline_Frame_NegativeFrame_OutOfRange(t *testing.T) {
	timeline := newTestTimeline(t, 4)

	_, err := timeline.Frame(-1)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, int64(-1), oor.Frame)
}

func TestTimeline_Frame_BeyondBound_OutOfRange(t *testing.T) {
	timeline, err := NewTimeline(newCounterProgram(), TimelineConfig{Slots: 4, Bound: 100})
	require.NoError(t, err)

	_, err = timeline.Frame(100)
	assert.NoError(t, err)

	_, err = timeline.Frame(101)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, int64(100), oor.Horizon)
}

func TestTimeline_Frame_MatchesStraightReplay(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(3, "globals.counter", mem.IntValue(30)))
	require.NoError(t, timeline.WriteValue(8, "globals.drift", mem.FloatValue(0)))

	// Seed the slot pool with snapshots at scattered frames first.
	for _, f := range []int64{50, 20, 5, 35} {
		_, err := timeline.Frame(f)
		require.NoError(t, err)
	}
	timeline.SetHotspot("probe", 40)
	timeline.BalanceDistribution(50 * time.Millisecond)

	// A fresh timeline with a different slot budget must agree everywhere.
	reference, err := NewTimeline(newCounterProgram(), TimelineConfig{Slots: 2})
	require.NoError(t, err)
	require.NoError(t, reference.WriteValue(3, "globals.counter", mem.IntValue(30)))
	require.NoError(t, reference.WriteValue(8, "globals.drift", mem.FloatValue(0)))

	for _, f := range []int64{0, 3, 4, 8, 9, 25, 50} {
		got, err := timeline.Frame(f)
		require.NoError(t, err)
		gotCopy := got.Clone()
		want, err := reference.Frame(f)
		require.NoError(t, err)
		assert.True(t, want.Equal(gotCopy), "frame %d differs from straight replay", f)
	}
}

func TestTimeline_WriteValue_InvalidatesCachedFrames(t *testing.T) {
	timeline := newTestTimeline(t, 6)
	timeline.SetHotspot("cursor", 60)
	timeline.BalanceDistribution(50 * time.Millisecond)

	assert.Equal(t, int64(60), counterAt(t, timeline, 60))

	require.NoError(t, timeline.WriteValue(10, "globals.counter", mem.IntValue(0)))
	assert.Equal(t, int64(50), counterAt(t, timeline, 60), "later frames see the past edit")
}

func TestTimeline_CounterScenario_FourSlots(t *testing.T) {
	// 4 slots (1 base + 3 backups); the edit at frame 3 raises the counter
	// by one over its simulated value there.
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(3, "globals.counter", mem.IntValue(4)))

	assert.Equal(t, int64(6), counterAt(t, timeline, 5), "frame 5 sees base value plus one")

	// Inserting a frame at 2 shifts the edit to frame 4; the override value
	// now matches the simulated value there, so the bump disappears.
	require.NoError(t, timeline.InsertFrame(2))
	assert.Equal(t, int64(4), counterAt(t, timeline, 4))
	assert.Equal(t, int64(5), counterAt(t, timeline, 5), "frame 5 reflects the shifted edit")
}

func TestTimeline_InsertThenDelete_RestoresAllFrames(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(3, "globals.counter", mem.IntValue(30)))
	require.NoError(t, timeline.WriteValue(7, "globals.counter", mem.IntValue(70)))

	var before []int64
	for f := int64(0); f <= 10; f++ {
		before = append(before, counterAt(t, timeline, f))
	}

	require.NoError(t, timeline.InsertFrame(5))
	require.NoError(t, timeline.DeleteFrame(5))

	for f := int64(0); f <= 10; f++ {
		assert.Equal(t, before[f], counterAt(t, timeline, f), "frame %d changed across insert+delete", f)
	}
}

func TestTimeline_InsertFrame_ShiftLaw(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(6, "globals.counter", mem.IntValue(60)))

	beforeLow := counterAt(t, timeline, 5)
	require.NoError(t, timeline.InsertFrame(6))

	assert.Equal(t, beforeLow, counterAt(t, timeline, 5), "frames below the insert point are unchanged")
	assert.Nil(t, timeline.Edits().Get(6), "the inserted frame carries no edit")
	require.NotNil(t, timeline.Edits().Get(7), "the edit moved up by one")
	assert.Equal(t, int64(60), counterAt(t, timeline, 7))
}

func TestTimeline_FrameZeroEdit_WellDefined(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(0, "globals.counter", mem.IntValue(1000)))

	assert.Equal(t, int64(1000), counterAt(t, timeline, 0))
	assert.Equal(t, int64(1005), counterAt(t, timeline, 5))

	// The base slot itself stays pristine: resetting the edit restores the
	// unedited frame 0.
	require.NoError(t, timeline.ResetValue(0, "globals.counter"))
	assert.Equal(t, int64(0), counterAt(t, timeline, 0))
}

func TestTimeline_BalanceSafety_AnyBudget(t *testing.T) {
	timeline := newTestTimeline(t, 5)
	require.NoError(t, timeline.WriteValue(12, "globals.counter", mem.IntValue(5)))
	timeline.SetHotspot("cursor", 200)

	var before []int64
	probes := []int64{0, 11, 12, 13, 100, 200, 250}
	for _, f := range probes {
		before = append(before, counterAt(t, timeline, f))
	}

	for _, budget := range []time.Duration{0, time.Microsecond, 5 * time.Millisecond, 50 * time.Millisecond} {
		timeline.BalanceDistribution(budget)
		for i, f := range probes {
			assert.Equal(t, before[i], counterAt(t, timeline, f),
				"budget %v changed frame %d", budget, f)
		}
	}
}

func TestTimeline_Balance_ConvergesOnHotspot(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	timeline.SetHotspot("cursor", 1000)

	cost := func() int64 {
		before := timeline.Stats().StepsRun
		_, err := timeline.Frame(1000)
		require.NoError(t, err)
		return timeline.Stats().StepsRun - before
	}

	initial := cost()
	require.Equal(t, int64(1000), initial, "cold cache replays from the base slot")

	var costs []int64
	for i := 0; i < 5; i++ {
		timeline.BalanceDistribution(100 * time.Millisecond)
		costs = append(costs, cost())
	}

	final := costs[len(costs)-1]
	assert.Less(t, final, initial, "balancing reduces re-simulation cost at the hotspot")
	assert.LessOrEqual(t, final, int64(64), "a snapshot settles within the hotspot ladder")
	for i := 1; i < len(costs); i++ {
		assert.LessOrEqual(t, costs[i], costs[i-1], "cost never regresses across passes")
	}
}

func TestTimeline_Balance_ZeroBudget_DoesNothing(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	timeline.SetHotspot("cursor", 500)

	steps := timeline.Stats().StepsRun
	timeline.BalanceDistribution(0)
	assert.Equal(t, steps, timeline.Stats().StepsRun)
	assert.Equal(t, []int64{0}, timeline.SlotFrames())
}

func TestTimeline_SlotFrames_ReportsBaseAndBackups(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	assert.Equal(t, []int64{0}, timeline.SlotFrames())

	timeline.SetHotspot("cursor", 100)
	timeline.BalanceDistribution(50 * time.Millisecond)

	frames := timeline.SlotFrames()
	assert.Equal(t, int64(0), frames[0], "the base slot is always present")
	assert.Greater(t, len(frames), 1, "balancing populated backup slots")
}

func TestTimeline_RemoveHotspot_DropsLadderTargets(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	timeline.SetHotspot("cursor", 300)
	assert.Contains(t, timeline.pool.targetFrames(), int64(299),
		"a registered hotspot wants a tight ladder behind it")

	timeline.RemoveHotspot("cursor")
	assert.NotContains(t, timeline.pool.targetFrames(), int64(299),
		"removal leaves only the coarse grid")
}

func TestTimeline_BaseView_PristineAndStable(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	require.NoError(t, timeline.WriteValue(0, "globals.counter", mem.IntValue(99)))

	base := timeline.BaseView()
	v, err := base.ReadPath("globals.counter")
	require.NoError(t, err)
	n, _ := v.AsInt()
	assert.Equal(t, int64(0), n, "the base view shows the image before frame-0 edits")

	// Materializing other frames must not disturb the base slot.
	_, err = timeline.Frame(25)
	require.NoError(t, err)
	v, _ = base.ReadPath("globals.counter")
	n, _ = v.AsInt()
	assert.Equal(t, int64(0), n)
}

func TestTimeline_Stats_CountsWork(t *testing.T) {
	timeline := newTestTimeline(t, 4)
	_, err := timeline.Frame(10)
	require.NoError(t, err)
	timeline.BalanceDistribution(time.Millisecond)

	stats := timeline.Stats()
	assert.Equal(t, int64(1), stats.Materializations)
	assert.Equal(t, int64(1), stats.BalancePasses)
	assert.GreaterOrEqual(t, stats.StepsRun, int64(10))
}
