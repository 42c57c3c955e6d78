package replay

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrace-sim/retrace/replay/mem"
)

// newCounterProgram builds the minimal deterministic program used across the
// core tests: a u64 counter that increments every step and a f32 drift that
// accumulates 0.5 per step.
//
// At frame f with no edits: counter == f, drift == 0.5*f.
func newCounterProgram() *mem.Program {
	layout := mem.NewLayout(16)
	layout.AddGlobal("counter", mem.Field{Offset: 0, Kind: mem.KindU64})
	layout.AddGlobal("drift", mem.Field{Offset: 8, Kind: mem.KindF32})
	layout.AddGlobal("flags", mem.Field{Offset: 12, Kind: mem.KindU8})
	return &mem.Program{
		Name:   "counter",
		Layout: layout,
		Step: func(buf []byte) {
			binary.LittleEndian.PutUint64(buf[0:], binary.LittleEndian.Uint64(buf[0:])+1)
			f := mem.Field{Offset: 8, Kind: mem.KindF32}
			v, _ := mem.ReadField(buf, f).AsFloat()
			mem.WriteField(buf, f, mem.FloatValue(v+0.5))
		},
	}
}

func counterVars() []VarSpec {
	return []VarSpec{
		{Name: "counter", Path: "globals.counter", Group: "globals"},
		{Name: "drift", Path: "globals.drift", Group: "globals"},
		{Name: "flags", Path: "globals.flags", Group: "globals"},
	}
}

const (
	bhvCrawlerAddr mem.Address = 0x2000
	bhvFlyerAddr   mem.Address = 0x2040
)

// newWorldProgram builds a program with an object pool and a surface pool.
// Slot 0 spawns at frame 0 running bhvCrawler; slot 1 spawns at frame 10
// running bhvFlyer and despawns at frame 50. Surface 0 is active, surface 1
// is not. Active objects advance a per-object timer each step.
func newWorldProgram() *mem.Program {
	layout := mem.NewLayout(8 + 2*16 + 2*8)
	layout.AddGlobal("clock", mem.Field{Offset: 0, Kind: mem.KindU64})
	layout.AddTable("objects", &mem.Table{
		Base:   8,
		Stride: 16,
		Count:  2,
		Fields: map[string]mem.Field{
			"active":   {Offset: 0, Kind: mem.KindU8},
			"behavior": {Offset: 4, Kind: mem.KindAddr},
			"timer":    {Offset: 8, Kind: mem.KindU32},
		},
	})
	layout.AddTable("surfaces", &mem.Table{
		Base:   8 + 2*16,
		Stride: 8,
		Count:  2,
		Fields: map[string]mem.Field{
			"active": {Offset: 0, Kind: mem.KindU8},
			"height": {Offset: 4, Kind: mem.KindF32},
		},
	})

	object := func(slot int, field mem.Field) mem.Field {
		field.Offset += mem.Address(8 + slot*16)
		return field
	}
	activeF := mem.Field{Offset: 0, Kind: mem.KindU8}
	behaviorF := mem.Field{Offset: 4, Kind: mem.KindAddr}
	timerF := mem.Field{Offset: 8, Kind: mem.KindU32}

	return &mem.Program{
		Name:   "world",
		Layout: layout,
		Init: func(buf []byte) {
			mem.WriteField(buf, object(0, activeF), mem.IntValue(1))
			mem.WriteField(buf, object(0, behaviorF), mem.AddrValue(bhvCrawlerAddr))
			// surface 0 active at height 12.5
			mem.WriteField(buf, mem.Field{Offset: 8 + 2*16, Kind: mem.KindU8}, mem.IntValue(1))
			mem.WriteField(buf, mem.Field{Offset: 8 + 2*16 + 4, Kind: mem.KindF32}, mem.FloatValue(12.5))
		},
		Step: func(buf []byte) {
			clock := binary.LittleEndian.Uint64(buf[0:]) + 1
			binary.LittleEndian.PutUint64(buf[0:], clock)
			for slot := 0; slot < 2; slot++ {
				if n, _ := mem.ReadField(buf, object(slot, activeF)).AsInt(); n != 0 {
					t, _ := mem.ReadField(buf, object(slot, timerF)).AsInt()
					mem.WriteField(buf, object(slot, timerF), mem.IntValue(t+1))
				}
			}
			switch clock {
			case 10:
				mem.WriteField(buf, object(1, activeF), mem.IntValue(1))
				mem.WriteField(buf, object(1, behaviorF), mem.AddrValue(bhvFlyerAddr))
			case 50:
				mem.WriteField(buf, object(1, activeF), mem.IntValue(0))
			}
		},
		Symbols: map[mem.Address]string{
			bhvCrawlerAddr: "bhvCrawler",
			bhvFlyerAddr:   "bhvFlyer",
		},
	}
}

func worldVars() []VarSpec {
	return []VarSpec{
		{Name: "clock", Path: "globals.clock", Group: "globals"},
		{Name: "obj-timer", Path: "objects[$object].timer", Label: "timer", Group: "objects"},
		{Name: "obj-behavior", Path: "objects[$object].behavior", Label: "behavior", Group: "objects"},
		{Name: "surf-height", Path: "surfaces[$surface].height", Label: "height", Group: "surfaces"},
	}
}

// newTestTimeline builds a timeline over the counter program.
func newTestTimeline(t *testing.T, slots int) *Timeline {
	t.Helper()
	timeline, err := NewTimeline(newCounterProgram(), TimelineConfig{Slots: slots})
	require.NoError(t, err)
	return timeline
}

// newTestPipeline loads a program into a fresh loader.
func newTestPipeline(t *testing.T, prog *mem.Program, vars []VarSpec, slots int) *Pipeline {
	t.Helper()
	p, err := NewLoader().Load(prog, LoadOptions{
		Timeline: TimelineConfig{Slots: slots},
		Vars:     vars,
	})
	require.NoError(t, err)
	return p
}

// counterAt reads globals.counter at the given frame.
func counterAt(t *testing.T, timeline *Timeline, frame int64) int64 {
	t.Helper()
	st, err := timeline.Frame(frame)
	require.NoError(t, err)
	v, err := st.ReadPath("globals.counter")
	require.NoError(t, err)
	n, ok := v.AsInt()
	require.True(t, ok)
	return n
}
