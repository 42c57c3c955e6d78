package replay

import (
	"time"

	"github.com/retrace-sim/retrace/replay/mem"
)

// Stats are cumulative counters over a timeline's lifetime. They exist so
// callers (and tests) can observe re-simulation cost without timing clocks.
type Stats struct {
	// StepsRun is the total number of step-function invocations.
	StepsRun int64
	// Materializations is the number of Frame calls served.
	Materializations int64
	// BalancePasses is the number of BalanceDistribution calls.
	BalancePasses int64
}

// Timeline turns the strictly sequential simulation into a random-access
// array of frames. It owns the slot pool and the edit log; a Pipeline owns
// the Timeline. All methods must be serialized by the caller.
type Timeline struct {
	layout  *mem.Layout
	symbols *mem.SymbolTable
	drv     *driver
	log     *EditLog
	pool    *slotPool

	// bound is the highest addressable frame; 0 means unbounded.
	bound int64

	materializations int64
	balancePasses    int64
}

// TimelineConfig selects the snapshot budget and the optional frame bound.
type TimelineConfig struct {
	// Slots is the total snapshot count, base slot included.
	// Zero selects DefaultSlotCount.
	Slots int
	// Bound caps addressable frames; 0 leaves the timeline unbounded.
	Bound int64
}

// NewTimeline builds a timeline over the given program.
func NewTimeline(prog *mem.Program, cfg TimelineConfig) (*Timeline, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Slots
	if n == 0 {
		n = DefaultSlotCount
	}
	drv := &driver{step: prog.Step}
	log := NewEditLog()
	return &Timeline{
		layout:  prog.Layout,
		symbols: mem.NewSymbolTable(prog.Symbols),
		drv:     drv,
		log:     log,
		pool:    newSlotPool(n, prog.InitialState(), drv, log),
		bound:   cfg.Bound,
	}, nil
}

// checkFrame validates a frame number against the timeline's domain.
func (t *Timeline) checkFrame(f int64) error {
	if f < 0 || (t.bound > 0 && f > t.bound) {
		return &OutOfRangeError{Frame: f, Horizon: t.bound}
	}
	return nil
}

// Frame materializes frame f and returns a borrowed read-only view of it.
// The view must not outlive the next mutating call on the timeline or its
// pipeline.
func (t *Timeline) Frame(f int64) (*mem.State, error) {
	if err := t.checkFrame(f); err != nil {
		return nil, err
	}
	t.materializations++
	return t.pool.acquire(f)
}

// BaseView returns a zero-copy read-only view of the base slot: the pristine
// frame-0 image, before any frame-0 edit. It shares the base slot's memory,
// so it is valid for the timeline's whole lifetime but must never be written
// through.
func (t *Timeline) BaseView() *mem.State {
	return t.pool.baseSlot().View()
}

// Edits exposes the edit log. The pipeline records writes through it;
// external callers may walk it for serialization, which is their
// responsibility, not the timeline's.
func (t *Timeline) Edits() *EditLog {
	return t.log
}

// SetEdit stores or overwrites the whole edit at frame f and invalidates
// every snapshot at or after it.
func (t *Timeline) SetEdit(f int64, e *Edit) error {
	if err := t.checkFrame(f); err != nil {
		return err
	}
	t.log.Set(f, e)
	t.pool.invalidateFrom(f)
	return nil
}

// WriteValue records a single path override at frame f.
func (t *Timeline) WriteValue(f int64, path string, v mem.Value) error {
	if err := t.checkFrame(f); err != nil {
		return err
	}
	t.log.SetValue(f, path, v)
	t.pool.invalidateFrom(f)
	return nil
}

// ResetValue clears the override for path at frame f, restoring the
// simulated value there.
func (t *Timeline) ResetValue(f int64, path string) error {
	if err := t.checkFrame(f); err != nil {
		return err
	}
	if t.log.ClearValue(f, path) {
		t.pool.invalidateFrom(f)
	}
	return nil
}

// InsertFrame shifts every edit at or after f up by one frame, vacating f,
// and invalidates the snapshots the shift touched.
func (t *Timeline) InsertFrame(f int64) error {
	if err := t.checkFrame(f); err != nil {
		return err
	}
	t.pool.invalidateFrom(t.log.InsertFrame(f))
	return nil
}

// DeleteFrame removes the edit at f (if any), shifts later edits down by
// one, and invalidates from the lowest affected frame.
func (t *Timeline) DeleteFrame(f int64) error {
	if err := t.checkFrame(f); err != nil {
		return err
	}
	t.pool.invalidateFrom(t.log.DeleteFrame(f))
	return nil
}

// SetHotspot registers a frame of interest under name, overwriting any prior
// frame held by that name.
func (t *Timeline) SetHotspot(name string, f int64) {
	t.pool.setHotspot(name, f)
}

// RemoveHotspot drops the named hotspot.
func (t *Timeline) RemoveHotspot(name string) {
	t.pool.removeHotspot(name)
}

// BalanceDistribution runs one explicit housekeeping pass, spending at most
// budget redistributing snapshots toward hotspots. It never changes any
// subsequent Frame result, only its latency.
func (t *Timeline) BalanceDistribution(budget time.Duration) {
	t.balancePasses++
	t.pool.balance(budget)
}

// SlotFrames returns the frames currently held by non-empty slots, ascending.
// Presentation layers use it to mark cached frames on a scrub bar.
func (t *Timeline) SlotFrames() []int64 {
	return t.pool.frames()
}

// Layout returns the loaded program's memory layout.
func (t *Timeline) Layout() *mem.Layout {
	return t.layout
}

// Symbols returns the symbol table built at load time.
func (t *Timeline) Symbols() *mem.SymbolTable {
	return t.symbols
}

// Stats returns cumulative cost counters.
func (t *Timeline) Stats() Stats {
	return Stats{
		StepsRun:         t.drv.stepsRun,
		Materializations: t.materializations,
		BalancePasses:    t.balancePasses,
	}
}
