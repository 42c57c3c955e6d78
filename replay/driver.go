package replay

import (
	"fmt"

	"github.com/retrace-sim/retrace/replay/mem"
)

// driver advances states forward frame by frame. It is the only code that
// invokes the step function, and it never skips a frame: determinism requires
// every intermediate edit to be applied before stepping past it.
type driver struct {
	step mem.StepFunc
	// stepsRun counts step invocations over the timeline's lifetime. The
	// balancer and tests use it to observe re-simulation cost.
	stepsRun int64
}

// applyEdit writes every override in the edit into the state.
func (d *driver) applyEdit(st *mem.State, e *Edit) error {
	if e == nil {
		return nil
	}
	for _, w := range e.Writes() {
		f, err := st.Layout().Resolve(w.Path)
		if err != nil {
			return err
		}
		if err := st.WriteValue(f, w.Value); err != nil {
			return fmt.Errorf("edit %q: %w", w.Path, err)
		}
	}
	return nil
}

// advance moves st from its current frame to the target frame. For each
// frame g in (from, to], it steps once into g and lays frame g's edit onto
// the result before stepping past it, so a materialized state always carries
// its own frame's edits and no intermediate edit is ever skipped.
//
// Precondition: st already carries the edits of its current frame.
func (d *driver) advance(st *mem.State, to int64, log *EditLog) error {
	from := st.Frame()
	if to < from {
		panic(fmt.Sprintf("driver: advance backwards from %d to %d", from, to))
	}
	for g := from + 1; g <= to; g++ {
		d.step(st.Buf())
		d.stepsRun++
		st.SetFrame(g)
		if err := d.applyEdit(st, log.Get(g)); err != nil {
			return fmt.Errorf("frame %d: %w", g, err)
		}
	}
	return nil
}

// advanceAtMost advances st toward target but runs at most maxSteps steps,
// returning the number actually run. The balancer uses it to honor its time
// budget at a chunk granularity without abandoning partial progress: a state
// parked short of its target is still a valid snapshot of its frame.
func (d *driver) advanceAtMost(st *mem.State, target int64, maxSteps int64, log *EditLog) (int64, error) {
	to := st.Frame() + maxSteps
	if to > target {
		to = target
	}
	before := st.Frame()
	if err := d.advance(st, to, log); err != nil {
		return st.Frame() - before, err
	}
	return to - before, nil
}

// materializeBase turns a pristine frame-0 image into the observable frame-0
// state by applying the frame-0 edit. The edit lands before the first step,
// so frame 0 stays well-defined even when it is itself edited.
func (d *driver) materializeBase(st *mem.State, log *EditLog) error {
	if err := d.applyEdit(st, log.Get(0)); err != nil {
		return fmt.Errorf("frame 0: %w", err)
	}
	return nil
}
