package replay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/retrace-sim/retrace/replay/mem"
)

// LoadOptions configures the timeline and variable registry built for a
// program.
type LoadOptions struct {
	Timeline TimelineConfig
	Vars     []VarSpec
}

// Loader constructs Pipelines and owns the record of every Pipeline it has
// issued. At most one loaded program instance is supported at a time:
// loading invalidates all previously issued Pipelines before the new one is
// constructed, so stale handles fail fast instead of reading a timeline
// whose program is gone.
type Loader struct {
	issued []*Pipeline
}

// NewLoader creates a Loader with no issued pipelines.
func NewLoader() *Loader {
	return &Loader{}
}

// Load validates the program, invalidates every pipeline this loader
// previously returned, and constructs a fresh Pipeline over a new Timeline.
// On failure nothing is constructed and previously issued pipelines are
// already invalid.
func (l *Loader) Load(prog *mem.Program, opts LoadOptions) (*Pipeline, error) {
	for _, old := range l.issued {
		old.invalidate()
	}
	l.issued = l.issued[:0]

	timeline, err := NewTimeline(prog, opts.Timeline)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", prog.Name, err)
	}
	vars, err := NewVarSet(opts.Vars, prog.Layout)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", prog.Name, err)
	}

	p := &Pipeline{timeline: timeline, vars: vars, valid: true}
	l.issued = append(l.issued, p)
	logrus.Infof("[load] program %q: %d-byte state, %d slots, %d variables",
		prog.Name, prog.Layout.Size(), len(timeline.pool.slots), len(opts.Vars))
	return p, nil
}
