package replay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/retrace-sim/retrace/replay/mem"
)

// Conventional layout names the pipeline relies on to judge liveness. A
// program without these tables simply has no object or surface variables; a
// table without an "active" field has every record permanently live.
const (
	objectsTable  = "objects"
	surfacesTable = "surfaces"
	activeField   = "active"
	behaviorField = "behavior"
)

// Pipeline resolves Variables against timeline-provided state and exposes
// typed read, write, and reset on top of it. A Pipeline exclusively owns its
// Timeline; construct one through a Loader.
//
// Writing a value and then reading the same variable does not necessarily
// return the original value: the write is coerced to the target field's
// declared width, and truncation is defined behavior, not an error.
type Pipeline struct {
	timeline *Timeline
	vars     *VarSet
	valid    bool
}

// invalidate detaches the pipeline from its timeline. Every later call
// returns ErrPipelineInvalidated.
func (p *Pipeline) invalidate() {
	p.valid = false
}

// Timeline returns the owned timeline, or an error after invalidation.
func (p *Pipeline) Timeline() (*Timeline, error) {
	if !p.valid {
		return nil, ErrPipelineInvalidated
	}
	return p.timeline, nil
}

// Variables returns the registry of declared variables.
func (p *Pipeline) Variables() (*VarSet, error) {
	if !p.valid {
		return nil, ErrPipelineInvalidated
	}
	return p.vars, nil
}

// resolve maps a fully qualified variable to a concrete dotted path and the
// materialized state at its frame, enforcing liveness of any object or
// surface qualifier.
func (p *Pipeline) resolve(v Variable) (string, int64, *mem.State, error) {
	spec, ok := p.vars.Spec(v.Name())
	if !ok {
		return "", 0, nil, &ResolutionError{Target: v.Name(), Reason: "unknown variable"}
	}
	frame, ok := v.Frame()
	if !ok {
		return "", 0, nil, &ResolutionError{Target: v.String(), Reason: "variable has no frame"}
	}
	path, err := spec.instantiate(v)
	if err != nil {
		return "", 0, nil, err
	}
	st, err := p.timeline.Frame(frame)
	if err != nil {
		return "", 0, nil, err
	}

	if spec.needsObject() {
		slot, _ := v.Object()
		if err := p.checkLive(st, objectsTable, slot, frame); err != nil {
			return "", 0, nil, err
		}
		if want, tagged := v.Behavior(); tagged {
			got, err := p.behaviorAt(st, slot)
			if err != nil {
				return "", 0, nil, err
			}
			if got.Addr != want.Addr {
				return "", 0, nil, &InactiveReferenceError{Kind: "behavior", Index: slot, Frame: frame}
			}
		}
	}
	if spec.needsSurface() {
		slot, _ := v.Surface()
		if err := p.checkLive(st, surfacesTable, slot, frame); err != nil {
			return "", 0, nil, err
		}
	}
	return path, frame, st, nil
}

// checkLive verifies that record slot of the named table is active in st.
func (p *Pipeline) checkLive(st *mem.State, table string, slot int, frame int64) error {
	t, ok := st.Layout().Table(table)
	if !ok {
		return &ResolutionError{Target: table, Reason: "program has no such table"}
	}
	if slot < 0 || slot >= t.Count {
		return &ResolutionError{Target: fmt.Sprintf("%s[%d]", table, slot), Reason: fmt.Sprintf("index outside table of %d records", t.Count)}
	}
	if _, hasActive := t.Fields[activeField]; !hasActive {
		return nil
	}
	v, err := st.ReadPath(fmt.Sprintf("%s[%d].%s", table, slot, activeField))
	if err != nil {
		return err
	}
	if n, _ := v.AsInt(); n == 0 {
		kind := strings.TrimSuffix(table, "s")
		return &InactiveReferenceError{Kind: kind, Index: slot, Frame: frame}
	}
	return nil
}

// behaviorAt reads the behavior handle of the object in the given slot.
func (p *Pipeline) behaviorAt(st *mem.State, slot int) (ObjectBehavior, error) {
	v, err := st.ReadPath(fmt.Sprintf("%s[%d].%s", objectsTable, slot, behaviorField))
	if err != nil {
		return ObjectBehavior{}, err
	}
	addr, ok := v.AsAddr()
	if !ok {
		return ObjectBehavior{}, &ResolutionError{Target: behaviorField, Reason: "behavior field is not an address"}
	}
	return ObjectBehavior{Addr: addr}, nil
}

// Read resolves the variable and returns the typed value of its field at the
// variable's frame.
func (p *Pipeline) Read(v Variable) (mem.Value, error) {
	if !p.valid {
		return mem.NoValue, ErrPipelineInvalidated
	}
	path, _, st, err := p.resolve(v)
	if err != nil {
		return mem.NoValue, err
	}
	return st.ReadPath(path)
}

// Write resolves the variable and records value as an edit override at the
// variable's frame. The value is coerced to the field's declared kind when
// the edit is applied, so a later Read may return a truncated value.
func (p *Pipeline) Write(v Variable, value mem.Value) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	path, frame, st, err := p.resolve(v)
	if err != nil {
		return err
	}
	field, err := st.Layout().Resolve(path)
	if err != nil {
		return err
	}
	// Reject unstorable combinations up front; the edit log must never hold
	// a write the driver cannot apply.
	if _, isAddr := value.AsAddr(); isAddr != (field.Kind == mem.KindAddr) {
		return &ResolutionError{Target: v.String(), Reason: fmt.Sprintf("cannot store %s value in %s field", value.Tag(), field.Kind)}
	}
	if value.IsNone() {
		return &ResolutionError{Target: v.String(), Reason: "cannot store an empty value"}
	}
	return p.timeline.WriteValue(frame, path, value)
}

// Reset clears any edit override for the variable's frame and path,
// restoring the simulated value.
func (p *Pipeline) Reset(v Variable) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	path, frame, _, err := p.resolve(v)
	if err != nil {
		return err
	}
	return p.timeline.ResetValue(frame, path)
}

// PathAddress bypasses the variable registry and resolves a raw dotted path
// at the given frame to its address.
func (p *Pipeline) PathAddress(frame int64, path string) (mem.Address, error) {
	if !p.valid {
		return 0, ErrPipelineInvalidated
	}
	st, err := p.timeline.Frame(frame)
	if err != nil {
		return 0, err
	}
	return st.AddressOf(path)
}

// PathRead bypasses the variable registry and reads a raw dotted path at the
// given frame.
func (p *Pipeline) PathRead(frame int64, path string) (mem.Value, error) {
	if !p.valid {
		return mem.NoValue, ErrPipelineInvalidated
	}
	st, err := p.timeline.Frame(frame)
	if err != nil {
		return mem.NoValue, err
	}
	return st.ReadPath(path)
}

// ObjectBehavior returns the behavior handle of the object in the given slot
// at the given frame, or nil when the slot is not active there.
func (p *Pipeline) ObjectBehavior(frame int64, slot int) (*ObjectBehavior, error) {
	if !p.valid {
		return nil, ErrPipelineInvalidated
	}
	st, err := p.timeline.Frame(frame)
	if err != nil {
		return nil, err
	}
	if err := p.checkLive(st, objectsTable, slot, frame); err != nil {
		var inactive *InactiveReferenceError
		if errors.As(err, &inactive) {
			return nil, nil
		}
		return nil, err
	}
	b, err := p.behaviorAt(st, slot)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ObjectBehaviorName looks the behavior's address up in the symbol table
// built at load time. Matched symbols lose their "bhv" prefix; unmatched
// addresses get a synthetic label.
func (p *Pipeline) ObjectBehaviorName(b ObjectBehavior) (string, error) {
	if !p.valid {
		return "", ErrPipelineInvalidated
	}
	if name, ok := p.timeline.Symbols().Name(b.Addr); ok {
		return strings.TrimPrefix(name, "bhv"), nil
	}
	return fmt.Sprintf("Object[%v]", b.Addr), nil
}

// InsertFrame inserts a new frame, shifting edits at or after it forward.
func (p *Pipeline) InsertFrame(frame int64) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	return p.timeline.InsertFrame(frame)
}

// DeleteFrame deletes a frame, shifting later edits backward.
func (p *Pipeline) DeleteFrame(frame int64) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	return p.timeline.DeleteFrame(frame)
}

// SetHotspot registers a frame of interest to speed up nearby requests.
func (p *Pipeline) SetHotspot(name string, frame int64) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	p.timeline.SetHotspot(name, frame)
	return nil
}

// RemoveHotspot drops a named hotspot.
func (p *Pipeline) RemoveHotspot(name string) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	p.timeline.RemoveHotspot(name)
	return nil
}

// BalanceDistribution runs one housekeeping pass within the given budget.
func (p *Pipeline) BalanceDistribution(budget time.Duration) error {
	if !p.valid {
		return ErrPipelineInvalidated
	}
	p.timeline.BalanceDistribution(budget)
	return nil
}

// DumpLayout renders the loaded program's layout for debugging.
func (p *Pipeline) DumpLayout() (string, error) {
	if !p.valid {
		return "", ErrPipelineInvalidated
	}
	return p.timeline.Layout().Dump(), nil
}
