package mem

import "errors"

// StepFunc advances a state buffer by exactly one frame, in place.
// It must be pure given identical input bytes: the driver relies on this to
// make any cached snapshot interchangeable with straight replay from frame 0.
type StepFunc func(buf []byte)

// Program is the loadable unit of simulation: the memory layout, the initial
// memory image, the step function, and the symbol table for human readable
// labels. Programs are produced externally (see replay/machine for the
// scripted implementation) and consumed only through the Loader.
type Program struct {
	Name    string
	Layout  *Layout
	Init    func(buf []byte)
	Step    StepFunc
	Symbols map[Address]string
}

// Validate checks that the program can back a timeline.
func (p *Program) Validate() error {
	if p == nil {
		return errors.New("nil program")
	}
	if p.Layout == nil {
		return errors.New("program has no layout")
	}
	if p.Layout.Size() == 0 {
		return errors.New("program layout has zero size")
	}
	if p.Step == nil {
		return errors.New("program has no step function")
	}
	return nil
}

// InitialState builds the frame-0 state image.
func (p *Program) InitialState() *State {
	st := NewState(p.Layout)
	if p.Init != nil {
		p.Init(st.Buf())
	}
	return st
}
