package replay

import (
	"fmt"
	"strings"

	"github.com/retrace-sim/retrace/replay/mem"
)

// ObjectBehavior is an opaque handle identifying the behavior an object is
// running, taken from the object's behavior field at some frame.
type ObjectBehavior struct {
	Addr mem.Address
}

// Variable is a structured, qualifiable reference to one piece of simulated
// state. It is a pure value: the qualifier methods return new Variables and
// never mutate the receiver, and two Variables are equal exactly when the
// name and all four qualifiers match. Variables are comparable and usable as
// map keys.
//
// The four qualifiers (frame, object slot, object behavior, surface slot)
// are independent; a Variable needs only the ones its underlying path
// template requires, plus a frame before it can be read or written.
type Variable struct {
	name string

	frame    int64
	hasFrame bool

	object    int
	hasObject bool

	behavior    mem.Address
	hasBehavior bool

	surface    int
	hasSurface bool
}

// NewVariable creates an unqualified variable with the given name.
func NewVariable(name string) Variable {
	return Variable{name: name}
}

// Name returns the variable's name.
func (v Variable) Name() string {
	return v.name
}

// Frame returns the frame qualifier.
func (v Variable) Frame() (int64, bool) {
	return v.frame, v.hasFrame
}

// Object returns the object slot qualifier.
func (v Variable) Object() (int, bool) {
	return v.object, v.hasObject
}

// Behavior returns the object behavior qualifier.
func (v Variable) Behavior() (ObjectBehavior, bool) {
	return ObjectBehavior{Addr: v.behavior}, v.hasBehavior
}

// Surface returns the surface slot qualifier.
func (v Variable) Surface() (int, bool) {
	return v.surface, v.hasSurface
}

// WithFrame returns a copy associated with the given frame.
func (v Variable) WithFrame(f int64) Variable {
	v.frame, v.hasFrame = f, true
	return v
}

// WithoutFrame returns a copy with no frame association.
func (v Variable) WithoutFrame() Variable {
	v.frame, v.hasFrame = 0, false
	return v
}

// WithObject returns a copy associated with the given object slot.
func (v Variable) WithObject(slot int) Variable {
	v.object, v.hasObject = slot, true
	return v
}

// WithoutObject returns a copy with no object slot association.
func (v Variable) WithoutObject() Variable {
	v.object, v.hasObject = 0, false
	return v
}

// WithObjectBehavior returns a copy associated with the given behavior.
func (v Variable) WithObjectBehavior(b ObjectBehavior) Variable {
	v.behavior, v.hasBehavior = b.Addr, true
	return v
}

// WithoutObjectBehavior returns a copy with no behavior association.
func (v Variable) WithoutObjectBehavior() Variable {
	v.behavior, v.hasBehavior = 0, false
	return v
}

// WithSurface returns a copy associated with the given surface slot.
func (v Variable) WithSurface(slot int) Variable {
	v.surface, v.hasSurface = slot, true
	return v
}

// WithoutSurface returns a copy with no surface slot association.
func (v Variable) WithoutSurface() Variable {
	v.surface, v.hasSurface = 0, false
	return v
}

func (v Variable) String() string {
	var sb strings.Builder
	sb.WriteString(v.name)
	if v.hasFrame {
		fmt.Fprintf(&sb, "@%d", v.frame)
	}
	if v.hasObject {
		fmt.Fprintf(&sb, " obj[%d]", v.object)
	}
	if v.hasBehavior {
		fmt.Fprintf(&sb, " bhv[%v]", v.behavior)
	}
	if v.hasSurface {
		fmt.Fprintf(&sb, " surf[%d]", v.surface)
	}
	return sb.String()
}
