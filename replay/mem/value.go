package mem

import "fmt"

// Address is a byte offset into a state buffer. Callers treat it as opaque;
// only the layout hands them out and only State dereferences them.
type Address uint32

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

// ValueTag identifies which variant a Value holds.
type ValueTag int

const (
	// TagNone marks the zero Value.
	TagNone ValueTag = iota
	// TagInt holds any integer field, signed or unsigned, up to 64 bits.
	TagInt
	// TagFloat holds f32 and f64 fields.
	TagFloat
	// TagAddr holds a stored address.
	TagAddr
)

// Value is a tagged union over the primitive kinds a field can hold.
// The conversion from an untyped caller value happens exactly once, at the
// Pipeline boundary; everything below the Pipeline passes Values around.
type Value struct {
	tag  ValueTag
	i    int64
	f    float64
	addr Address
}

// NoValue is the empty Value.
var NoValue = Value{}

// IntValue wraps an integer.
func IntValue(v int64) Value {
	return Value{tag: TagInt, i: v}
}

// FloatValue wraps a float.
func FloatValue(v float64) Value {
	return Value{tag: TagFloat, f: v}
}

// AddrValue wraps an address.
func AddrValue(a Address) Value {
	return Value{tag: TagAddr, addr: a}
}

// Tag returns the variant tag.
func (v Value) Tag() ValueTag {
	return v.tag
}

// IsNone reports whether the value is empty.
func (v Value) IsNone() bool {
	return v.tag == TagNone
}

// AsInt returns the integer variant.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.tag == TagInt
}

// AsFloat returns the float variant.
func (v Value) AsFloat() (float64, bool) {
	return v.f, v.tag == TagFloat
}

// AsAddr returns the address variant.
func (v Value) AsAddr() (Address, bool) {
	return v.addr, v.tag == TagAddr
}

func (v Value) String() string {
	switch v.tag {
	case TagInt:
		return fmt.Sprintf("%d", v.i)
	case TagFloat:
		return fmt.Sprintf("%g", v.f)
	case TagAddr:
		return v.addr.String()
	default:
		return "<none>"
	}
}
