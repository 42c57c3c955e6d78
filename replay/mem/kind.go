package mem

import "fmt"

// Kind identifies the primitive data type of a field in simulated memory.
type Kind int

const (
	// KindNone is the zero Kind; no field carries it.
	KindNone Kind = iota
	KindS8
	KindU8
	KindS16
	KindU16
	KindS32
	KindU32
	KindS64
	KindU64
	KindF32
	KindF64
	// KindAddr is a stored memory address (an offset into the state buffer).
	KindAddr
)

var kindNames = map[Kind]string{
	KindNone: "none",
	KindS8:   "s8",
	KindU8:   "u8",
	KindS16:  "s16",
	KindU16:  "u16",
	KindS32:  "s32",
	KindU32:  "u32",
	KindS64:  "s64",
	KindU64:  "u64",
	KindF32:  "f32",
	KindF64:  "f64",
	KindAddr: "addr",
}

var kindSizes = map[Kind]int{
	KindS8:   1,
	KindU8:   1,
	KindS16:  2,
	KindU16:  2,
	KindS32:  4,
	KindU32:  4,
	KindS64:  8,
	KindU64:  8,
	KindF32:  4,
	KindF64:  8,
	KindAddr: 4,
}

// ParseKind converts a kind name ("s32", "f64", ...) into a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name && k != KindNone {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown kind %q", name)
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Size returns the width of the kind in bytes.
func (k Kind) Size() int {
	return kindSizes[k]
}

// IsInt reports whether the kind is an integer type (signed or unsigned).
func (k Kind) IsInt() bool {
	switch k {
	case KindS8, KindU8, KindS16, KindU16, KindS32, KindU32, KindS64, KindU64:
		return true
	}
	return false
}

// IsFloat reports whether the kind is a floating point type.
func (k Kind) IsFloat() bool {
	return k == KindF32 || k == KindF64
}
