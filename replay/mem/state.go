package mem

import (
	"encoding/binary"
	"fmt"
	"math"
)

// State is one full snapshot of simulated memory, tagged with the frame it
// represents. States are produced only by a program's Init or by duplicating
// and advancing an existing State; callers never construct buffers directly.
//
// A read-only State is a borrowed view into timeline-owned memory. It stays
// valid only until the next mutating timeline call.
type State struct {
	frame    int64
	buf      []byte
	layout   *Layout
	readonly bool
}

// NewState allocates a zeroed State at frame 0 for the given layout.
func NewState(layout *Layout) *State {
	return &State{
		frame:  0,
		buf:    make([]byte, layout.Size()),
		layout: layout,
	}
}

// Frame returns the frame this state represents.
func (s *State) Frame() int64 {
	return s.frame
}

// Layout returns the layout the state was built against.
func (s *State) Layout() *Layout {
	return s.layout
}

// Buf exposes the raw buffer. The step function receives it for in-place
// mutation; nothing else should touch it.
func (s *State) Buf() []byte {
	return s.buf
}

// SetFrame retags the state. Only the driver retags states.
func (s *State) SetFrame(frame int64) {
	s.frame = frame
}

// Clone returns an independent, writable copy of the state.
func (s *State) Clone() *State {
	buf := make([]byte, len(s.buf))
	copy(buf, s.buf)
	return &State{frame: s.frame, buf: buf, layout: s.layout}
}

// CopyFrom overwrites this state's contents and frame tag from src.
// The two states must share a layout.
func (s *State) CopyFrom(src *State) {
	if s.readonly {
		panic("State: CopyFrom on read-only view")
	}
	copy(s.buf, src.buf)
	s.frame = src.frame
}

// View returns a read-only alias of the state sharing the same buffer.
func (s *State) View() *State {
	return &State{frame: s.frame, buf: s.buf, layout: s.layout, readonly: true}
}

// Equal reports whether two states carry bit-identical memory.
func (s *State) Equal(other *State) bool {
	if len(s.buf) != len(other.buf) {
		return false
	}
	for i := range s.buf {
		if s.buf[i] != other.buf[i] {
			return false
		}
	}
	return true
}

// ReadValue reads the primitive at the given field location.
func (s *State) ReadValue(f Field) Value {
	return ReadField(s.buf, f)
}

// ReadPath resolves a dotted path and reads it.
func (s *State) ReadPath(path string) (Value, error) {
	f, err := s.layout.Resolve(path)
	if err != nil {
		return NoValue, err
	}
	return ReadField(s.buf, f), nil
}

// AddressOf resolves a dotted path to its byte location.
func (s *State) AddressOf(path string) (Address, error) {
	f, err := s.layout.Resolve(path)
	if err != nil {
		return 0, err
	}
	return f.Offset, nil
}

// WriteValue stores v into the field, coercing to the field's declared kind.
// Coercion is lossy by design: integers wrap to the declared width, floats
// written to integer fields truncate toward zero, and f64 values written to
// f32 fields round. A later read returns the stored, possibly narrower value.
func (s *State) WriteValue(f Field, v Value) error {
	if s.readonly {
		panic("State: WriteValue on read-only view")
	}
	return WriteField(s.buf, f, v)
}

// ReadField reads the primitive at f directly out of a raw state buffer.
// Step functions use this form; everything else goes through State.
func ReadField(buf []byte, f Field) Value {
	off := uint32(f.Offset)
	switch f.Kind {
	case KindS8:
		return IntValue(int64(int8(buf[off])))
	case KindU8:
		return IntValue(int64(buf[off]))
	case KindS16:
		return IntValue(int64(int16(binary.LittleEndian.Uint16(buf[off:]))))
	case KindU16:
		return IntValue(int64(binary.LittleEndian.Uint16(buf[off:])))
	case KindS32:
		return IntValue(int64(int32(binary.LittleEndian.Uint32(buf[off:]))))
	case KindU32:
		return IntValue(int64(binary.LittleEndian.Uint32(buf[off:])))
	case KindS64:
		return IntValue(int64(binary.LittleEndian.Uint64(buf[off:])))
	case KindU64:
		return IntValue(int64(binary.LittleEndian.Uint64(buf[off:])))
	case KindF32:
		return FloatValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))))
	case KindF64:
		return FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])))
	case KindAddr:
		return AddrValue(Address(binary.LittleEndian.Uint32(buf[off:])))
	default:
		return NoValue
	}
}

// WriteField stores v into f directly in a raw state buffer, applying the
// same coercion rules as State.WriteValue.
func WriteField(buf []byte, f Field, v Value) error {
	var iv int64
	var fv float64
	switch v.Tag() {
	case TagInt:
		iv, _ = v.AsInt()
		fv = float64(iv)
	case TagFloat:
		fv, _ = v.AsFloat()
		iv = truncToInt64(fv)
	case TagAddr:
		if f.Kind != KindAddr {
			return fmt.Errorf("cannot store an address into a %s field", f.Kind)
		}
		a, _ := v.AsAddr()
		binary.LittleEndian.PutUint32(buf[f.Offset:], uint32(a))
		return nil
	default:
		return fmt.Errorf("cannot store an empty value")
	}

	off := uint32(f.Offset)
	switch f.Kind {
	case KindS8, KindU8:
		buf[off] = byte(iv)
	case KindS16, KindU16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(iv))
	case KindS32, KindU32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(iv))
	case KindS64, KindU64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(iv))
	case KindF32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(fv)))
	case KindF64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(fv))
	case KindAddr:
		return fmt.Errorf("cannot store a %s value into an addr field", v.Tag())
	default:
		return fmt.Errorf("field has no kind")
	}
	return nil
}

// truncToInt64 converts a float to int64 truncating toward zero, saturating
// at the int64 range ends so conversion stays defined for any input.
func truncToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func (t ValueTag) String() string {
	switch t {
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagAddr:
		return "addr"
	default:
		return "none"
	}
}
