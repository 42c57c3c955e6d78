package replay

import (
	"errors"
	"fmt"
)

// ErrPipelineInvalidated is returned by every method of a Pipeline after the
// Loader has issued a newer one. At most one live program instance is
// supported; invalidating old pipelines prevents reads against a timeline
// whose backing program has been replaced.
var ErrPipelineInvalidated = errors.New("pipeline has been invalidated by a newer load")

// OutOfRangeError reports a frame request outside the timeline's domain:
// negative, or past a configured horizon.
type OutOfRangeError struct {
	Frame   int64
	Horizon int64 // 0 when the timeline is unbounded
}

func (e *OutOfRangeError) Error() string {
	if e.Horizon > 0 {
		return fmt.Sprintf("frame %d out of range [0, %d]", e.Frame, e.Horizon)
	}
	return fmt.Sprintf("frame %d out of range", e.Frame)
}

// InactiveReferenceError reports a variable qualifier that does not refer to
// anything live at the resolved frame: an empty object or surface slot, or an
// object whose behavior no longer matches the variable's behavior tag.
type InactiveReferenceError struct {
	Kind  string // "object", "surface", or "behavior"
	Index int
	Frame int64
}

func (e *InactiveReferenceError) Error() string {
	return fmt.Sprintf("%s %d is not active at frame %d", e.Kind, e.Index, e.Frame)
}

// ResolutionError reports a variable or path that cannot be resolved against
// the loaded program: an unregistered variable name, a missing qualifier, an
// unknown path, or a value whose type cannot be stored in the target field.
type ResolutionError struct {
	Target string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve %q: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("cannot resolve %q: %s", e.Target, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
