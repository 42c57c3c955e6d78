package replay

import (
	"sort"

	"github.com/retrace-sim/retrace/replay/mem"
)

// Write is one path override inside an Edit.
type Write struct {
	Path  string
	Value mem.Value
}

// Edit is the set of user-authored overrides bound to a single frame. The
// driver applies an Edit before stepping past its frame. Writes keep their
// insertion order; setting an already present path overwrites in place.
type Edit struct {
	writes []Write
}

// NewEdit creates an empty Edit.
func NewEdit() *Edit {
	return &Edit{}
}

// Set records an override, replacing any existing override for path.
func (e *Edit) Set(path string, v mem.Value) {
	for i := range e.writes {
		if e.writes[i].Path == path {
			e.writes[i].Value = v
			return
		}
	}
	e.writes = append(e.writes, Write{Path: path, Value: v})
}

// Get returns the override for path.
func (e *Edit) Get(path string) (mem.Value, bool) {
	for _, w := range e.writes {
		if w.Path == path {
			return w.Value, true
		}
	}
	return mem.NoValue, false
}

// Clear removes the override for path, reporting whether one existed.
func (e *Edit) Clear(path string) bool {
	for i, w := range e.writes {
		if w.Path == path {
			e.writes = append(e.writes[:i], e.writes[i+1:]...)
			return true
		}
	}
	return false
}

// Empty reports whether the edit holds no overrides.
func (e *Edit) Empty() bool {
	return len(e.writes) == 0
}

// Writes returns the overrides in application order. The slice is the edit's
// internal storage; callers iterate it but must not modify it.
func (e *Edit) Writes() []Write {
	return e.writes
}

// editEntry pairs a frame with its Edit inside the log's sorted backing slice.
type editEntry struct {
	frame int64
	edit  *Edit
}

// EditLog is the ordered frame→Edit mapping. It holds at most one Edit per
// frame and supports the shifting insert/delete operations that let a caller
// splice frames into or out of history.
//
// Entries are kept sorted by frame, so a lookup is a binary search and a
// shift touches only the entries at or after the shift point.
type EditLog struct {
	entries []editEntry
}

// NewEditLog creates an empty log.
func NewEditLog() *EditLog {
	return &EditLog{}
}

// Len returns the number of frames that carry an edit.
func (l *EditLog) Len() int {
	return len(l.entries)
}

// search returns the position of the first entry with frame >= f.
func (l *EditLog) search(f int64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].frame >= f
	})
}

// Get returns the Edit at frame f, or nil when the frame carries none.
func (l *EditLog) Get(f int64) *Edit {
	i := l.search(f)
	if i < len(l.entries) && l.entries[i].frame == f {
		return l.entries[i].edit
	}
	return nil
}

// Set stores or overwrites the Edit at frame f. A nil or empty edit removes
// the entry instead, so the log never carries dead frames.
func (l *EditLog) Set(f int64, e *Edit) {
	i := l.search(f)
	present := i < len(l.entries) && l.entries[i].frame == f
	if e == nil || e.Empty() {
		if present {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
		}
		return
	}
	if present {
		l.entries[i].edit = e
		return
	}
	l.entries = append(l.entries, editEntry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = editEntry{frame: f, edit: e}
}

// SetValue records a single path override at frame f, creating the frame's
// Edit when needed.
func (l *EditLog) SetValue(f int64, path string, v mem.Value) {
	e := l.Get(f)
	if e == nil {
		e = NewEdit()
		e.Set(path, v)
		l.Set(f, e)
		return
	}
	e.Set(path, v)
}

// ClearValue removes the override for path at frame f, dropping the frame's
// entry when its last override goes away. Reports whether an override existed.
func (l *EditLog) ClearValue(f int64, path string) bool {
	e := l.Get(f)
	if e == nil {
		return false
	}
	cleared := e.Clear(path)
	if e.Empty() {
		l.Set(f, nil)
	}
	return cleared
}

// InsertFrame shifts every entry with frame >= f up by one, vacating frame f.
// Relative order is preserved. Returns the lowest affected frame so the
// timeline can invalidate cached snapshots from there on.
func (l *EditLog) InsertFrame(f int64) int64 {
	for i := l.search(f); i < len(l.entries); i++ {
		l.entries[i].frame++
	}
	return f
}

// DeleteFrame removes the entry at frame f (if any) and shifts every entry
// with frame > f down by one. Returns the lowest affected frame.
func (l *EditLog) DeleteFrame(f int64) int64 {
	i := l.search(f)
	if i < len(l.entries) && l.entries[i].frame == f {
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
	}
	for ; i < len(l.entries); i++ {
		l.entries[i].frame--
	}
	return f
}

// Frames returns the frames that carry edits, in increasing order.
func (l *EditLog) Frames() []int64 {
	frames := make([]int64, len(l.entries))
	for i, entry := range l.entries {
		frames[i] = entry.frame
	}
	return frames
}
