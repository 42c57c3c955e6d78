package mem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ResolutionError reports a dotted path that does not resolve against a
// layout: unknown field, malformed syntax, or an index outside a table.
type ResolutionError struct {
	Path   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Path, e.Reason)
}

// Field is the resolved location of one primitive within a state buffer.
type Field struct {
	Offset Address
	Kind   Kind
}

// Table describes a fixed array of records inside the state buffer, such as
// the object pool or the surface pool. Records are addressed as
// "<name>[i].<field>". Each record carries its own field map relative to the
// record start.
type Table struct {
	Base   Address
	Stride uint32
	Count  int
	Fields map[string]Field // offsets relative to record start
}

// Layout maps dotted field paths to byte locations in a state buffer.
// It is built once per loaded program and never mutated afterwards.
type Layout struct {
	size    uint32
	globals map[string]Field
	tables  map[string]*Table
}

// NewLayout creates an empty layout for a state buffer of the given size.
func NewLayout(size uint32) *Layout {
	return &Layout{
		size:    size,
		globals: make(map[string]Field),
		tables:  make(map[string]*Table),
	}
}

// Size returns the state buffer size in bytes.
func (l *Layout) Size() uint32 {
	return l.size
}

// AddGlobal registers a scalar global reachable as "globals.<name>".
// It panics when the field overruns the buffer; layouts are built by loaders
// from validated definitions, so an overrun is a programmer error.
func (l *Layout) AddGlobal(name string, f Field) {
	if uint32(f.Offset)+uint32(f.Kind.Size()) > l.size {
		panic(fmt.Sprintf("Layout: global %q at %v overruns buffer of %d bytes", name, f.Offset, l.size))
	}
	l.globals[name] = f
}

// AddTable registers a record table reachable as "<name>[i].<field>".
func (l *Layout) AddTable(name string, t *Table) {
	end := uint32(t.Base) + t.Stride*uint32(t.Count)
	if end > l.size {
		panic(fmt.Sprintf("Layout: table %q ends at %d, past buffer of %d bytes", name, end, l.size))
	}
	l.tables[name] = t
}

// Table returns the named record table.
func (l *Layout) Table(name string) (*Table, bool) {
	t, ok := l.tables[name]
	return t, ok
}

// Record returns the base address of record i in the named table.
func (t *Table) Record(i int) (Address, error) {
	if i < 0 || i >= t.Count {
		return 0, fmt.Errorf("index %d outside table of %d records", i, t.Count)
	}
	return Address(uint32(t.Base) + t.Stride*uint32(i)), nil
}

// Resolve maps a dotted path to a concrete field location.
//
// Supported forms:
//
//	globals.<field>
//	<table>[<index>].<field>
func (l *Layout) Resolve(path string) (Field, error) {
	head, field, ok := strings.Cut(path, ".")
	if !ok || field == "" {
		return Field{}, &ResolutionError{Path: path, Reason: "expected <scope>.<field>"}
	}
	if strings.Contains(field, ".") {
		return Field{}, &ResolutionError{Path: path, Reason: "nested paths are not supported"}
	}

	if head == "globals" {
		f, ok := l.globals[field]
		if !ok {
			return Field{}, &ResolutionError{Path: path, Reason: fmt.Sprintf("unknown global %q", field)}
		}
		return f, nil
	}

	name, index, err := splitIndexed(head)
	if err != nil {
		return Field{}, &ResolutionError{Path: path, Reason: err.Error()}
	}
	table, ok := l.tables[name]
	if !ok {
		return Field{}, &ResolutionError{Path: path, Reason: fmt.Sprintf("unknown table %q", name)}
	}
	base, err := table.Record(index)
	if err != nil {
		return Field{}, &ResolutionError{Path: path, Reason: err.Error()}
	}
	rel, ok := table.Fields[field]
	if !ok {
		return Field{}, &ResolutionError{Path: path, Reason: fmt.Sprintf("table %q has no field %q", name, field)}
	}
	return Field{Offset: base + rel.Offset, Kind: rel.Kind}, nil
}

// splitIndexed parses "objects[12]" into ("objects", 12).
func splitIndexed(s string) (string, int, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") {
		return "", 0, fmt.Errorf("expected <table>[<index>], got %q", s)
	}
	index, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil {
		return "", 0, fmt.Errorf("bad index in %q", s)
	}
	return s[:open], index, nil
}

// Dump renders the layout as a stable, human readable listing.
func (l *Layout) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state size: %d bytes\n", l.size)

	names := make([]string, 0, len(l.globals))
	for name := range l.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := l.globals[name]
		fmt.Fprintf(&sb, "globals.%s %s @ %v\n", name, f.Kind, f.Offset)
	}

	tableNames := make([]string, 0, len(l.tables))
	for name := range l.tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)
	for _, name := range tableNames {
		t := l.tables[name]
		fmt.Fprintf(&sb, "%s[%d] stride %d @ %v\n", name, t.Count, t.Stride, t.Base)
		fields := make([]string, 0, len(t.Fields))
		for fieldName := range t.Fields {
			fields = append(fields, fieldName)
		}
		sort.Strings(fields)
		for _, fieldName := range fields {
			f := t.Fields[fieldName]
			fmt.Fprintf(&sb, "  .%s %s +%d\n", fieldName, f.Kind, uint32(f.Offset))
		}
	}
	return sb.String()
}
