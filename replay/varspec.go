package replay

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/retrace-sim/retrace/replay/mem"
)

// Placeholders a path template may carry. A template with a placeholder can
// only be resolved through a Variable carrying the matching qualifier.
const (
	objectPlaceholder  = "$object"
	surfacePlaceholder = "$surface"
)

// VarSpec declares one named variable: the path template it resolves
// through, a human readable label, and the group it is presented under.
type VarSpec struct {
	Name  string
	Path  string // e.g. "globals.timer", "objects[$object].posX"
	Label string
	Group string
}

// needsObject reports whether the template requires an object qualifier.
func (s VarSpec) needsObject() bool {
	return strings.Contains(s.Path, objectPlaceholder)
}

// needsSurface reports whether the template requires a surface qualifier.
func (s VarSpec) needsSurface() bool {
	return strings.Contains(s.Path, surfacePlaceholder)
}

// instantiate substitutes the variable's qualifiers into the template.
func (s VarSpec) instantiate(v Variable) (string, error) {
	path := s.Path
	if s.needsObject() {
		slot, ok := v.Object()
		if !ok {
			return "", &ResolutionError{Target: v.String(), Reason: "variable requires an object slot"}
		}
		path = strings.ReplaceAll(path, objectPlaceholder, strconv.Itoa(slot))
	}
	if s.needsSurface() {
		slot, ok := v.Surface()
		if !ok {
			return "", &ResolutionError{Target: v.String(), Reason: "variable requires a surface slot"}
		}
		path = strings.ReplaceAll(path, surfacePlaceholder, strconv.Itoa(slot))
	}
	return path, nil
}

// VarSet is the registry of declared variables for one loaded program.
// It is built once at load time and read-only afterwards.
type VarSet struct {
	byName map[string]VarSpec
	layout *mem.Layout
}

// NewVarSet validates the specs against the layout and builds the registry.
// Every template must resolve (with index 0 substituted for placeholders) so
// that a bad declaration fails at load, not at first read.
func NewVarSet(specs []VarSpec, layout *mem.Layout) (*VarSet, error) {
	set := &VarSet{byName: make(map[string]VarSpec, len(specs)), layout: layout}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("variable spec with empty name (path %q)", spec.Path)
		}
		if _, dup := set.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate variable %q", spec.Name)
		}
		if _, err := layout.Resolve(probePath(spec.Path)); err != nil {
			return nil, fmt.Errorf("variable %q: %w", spec.Name, err)
		}
		set.byName[spec.Name] = spec
	}
	return set, nil
}

// probePath substitutes index 0 for placeholders, for validation only.
func probePath(template string) string {
	s := strings.ReplaceAll(template, objectPlaceholder, "0")
	return strings.ReplaceAll(s, surfacePlaceholder, "0")
}

// Spec returns the declaration behind a variable name.
func (vs *VarSet) Spec(name string) (VarSpec, bool) {
	s, ok := vs.byName[name]
	return s, ok
}

// Label returns the display label for a variable.
func (vs *VarSet) Label(v Variable) (string, error) {
	s, ok := vs.byName[v.Name()]
	if !ok {
		return "", &ResolutionError{Target: v.Name(), Reason: "unknown variable"}
	}
	if s.Label != "" {
		return s.Label, nil
	}
	return s.Name, nil
}

// Kind returns the primitive kind of the field behind a variable name.
func (vs *VarSet) Kind(name string) (mem.Kind, error) {
	s, ok := vs.byName[name]
	if !ok {
		return mem.KindNone, &ResolutionError{Target: name, Reason: "unknown variable"}
	}
	f, err := vs.layout.Resolve(probePath(s.Path))
	if err != nil {
		return mem.KindNone, err
	}
	return f.Kind, nil
}

// IsInt reports whether the variable holds an integer field.
func (vs *VarSet) IsInt(name string) (bool, error) {
	k, err := vs.Kind(name)
	if err != nil {
		return false, err
	}
	return k.IsInt(), nil
}

// IsFloat reports whether the variable holds a floating point field.
func (vs *VarSet) IsFloat(name string) (bool, error) {
	k, err := vs.Kind(name)
	if err != nil {
		return false, err
	}
	return k.IsFloat(), nil
}

// Group returns the unqualified Variables declared under a group, sorted by
// name for stable presentation.
func (vs *VarSet) Group(group string) []Variable {
	var out []Variable
	for name, spec := range vs.byName {
		if spec.Group == group {
			out = append(out, NewVariable(name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns every declared variable name, sorted.
func (vs *VarSet) Names() []string {
	names := make([]string, 0, len(vs.byName))
	for name := range vs.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
