// Package machine compiles declarative machine definitions into runnable
// programs for the replay timeline. A definition lists global fields with
// per-step update rules, an optional object pool with a spawn schedule, and
// an optional surface pool; the compiler turns it into a memory layout, an
// initial image, a deterministic step function, and a variable registry.
package machine

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GlobalDef declares one scalar global and how it evolves per step.
type GlobalDef struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`           // s8..u64, f32, f64
	Init float64 `yaml:"init,omitempty"` // initial value at frame 0
	// Rule selects the per-step update: "" (hold), "increment" (+1 per
	// step), or "integrate" (+= the field named in By, once per step).
	Rule string `yaml:"rule,omitempty"`
	By   string `yaml:"by,omitempty"`
}

// SpawnDef schedules one object: it becomes active when the machine clock
// reaches Frame and inactive again at Until (0 = never despawns).
type SpawnDef struct {
	Slot     int    `yaml:"slot"`
	Frame    int64  `yaml:"frame"`
	Until    int64  `yaml:"until,omitempty"`
	Behavior string `yaml:"behavior"`
}

// ObjectsDef declares the object pool.
type ObjectsDef struct {
	Count  int        `yaml:"count"`
	Spawns []SpawnDef `yaml:"spawns,omitempty"`
}

// SurfacesDef declares the surface pool. Heights seeds per-surface height;
// surfaces beyond the list start at 0 and inactive.
type SurfacesDef struct {
	Count   int       `yaml:"count"`
	Heights []float64 `yaml:"heights,omitempty"`
}

// Def is the root of a machine definition file.
type Def struct {
	Name     string       `yaml:"name"`
	Globals  []GlobalDef  `yaml:"globals"`
	Objects  *ObjectsDef  `yaml:"objects,omitempty"`
	Surfaces *SurfacesDef `yaml:"surfaces,omitempty"`
}

// ParseDef decodes a machine definition, rejecting unknown fields so a typo
// in a definition file fails loudly instead of silently holding a field.
func ParseDef(data []byte) (*Def, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var def Def
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse machine definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("machine definition has no name")
	}
	if len(def.Globals) == 0 {
		return nil, fmt.Errorf("machine %q declares no globals", def.Name)
	}
	return &def, nil
}

// LoadDef reads and parses a machine definition file.
func LoadDef(path string) (*Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine definition: %w", err)
	}
	return ParseDef(data)
}
