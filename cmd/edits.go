package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retrace-sim/retrace/replay"
	"github.com/retrace-sim/retrace/replay/mem"
)

// The timeline core deliberately does not persist anything; the edit log
// file format below is this CLI's own. One entry per edited frame, raw
// dotted paths, integer or float values.

// EditFileEntry is one frame's overrides in an edit log file.
type EditFileEntry struct {
	Frame int64           `yaml:"frame"`
	Set   []EditFileWrite `yaml:"set"`
}

// EditFileWrite is one path override.
type EditFileWrite struct {
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`
}

// EditFile is the root of an edit log file.
type EditFile struct {
	Edits []EditFileEntry `yaml:"edits"`
}

// LoadEdits reads an edit log file and applies it to the timeline.
func LoadEdits(path string, timeline *replay.Timeline) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read edit log: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file EditFile
	if err := decoder.Decode(&file); err != nil {
		return fmt.Errorf("parse edit log: %w", err)
	}

	for _, entry := range file.Edits {
		for _, w := range entry.Set {
			value, err := yamlValue(w.Value)
			if err != nil {
				return fmt.Errorf("edit at frame %d, path %q: %w", entry.Frame, w.Path, err)
			}
			if _, err := timeline.Layout().Resolve(w.Path); err != nil {
				return fmt.Errorf("edit at frame %d: %w", entry.Frame, err)
			}
			if err := timeline.WriteValue(entry.Frame, w.Path, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveEdits writes the timeline's current edit log back out, so a session's
// inserts and deletes survive into the next run.
func SaveEdits(path string, timeline *replay.Timeline) error {
	log := timeline.Edits()
	var file EditFile
	for _, frame := range log.Frames() {
		entry := EditFileEntry{Frame: frame}
		for _, w := range log.Get(frame).Writes() {
			entry.Set = append(entry.Set, EditFileWrite{Path: w.Path, Value: plainValue(w.Value)})
		}
		file.Edits = append(file.Edits, entry)
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal edit log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write edit log: %w", err)
	}
	return nil
}

// yamlValue converts a decoded YAML scalar into a timeline value.
func yamlValue(raw any) (mem.Value, error) {
	switch v := raw.(type) {
	case int:
		return mem.IntValue(int64(v)), nil
	case int64:
		return mem.IntValue(v), nil
	case float64:
		return mem.FloatValue(v), nil
	default:
		return mem.NoValue, fmt.Errorf("value must be an integer or a float, got %T", raw)
	}
}

// plainValue converts a timeline value back into a YAML scalar.
func plainValue(v mem.Value) any {
	if i, ok := v.AsInt(); ok {
		return i
	}
	if f, ok := v.AsFloat(); ok {
		return f
	}
	if a, ok := v.AsAddr(); ok {
		return a.String()
	}
	return nil
}
