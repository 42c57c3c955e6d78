package machine

import (
	"fmt"

	"github.com/retrace-sim/retrace/replay"
	"github.com/retrace-sim/retrace/replay/mem"
)

// clockName is the reserved global driving the spawn schedule. It counts
// steps and lives at offset 0 so a step function is a pure function of the
// buffer alone.
const clockName = "clock"

// Object record layout. Offsets are fixed by the compiler; definitions only
// choose the record count.
const (
	objActiveOff   = 0
	objBehaviorOff = 4
	objTimerOff    = 8
	objPosXOff     = 12
	objVelXOff     = 16
	objStride      = 20
)

// Surface record layout.
const (
	surfActiveOff = 0
	surfHeightOff = 4
	surfStride    = 8
)

// behaviorAddrBase is where synthetic behavior symbol addresses start. They
// live outside any state buffer; the address is only an identity token.
const behaviorAddrBase mem.Address = 0x10000000

// Machine is a compiled definition: the program to load plus the variable
// registry to load it with.
type Machine struct {
	Program *mem.Program
	Vars    []replay.VarSpec
}

// Compile turns a definition into a runnable machine.
func Compile(def *Def) (*Machine, error) {
	c := &compiler{def: def}
	return c.compile()
}

type rule func(buf []byte)

type compiler struct {
	def     *Def
	layout  *mem.Layout
	clock   mem.Field
	globals map[string]mem.Field
	rules   []rule
	symbols map[mem.Address]string
}

func (c *compiler) compile() (*Machine, error) {
	if err := c.buildLayout(); err != nil {
		return nil, err
	}
	if err := c.buildRules(); err != nil {
		return nil, err
	}
	prog := &mem.Program{
		Name:    c.def.Name,
		Layout:  c.layout,
		Init:    c.initFunc(),
		Step:    c.stepFunc(),
		Symbols: c.symbols,
	}
	return &Machine{Program: prog, Vars: c.varSpecs()}, nil
}

// buildLayout packs the clock, the declared globals, and the optional object
// and surface tables into one buffer.
func (c *compiler) buildLayout() error {
	cursor := uint32(0)
	c.globals = make(map[string]mem.Field, len(c.def.Globals)+1)

	c.clock = mem.Field{Offset: 0, Kind: mem.KindU64}
	c.globals[clockName] = c.clock
	cursor += uint32(mem.KindU64.Size())

	fields := make(map[string]mem.Field, len(c.def.Globals)+1)
	fields[clockName] = c.clock
	for _, g := range c.def.Globals {
		if g.Name == clockName {
			return fmt.Errorf("global name %q is reserved", clockName)
		}
		if _, dup := c.globals[g.Name]; dup {
			return fmt.Errorf("duplicate global %q", g.Name)
		}
		kind, err := mem.ParseKind(g.Kind)
		if err != nil {
			return fmt.Errorf("global %q: %w", g.Name, err)
		}
		if kind == mem.KindAddr {
			return fmt.Errorf("global %q: addr globals are not supported", g.Name)
		}
		f := mem.Field{Offset: mem.Address(cursor), Kind: kind}
		c.globals[g.Name] = f
		fields[g.Name] = f
		cursor += uint32(kind.Size())
	}

	var objects, surfaces *mem.Table
	if c.def.Objects != nil && c.def.Objects.Count > 0 {
		objects = &mem.Table{
			Base:   mem.Address(cursor),
			Stride: objStride,
			Count:  c.def.Objects.Count,
			Fields: map[string]mem.Field{
				"active":   {Offset: objActiveOff, Kind: mem.KindU8},
				"behavior": {Offset: objBehaviorOff, Kind: mem.KindAddr},
				"timer":    {Offset: objTimerOff, Kind: mem.KindU32},
				"posX":     {Offset: objPosXOff, Kind: mem.KindF32},
				"velX":     {Offset: objVelXOff, Kind: mem.KindF32},
			},
		}
		cursor += objStride * uint32(objects.Count)
	}
	if c.def.Surfaces != nil && c.def.Surfaces.Count > 0 {
		surfaces = &mem.Table{
			Base:   mem.Address(cursor),
			Stride: surfStride,
			Count:  c.def.Surfaces.Count,
			Fields: map[string]mem.Field{
				"active": {Offset: surfActiveOff, Kind: mem.KindU8},
				"height": {Offset: surfHeightOff, Kind: mem.KindF32},
			},
		}
		cursor += surfStride * uint32(surfaces.Count)
	}

	c.layout = mem.NewLayout(cursor)
	for name, f := range fields {
		c.layout.AddGlobal(name, f)
	}
	if objects != nil {
		c.layout.AddTable("objects", objects)
	}
	if surfaces != nil {
		c.layout.AddTable("surfaces", surfaces)
	}
	return nil
}

// buildRules compiles the per-step update rules into closures over resolved
// field locations, plus object updates and the spawn schedule.
func (c *compiler) buildRules() error {
	for _, g := range c.def.Globals {
		target := c.globals[g.Name]
		switch g.Rule {
		case "":
			// held field, nothing per step
		case "increment":
			c.rules = append(c.rules, incrementRule(target))
		case "integrate":
			source, ok := c.globals[g.By]
			if !ok || g.By == "" {
				return fmt.Errorf("global %q integrates unknown field %q", g.Name, g.By)
			}
			c.rules = append(c.rules, integrateRule(target, source))
		default:
			return fmt.Errorf("global %q: unknown rule %q", g.Name, g.Rule)
		}
	}

	c.symbols = make(map[mem.Address]string)
	if c.def.Objects != nil {
		objects, _ := c.layout.Table("objects")
		for _, spawn := range c.def.Objects.Spawns {
			if spawn.Slot < 0 || spawn.Slot >= objects.Count {
				return fmt.Errorf("spawn slot %d outside object pool of %d", spawn.Slot, objects.Count)
			}
			if spawn.Behavior == "" {
				return fmt.Errorf("spawn in slot %d has no behavior", spawn.Slot)
			}
		}
		for i, spawn := range c.def.Objects.Spawns {
			addr := behaviorAddrBase + mem.Address(i*0x40)
			c.symbols[addr] = spawn.Behavior
		}
	}
	return nil
}

func incrementRule(f mem.Field) rule {
	return func(buf []byte) {
		v := mem.ReadField(buf, f)
		if f.Kind.IsFloat() {
			fv, _ := v.AsFloat()
			mem.WriteField(buf, f, mem.FloatValue(fv+1)) //nolint:errcheck // kinds fixed at compile
		} else {
			iv, _ := v.AsInt()
			mem.WriteField(buf, f, mem.IntValue(iv+1)) //nolint:errcheck
		}
	}
}

func integrateRule(target, source mem.Field) rule {
	return func(buf []byte) {
		t := mem.ReadField(buf, target)
		s := mem.ReadField(buf, source)
		if target.Kind.IsFloat() {
			tf, _ := t.AsFloat()
			sf := asFloat(s)
			mem.WriteField(buf, target, mem.FloatValue(tf+sf)) //nolint:errcheck
		} else {
			ti, _ := t.AsInt()
			si := asInt(s)
			mem.WriteField(buf, target, mem.IntValue(ti+si)) //nolint:errcheck
		}
	}
}

func asFloat(v mem.Value) float64 {
	if f, ok := v.AsFloat(); ok {
		return f
	}
	i, _ := v.AsInt()
	return float64(i)
}

func asInt(v mem.Value) int64 {
	if i, ok := v.AsInt(); ok {
		return i
	}
	f, _ := v.AsFloat()
	return int64(f)
}

// initFunc builds the frame-0 image: clock zero, declared initial values,
// frame-0 spawns active, and seeded surfaces.
func (c *compiler) initFunc() func(buf []byte) {
	def := c.def
	globals := c.globals
	layout := c.layout
	symbols := c.spawnAddrs()
	return func(buf []byte) {
		for _, g := range def.Globals {
			f := globals[g.Name]
			if f.Kind.IsFloat() {
				mem.WriteField(buf, f, mem.FloatValue(g.Init)) //nolint:errcheck
			} else {
				mem.WriteField(buf, f, mem.IntValue(int64(g.Init))) //nolint:errcheck
			}
		}
		if def.Objects != nil {
			objects, _ := layout.Table("objects")
			for i, spawn := range def.Objects.Spawns {
				if spawn.Frame != 0 {
					continue
				}
				base, _ := objects.Record(spawn.Slot)
				activateObject(buf, base, symbols[i])
			}
		}
		if def.Surfaces != nil {
			surfaces, _ := layout.Table("surfaces")
			for i, height := range def.Surfaces.Heights {
				if i >= surfaces.Count {
					break
				}
				base, _ := surfaces.Record(i)
				mem.WriteField(buf, mem.Field{Offset: base + surfActiveOff, Kind: mem.KindU8}, mem.IntValue(1))          //nolint:errcheck
				mem.WriteField(buf, mem.Field{Offset: base + surfHeightOff, Kind: mem.KindF32}, mem.FloatValue(height)) //nolint:errcheck
			}
		}
	}
}

// stepFunc advances the machine one frame: clock++, global rules, object
// updates, then the spawn schedule at the new clock value.
func (c *compiler) stepFunc() mem.StepFunc {
	clock := c.clock
	rules := c.rules
	def := c.def
	layout := c.layout
	symbols := c.spawnAddrs()
	return func(buf []byte) {
		v, _ := mem.ReadField(buf, clock).AsInt()
		now := v + 1
		mem.WriteField(buf, clock, mem.IntValue(now)) //nolint:errcheck

		for _, r := range rules {
			r(buf)
		}

		if def.Objects == nil {
			return
		}
		objects, _ := layout.Table("objects")
		for i := 0; i < objects.Count; i++ {
			base, _ := objects.Record(i)
			updateObject(buf, base)
		}
		for i, spawn := range def.Objects.Spawns {
			base, _ := objects.Record(spawn.Slot)
			if spawn.Frame == now {
				activateObject(buf, base, symbols[i])
			}
			if spawn.Until != 0 && spawn.Until == now {
				mem.WriteField(buf, mem.Field{Offset: base + objActiveOff, Kind: mem.KindU8}, mem.IntValue(0)) //nolint:errcheck
			}
		}
	}
}

// spawnAddrs returns the behavior address for each spawn, by spawn index.
func (c *compiler) spawnAddrs() []mem.Address {
	if c.def.Objects == nil {
		return nil
	}
	addrs := make([]mem.Address, len(c.def.Objects.Spawns))
	for i := range addrs {
		addrs[i] = behaviorAddrBase + mem.Address(i*0x40)
	}
	return addrs
}

func activateObject(buf []byte, base mem.Address, behavior mem.Address) {
	mem.WriteField(buf, mem.Field{Offset: base + objActiveOff, Kind: mem.KindU8}, mem.IntValue(1))        //nolint:errcheck
	mem.WriteField(buf, mem.Field{Offset: base + objBehaviorOff, Kind: mem.KindAddr}, mem.AddrValue(behavior)) //nolint:errcheck
	mem.WriteField(buf, mem.Field{Offset: base + objTimerOff, Kind: mem.KindU32}, mem.IntValue(0))        //nolint:errcheck
}

// updateObject advances one active object: its timer counts frames alive and
// its position integrates its velocity.
func updateObject(buf []byte, base mem.Address) {
	active := mem.Field{Offset: base + objActiveOff, Kind: mem.KindU8}
	if n, _ := mem.ReadField(buf, active).AsInt(); n == 0 {
		return
	}
	timer := mem.Field{Offset: base + objTimerOff, Kind: mem.KindU32}
	t, _ := mem.ReadField(buf, timer).AsInt()
	mem.WriteField(buf, timer, mem.IntValue(t+1)) //nolint:errcheck

	pos := mem.Field{Offset: base + objPosXOff, Kind: mem.KindF32}
	vel := mem.Field{Offset: base + objVelXOff, Kind: mem.KindF32}
	p, _ := mem.ReadField(buf, pos).AsFloat()
	v, _ := mem.ReadField(buf, vel).AsFloat()
	mem.WriteField(buf, pos, mem.FloatValue(p+v)) //nolint:errcheck
}

// varSpecs declares the variable registry for the compiled machine: one
// variable per global plus the fixed object and surface fields.
func (c *compiler) varSpecs() []replay.VarSpec {
	var specs []replay.VarSpec
	for _, g := range c.def.Globals {
		specs = append(specs, replay.VarSpec{
			Name:  g.Name,
			Path:  "globals." + g.Name,
			Label: g.Name,
			Group: "globals",
		})
	}
	if c.def.Objects != nil && c.def.Objects.Count > 0 {
		specs = append(specs,
			replay.VarSpec{Name: "obj-timer", Path: "objects[$object].timer", Label: "timer", Group: "objects"},
			replay.VarSpec{Name: "obj-pos-x", Path: "objects[$object].posX", Label: "pos x", Group: "objects"},
			replay.VarSpec{Name: "obj-vel-x", Path: "objects[$object].velX", Label: "vel x", Group: "objects"},
			replay.VarSpec{Name: "obj-behavior", Path: "objects[$object].behavior", Label: "behavior", Group: "objects"},
		)
	}
	if c.def.Surfaces != nil && c.def.Surfaces.Count > 0 {
		specs = append(specs,
			replay.VarSpec{Name: "surf-height", Path: "surfaces[$surface].height", Label: "height", Group: "surfaces"},
		)
	}
	return specs
}
