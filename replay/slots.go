package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/retrace-sim/retrace/replay/mem"
)

const (
	// DefaultSlotCount is the snapshot budget used when the caller does not
	// choose one: one base slot plus backup slots spread over history.
	DefaultSlotCount = 20

	// balanceChunkSteps is how many frames the balancer simulates between
	// deadline checks. Small enough to respect tight budgets, large enough
	// to keep the clock out of the inner loop.
	balanceChunkSteps = 64
)

// hotspotBackoffs are the offsets behind each hotspot at which the balancer
// wants a snapshot. Spacing shrinks toward the hotspot, so scrubbing backward
// from it stays cheap, and grows with distance.
var hotspotBackoffs = []int64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// emptyFrame tags a slot that holds no snapshot.
const emptyFrame int64 = -1

// slot owns one full snapshot of simulated state and the frame it represents.
type slot struct {
	state *mem.State
	frame int64
}

func (s *slot) empty() bool {
	return s.frame == emptyFrame
}

// slotPool owns the fixed pool of N snapshots and decides which frames they
// represent. Slot 0 is the base slot: it holds the pristine frame-0 image,
// is never reassigned, and is written only at construction.
//
// Materialized states are produced in a scratch snapshot outside the pool, so
// acquiring a frame never disturbs slot placement.
type slotPool struct {
	slots   []slot
	scratch *mem.State
	drv     *driver
	log     *EditLog

	hotspots map[string]int64
	// horizon is the highest frame seen in a request or hotspot; the
	// balancer spreads its coarse grid over [0, horizon].
	horizon int64
}

// newSlotPool builds a pool of n slots (n >= 2: the base plus at least one
// backup) seeded with the program's initial state.
func newSlotPool(n int, initial *mem.State, drv *driver, log *EditLog) *slotPool {
	if n < 2 {
		panic(fmt.Sprintf("slotPool: need at least 2 slots, got %d", n))
	}
	p := &slotPool{
		slots:    make([]slot, n),
		scratch:  initial.Clone(),
		drv:      drv,
		log:      log,
		hotspots: make(map[string]int64),
	}
	p.slots[0] = slot{state: initial, frame: 0}
	for i := 1; i < n; i++ {
		p.slots[i] = slot{state: initial.Clone(), frame: emptyFrame}
	}
	return p
}

// baseSlot returns the pristine frame-0 snapshot.
func (p *slotPool) baseSlot() *mem.State {
	return p.slots[0].state
}

// source finds the slot with the largest represented frame <= f. The base
// slot always qualifies, so the search cannot fail. On a frame tie a backup
// slot wins over the base, since resuming from the base pays an extra
// frame-0 materialization.
func (p *slotPool) source(f int64) int {
	best := 0
	bestFrame := int64(0)
	for i := 1; i < len(p.slots); i++ {
		s := &p.slots[i]
		if s.empty() || s.frame > f {
			continue
		}
		if s.frame >= bestFrame {
			best = i
			bestFrame = s.frame
		}
	}
	return best
}

// loadScratch fills the scratch snapshot with the state of the source slot,
// materializing frame 0 when the source is the base.
func (p *slotPool) loadScratch(src int) error {
	p.scratch.CopyFrom(p.slots[src].state)
	if src == 0 {
		return p.drv.materializeBase(p.scratch, p.log)
	}
	return nil
}

// acquire materializes frame f and returns a borrowed read-only view of it.
// Cost is proportional to the distance from f to the nearest snapshot at or
// before it. The view is valid only until the next mutating call.
func (p *slotPool) acquire(f int64) (*mem.State, error) {
	if f > p.horizon {
		p.horizon = f
	}
	src := p.source(f)
	if err := p.loadScratch(src); err != nil {
		return nil, err
	}
	if err := p.drv.advance(p.scratch, f, p.log); err != nil {
		return nil, err
	}
	return p.scratch.View(), nil
}

// invalidateFrom empties every backup slot representing frame >= f. The base
// slot is pristine and unaffected even when f is 0; frame-0 edits are folded
// in during materialization, never into the stored image.
func (p *slotPool) invalidateFrom(f int64) {
	for i := 1; i < len(p.slots); i++ {
		if !p.slots[i].empty() && p.slots[i].frame >= f {
			p.slots[i].frame = emptyFrame
		}
	}
}

// setHotspot registers f as a frame of interest under name, overwriting any
// prior frame held by that name. Hotspots are advisory: they bias the next
// balance pass and carry no correctness obligation.
func (p *slotPool) setHotspot(name string, f int64) {
	p.hotspots[name] = f
	if f > p.horizon {
		p.horizon = f
	}
}

// removeHotspot drops the named hotspot, if registered.
func (p *slotPool) removeHotspot(name string) {
	delete(p.hotspots, name)
}

// frames returns the represented frames of all non-empty slots, ascending.
func (p *slotPool) frames() []int64 {
	out := make([]int64, 0, len(p.slots))
	for i := range p.slots {
		if !p.slots[i].empty() {
			out = append(out, p.slots[i].frame)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nearestAtOrBelow returns the largest frame in the sorted slice <= f.
// The slice always contains 0, so the result is well-defined.
func nearestAtOrBelow(frames []int64, f int64) int64 {
	i := sort.Search(len(frames), func(i int) bool { return frames[i] > f })
	if i == 0 {
		return 0
	}
	return frames[i-1]
}

// targetFrames builds the list of frames the balancer would like snapshots
// at: a tight power-of-two ladder behind every hotspot, plus a coarse grid
// across the whole observed range.
func (p *slotPool) targetFrames() []int64 {
	seen := make(map[int64]bool)
	var targets []int64
	add := func(f int64) {
		if f > 0 && f <= p.horizon && !seen[f] {
			seen[f] = true
			targets = append(targets, f)
		}
	}

	for _, h := range p.hotspots {
		for _, back := range hotspotBackoffs {
			add(h - back)
		}
	}

	if spacing := p.horizon / int64(len(p.slots)-1); spacing > 0 {
		for f := spacing; f <= p.horizon; f += spacing {
			add(f)
		}
	}
	return targets
}

// victim picks the backup slot to overwrite next: an empty slot when one
// exists, otherwise the non-target slot packed closest behind another slot.
// Returns -1 when every backup slot already sits on a wanted frame.
func (p *slotPool) victim(wanted map[int64]bool) int {
	choice := -1
	var choiceGap int64
	for i := 1; i < len(p.slots); i++ {
		s := &p.slots[i]
		if s.empty() {
			return i
		}
		if wanted[s.frame] {
			continue
		}
		gap := s.frame - p.nearestOtherSlot(i)
		if choice == -1 || gap < choiceGap {
			choice = i
			choiceGap = gap
		}
	}
	return choice
}

// nearestOtherSlot returns the largest represented frame <= slot i's frame
// among all other slots, the base included.
func (p *slotPool) nearestOtherSlot(i int) int64 {
	best := int64(0)
	for j := range p.slots {
		if j == i || p.slots[j].empty() {
			continue
		}
		if f := p.slots[j].frame; f <= p.slots[i].frame && f > best {
			best = f
		}
	}
	return best
}

// balance redistributes backup slots toward the current hotspot targets,
// spending at most budget. It repeatedly fills the most under-covered target
// by re-simulating from the nearest snapshot, and parks partial progress when
// the deadline arrives: a snapshot short of its target is still a valid
// snapshot, so any partial or zero-effort pass is safe, only suboptimal.
//
// Balancing is best effort. A target whose re-simulation fails is skipped
// with a warning and the slot is emptied; correctness never depends on slot
// placement.
func (p *slotPool) balance(budget time.Duration) {
	if budget <= 0 {
		return
	}
	deadline := time.Now().Add(budget)

	targets := p.targetFrames()
	if len(targets) == 0 {
		return
	}
	wanted := make(map[int64]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	for !time.Now().After(deadline) {
		covered := p.frames()
		// most under-covered target first
		var target, deficit int64 = -1, 0
		for _, t := range targets {
			if d := t - nearestAtOrBelow(covered, t); d > deficit {
				target, deficit = t, d
			}
		}
		if target < 0 {
			return // every target already has a snapshot
		}

		v := p.victim(wanted)
		if v < 0 {
			return
		}
		if !p.fill(v, target, deadline) {
			return
		}
	}
}

// fill re-simulates slot v up to target, honoring deadline. Returns false
// when the deadline expired and the pass should stop.
func (p *slotPool) fill(v int, target int64, deadline time.Time) bool {
	src := p.source(target)
	if err := p.loadScratch(src); err != nil {
		logrus.Warnf("[balance] skipping frame %d: %v", target, err)
		p.slots[v].frame = emptyFrame
		return true
	}

	for p.scratch.Frame() < target {
		if _, err := p.drv.advanceAtMost(p.scratch, target, balanceChunkSteps, p.log); err != nil {
			logrus.Warnf("[balance] skipping frame %d: %v", target, err)
			p.slots[v].frame = emptyFrame
			return true
		}
		if time.Now().After(deadline) {
			break
		}
	}

	// Commit whatever frame the scratch reached, full target or not.
	p.slots[v].state.CopyFrom(p.scratch)
	p.slots[v].frame = p.scratch.Frame()
	logrus.Debugf("[balance] slot %d now holds frame %d (target %d)", v, p.slots[v].frame, target)
	return p.scratch.Frame() == target
}
