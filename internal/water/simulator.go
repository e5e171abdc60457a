// Package water relaxes water flow over loaded chunks. It is event driven:
// only queued coordinates are examined, and it must run on the goroutine
// that owns the chunk store.
package water

import (
	"github.com/pkg/errors"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// ErrNotConverged is returned by Drain when the tick budget runs out with
// cells still pending.
var ErrNotConverged = errors.New("water queue did not drain")

// World is the block surface the simulator reads and writes. Unloaded
// coordinates report ok=false and are never written.
type World interface {
	Lookup(bc world.BlockCoord) (world.Block, bool)
	SetBlock(bc world.BlockCoord, block world.Block) (world.BlockChange, bool)
}

var horizontal = [4]world.BlockCoord{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

// TickStats summarises one tick.
type TickStats struct {
	Processed int
	Changed   int
	Pending   int
	Changes   []world.BlockChange
}

// Simulator holds the pending queue. Levels fall by one per sideways hop
// and water stops MaxSpread hops from its source.
type Simulator struct {
	world    World
	cfg      config.WaterConfig
	minLevel uint8
	pending  []world.BlockCoord
	queued   map[world.BlockCoord]struct{}
}

func NewSimulator(w World, cfg config.WaterConfig) *Simulator {
	spread := cfg.MaxSpread
	if spread < 1 {
		spread = 1
	}
	if spread > int(world.MaxWaterLevel)-1 {
		spread = int(world.MaxWaterLevel) - 1
	}
	if cfg.Backtrace < spread {
		cfg.Backtrace = spread
	}
	if cfg.BatchPerTick <= 0 {
		cfg.BatchPerTick = 64
	}
	cfg.MaxSpread = spread
	return &Simulator{
		world:    w,
		cfg:      cfg,
		minLevel: world.MaxWaterLevel - uint8(spread),
		queued:   make(map[world.BlockCoord]struct{}),
	}
}

// Enqueue schedules bc for relaxation. A coordinate is pending at most once.
func (s *Simulator) Enqueue(bc world.BlockCoord) {
	if _, ok := s.queued[bc]; ok {
		return
	}
	s.queued[bc] = struct{}{}
	s.pending = append(s.pending, bc)
}

// EnqueueAround schedules bc and its six neighbours, which is what a block
// edit needs.
func (s *Simulator) EnqueueAround(bc world.BlockCoord) {
	s.Enqueue(bc)
	s.enqueueNeighbors(bc)
}

func (s *Simulator) enqueueNeighbors(bc world.BlockCoord) {
	s.Enqueue(bc.Add(0, 1, 0))
	s.Enqueue(bc.Add(0, -1, 0))
	for _, d := range horizontal {
		s.Enqueue(bc.Add(d.X, d.Y, d.Z))
	}
}

func (s *Simulator) Pending() int {
	return len(s.pending)
}

// Tick relaxes at most batch pending cells. Cells enqueued while ticking are
// handled by later ticks. batch <= 0 uses the configured batch size.
func (s *Simulator) Tick(batch int) TickStats {
	if batch <= 0 {
		batch = s.cfg.BatchPerTick
	}
	if batch > len(s.pending) {
		batch = len(s.pending)
	}
	work := append([]world.BlockCoord(nil), s.pending[:batch]...)
	s.pending = s.pending[batch:]
	for _, bc := range work {
		delete(s.queued, bc)
	}

	stats := TickStats{Processed: len(work)}
	for _, bc := range work {
		s.relax(bc, &stats)
	}
	stats.Changed = len(stats.Changes)
	stats.Pending = len(s.pending)
	return stats
}

// Drain ticks until the queue is empty or maxTicks is reached and returns
// the ticks used.
func (s *Simulator) Drain(maxTicks int) (int, error) {
	ticks := 0
	for len(s.pending) > 0 {
		if ticks >= maxTicks {
			return ticks, errors.Wrapf(ErrNotConverged, "%d cells pending after %d ticks", len(s.pending), ticks)
		}
		s.Tick(0)
		ticks++
	}
	return ticks, nil
}

func (s *Simulator) relax(bc world.BlockCoord, stats *TickStats) {
	cell, ok := s.world.Lookup(bc)
	if !ok || !cell.IsWater() {
		return
	}
	level := levelOf(cell)
	if !cell.IsSource() && !s.fed(bc, level) {
		s.set(bc, world.Air, stats)
		s.enqueueNeighbors(bc)
		return
	}

	below := bc.Add(0, -1, 0)
	target, ok := s.world.Lookup(below)
	if !ok {
		return
	}
	if accepts(target, level) {
		s.set(below, world.FlowingWater(level), stats)
		s.Enqueue(below)
		return
	}
	if !supports(target) {
		return
	}

	if level <= s.minLevel {
		return
	}
	next := level - 1
	for _, d := range horizontal {
		nc := bc.Add(d.X, d.Y, d.Z)
		side, ok := s.world.Lookup(nc)
		if !ok || !accepts(side, next) {
			continue
		}
		s.set(nc, world.FlowingWater(next), stats)
		s.Enqueue(nc)
	}
}

func (s *Simulator) set(bc world.BlockCoord, block world.Block, stats *TickStats) {
	change, ok := s.world.SetBlock(bc, block)
	if ok && change.Changed() {
		stats.Changes = append(stats.Changes, change)
	}
}

// fed reports whether a flowing cell still traces back to a source. The
// search follows water directly above (free) or strictly stronger water
// sideways (one hop each), up to Backtrace sideways hops.
func (s *Simulator) fed(bc world.BlockCoord, level uint8) bool {
	visited := map[world.BlockCoord]struct{}{bc: {}}
	return s.trace(bc, level, s.cfg.Backtrace, visited)
}

func (s *Simulator) trace(bc world.BlockCoord, level uint8, budget int, visited map[world.BlockCoord]struct{}) bool {
	above := bc.Add(0, 1, 0)
	if _, seen := visited[above]; !seen {
		visited[above] = struct{}{}
		if b, ok := s.world.Lookup(above); ok && b.IsWater() {
			if b.IsSource() || s.trace(above, levelOf(b), budget, visited) {
				return true
			}
		}
	}
	if budget <= 0 {
		return false
	}
	for _, d := range horizontal {
		nc := bc.Add(d.X, d.Y, d.Z)
		if _, seen := visited[nc]; seen {
			continue
		}
		b, ok := s.world.Lookup(nc)
		if !ok || !b.IsWater() || levelOf(b) <= level {
			continue
		}
		visited[nc] = struct{}{}
		if b.IsSource() || s.trace(nc, levelOf(b), budget-1, visited) {
			return true
		}
	}
	return false
}

func levelOf(b world.Block) uint8 {
	if b.IsSource() {
		return world.MaxWaterLevel
	}
	return b.WaterLevel()
}

// accepts reports whether water at level may flow into target.
func accepts(target world.Block, level uint8) bool {
	if target.IsAir() {
		return true
	}
	return target.IsWater() && !target.IsSource() && target.WaterLevel() < level
}

// supports reports whether water resting on target may spread sideways.
func supports(target world.Block) bool {
	if target.IsAir() {
		return false
	}
	if target.IsWater() {
		return target.IsSource()
	}
	return true
}
