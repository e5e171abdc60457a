package world

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrIllegalTransition = errors.New("illegal chunk state transition")
	ErrStaleResult       = errors.New("stale generation result")
)

type slot struct {
	state ChunkState
	nonce uuid.UUID
	chunk *Chunk
}

// Store keeps the authoritative chunk state for the streaming window. It is
// owned by the main thread: every method must be called from the goroutine
// that drives frames, and nothing in it locks.
type Store struct {
	dim       Dimensions
	slots     map[ChunkCoord]*slot
	cancelled map[ChunkCoord]uuid.UUID
}

func NewStore(dim Dimensions) *Store {
	return &Store{
		dim:       dim,
		slots:     make(map[ChunkCoord]*slot),
		cancelled: make(map[ChunkCoord]uuid.UUID),
	}
}

func (s *Store) Dimensions() Dimensions {
	return s.dim
}

// State returns the lifecycle state of a coordinate.
func (s *Store) State(c ChunkCoord) ChunkState {
	if sl, ok := s.slots[c]; ok {
		return sl.state
	}
	return StateEmpty
}

// Nonce returns the identity of the outstanding or installed job for c.
func (s *Store) Nonce(c ChunkCoord) (uuid.UUID, bool) {
	sl, ok := s.slots[c]
	if !ok {
		return uuid.Nil, false
	}
	return sl.nonce, true
}

func (s *Store) move(c ChunkCoord, sl *slot, to ChunkState) error {
	from := StateEmpty
	if sl != nil {
		from = sl.state
	}
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrIllegalTransition, "chunk %v %s -> %s", c, from, to)
	}
	if to == StateEmpty {
		delete(s.slots, c)
		return nil
	}
	sl.state = to
	return nil
}

// MarkQueued records that a job with the given nonce was accepted for c.
func (s *Store) MarkQueued(c ChunkCoord, nonce uuid.UUID) error {
	if _, ok := s.slots[c]; ok {
		return errors.Wrapf(ErrIllegalTransition, "chunk %v already tracked as %s", c, s.State(c))
	}
	if _, ok := s.cancelled[c]; ok {
		return errors.Wrapf(ErrIllegalTransition, "chunk %v has a cancelled job in flight", c)
	}
	s.slots[c] = &slot{state: StateQueued, nonce: nonce}
	return nil
}

// MarkGenerating records that a worker picked up the job for c.
func (s *Store) MarkGenerating(c ChunkCoord) error {
	sl := s.slots[c]
	if sl != nil && sl.state == StateGenerating {
		return nil
	}
	return s.move(c, sl, StateGenerating)
}

// Install moves a finished chunk through READY_TO_INSTALL into RESIDENT.
// The nonce must match the outstanding job. Resident neighbours are flagged
// for remeshing because their shared border changed.
func (s *Store) Install(c ChunkCoord, nonce uuid.UUID, chunk *Chunk) error {
	sl := s.slots[c]
	if sl == nil || !sl.state.Outstanding() || sl.nonce != nonce {
		return errors.Wrapf(ErrStaleResult, "chunk %v nonce %s", c, nonce)
	}
	if chunk == nil || chunk.Coord != c || chunk.dim != s.dim {
		return errors.Errorf("chunk %v: result does not match coordinate or dimensions", c)
	}
	if err := s.move(c, sl, StateReadyToInstall); err != nil {
		return err
	}
	sl.chunk = chunk
	if err := s.move(c, sl, StateResident); err != nil {
		return err
	}
	for _, n := range s.neighbors(c) {
		n.NeedsRemesh = true
		chunk.NeedsRemesh = true
	}
	return nil
}

// Evict releases a resident chunk and returns it so its buffer can be reused.
func (s *Store) Evict(c ChunkCoord) (*Chunk, error) {
	sl := s.slots[c]
	if sl == nil || sl.state != StateResident {
		return nil, errors.Wrapf(ErrIllegalTransition, "evict chunk %v in state %s", c, s.State(c))
	}
	if err := s.move(c, sl, StateEvicting); err != nil {
		return nil, err
	}
	chunk := sl.chunk
	sl.chunk = nil
	if err := s.move(c, sl, StateEmpty); err != nil {
		return nil, err
	}
	for _, n := range s.neighbors(c) {
		n.NeedsRemesh = true
	}
	return chunk, nil
}

// Forget returns an outstanding coordinate to EMPTY, for jobs that were
// dropped before running or failed.
func (s *Store) Forget(c ChunkCoord) error {
	sl := s.slots[c]
	if sl == nil || !sl.state.Outstanding() {
		return errors.Wrapf(ErrIllegalTransition, "forget chunk %v in state %s", c, s.State(c))
	}
	return s.move(c, sl, StateEmpty)
}

// Cancel returns an outstanding coordinate to EMPTY and remembers the nonce
// so the eventual result is discarded on drain.
func (s *Store) Cancel(c ChunkCoord) (uuid.UUID, error) {
	sl := s.slots[c]
	if sl == nil || !sl.state.Outstanding() {
		return uuid.Nil, errors.Wrapf(ErrIllegalTransition, "cancel chunk %v in state %s", c, s.State(c))
	}
	nonce := sl.nonce
	if err := s.move(c, sl, StateEmpty); err != nil {
		return uuid.Nil, err
	}
	s.cancelled[c] = nonce
	return nonce, nil
}

// Cancelled reports whether a result with this nonce belongs to a cancelled job.
func (s *Store) Cancelled(c ChunkCoord, nonce uuid.UUID) bool {
	got, ok := s.cancelled[c]
	return ok && got == nonce
}

// ClearCancelled forgets the cancellation record for c.
func (s *Store) ClearCancelled(c ChunkCoord) {
	delete(s.cancelled, c)
}

// HasCancelled reports whether a cancelled job for c is still in flight.
func (s *Store) HasCancelled(c ChunkCoord) bool {
	_, ok := s.cancelled[c]
	return ok
}

// CancelledCount returns the number of cancelled jobs awaiting their results.
func (s *Store) CancelledCount() int {
	return len(s.cancelled)
}

// Revive re-adopts a cancelled job whose coordinate is wanted again. The
// coordinate goes back to GENERATING with the original nonce.
func (s *Store) Revive(c ChunkCoord) bool {
	nonce, ok := s.cancelled[c]
	if !ok || s.State(c) != StateEmpty {
		return false
	}
	delete(s.cancelled, c)
	s.slots[c] = &slot{state: StateGenerating, nonce: nonce}
	return true
}

// Chunk returns a resident chunk.
func (s *Store) Chunk(c ChunkCoord) (*Chunk, bool) {
	sl, ok := s.slots[c]
	if !ok || sl.state != StateResident {
		return nil, false
	}
	return sl.chunk, true
}

// Resident returns resident coordinates ordered by X, then Z.
func (s *Store) Resident() []ChunkCoord {
	return s.collect(func(st ChunkState) bool { return st == StateResident })
}

// Tracked returns every coordinate that is not EMPTY.
func (s *Store) Tracked() []ChunkCoord {
	return s.collect(func(ChunkState) bool { return true })
}

// InState returns the coordinates currently in st.
func (s *Store) InState(st ChunkState) []ChunkCoord {
	return s.collect(func(got ChunkState) bool { return got == st })
}

func (s *Store) collect(keep func(ChunkState) bool) []ChunkCoord {
	out := make([]ChunkCoord, 0, len(s.slots))
	for c, sl := range s.slots {
		if keep(sl.state) {
			out = append(out, c)
		}
	}
	SortChunks(out)
	return out
}

// Len returns the number of resident chunks.
func (s *Store) Len() int {
	n := 0
	for _, sl := range s.slots {
		if sl.state == StateResident {
			n++
		}
	}
	return n
}

// NeedsRemesh returns resident chunks flagged for remeshing, nearest to
// center first.
func (s *Store) NeedsRemesh(center ChunkCoord) []ChunkCoord {
	out := make([]ChunkCoord, 0)
	for c, sl := range s.slots {
		if sl.state == StateResident && sl.chunk.NeedsRemesh {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DistanceSq(center), out[j].DistanceSq(center)
		if di != dj {
			return di < dj
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

func (s *Store) neighbors(c ChunkCoord) []*Chunk {
	out := make([]*Chunk, 0, 4)
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if n, ok := s.Chunk(c.Add(d[0], d[1])); ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) locate(b BlockCoord) (*Chunk, int, int, int, bool) {
	if b.Y < 0 || b.Y >= s.dim.Height {
		return nil, 0, 0, 0, false
	}
	c, x, y, z := s.dim.Local(b)
	chunk, ok := s.Chunk(c)
	if !ok {
		return nil, 0, 0, 0, false
	}
	return chunk, x, y, z, true
}

// Lookup returns the block at a world coordinate and whether its chunk is resident.
func (s *Store) Lookup(b BlockCoord) (Block, bool) {
	chunk, x, y, z, ok := s.locate(b)
	if !ok {
		return Air, false
	}
	return chunk.At(x, y, z), true
}

// Block returns the block at a world coordinate, or Air when the coordinate
// is outside the loaded world.
func (s *Store) Block(b BlockCoord) Block {
	block, _ := s.Lookup(b)
	return block
}

// SetBlock replaces the block at a world coordinate. Out-of-range or
// unloaded coordinates are a no-op and report false. The change keeps the
// previous light level until lighting is recomputed, and the natural tag
// survives edits that keep the block type.
func (s *Store) SetBlock(b BlockCoord, block Block) (BlockChange, bool) {
	chunk, x, y, z, ok := s.locate(b)
	if !ok {
		return BlockChange{}, false
	}
	before := chunk.At(x, y, z)
	if before.Type == block.Type && before.Natural() {
		block.Metadata |= MetaNatural
	}
	block.Light = before.Light
	if before == block {
		return BlockChange{Coord: b, Before: before, After: block}, true
	}
	chunk.SetLocalBlock(x, y, z, block)
	chunk.NeedsRemesh = true
	s.markBorder(chunk.Coord, x, z)
	return BlockChange{Coord: b, Before: before, After: block}, true
}

func (s *Store) markBorder(c ChunkCoord, x, z int) {
	mark := func(dx, dz int) {
		if n, ok := s.Chunk(c.Add(dx, dz)); ok {
			n.NeedsRemesh = true
		}
	}
	if x == 0 {
		mark(-1, 0)
	}
	if x == s.dim.Width-1 {
		mark(1, 0)
	}
	if z == 0 {
		mark(0, -1)
	}
	if z == s.dim.Depth-1 {
		mark(0, 1)
	}
}
