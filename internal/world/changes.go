package world

import "sort"

// BlockChange captures the before/after state of a block mutation.
type BlockChange struct {
	Coord  BlockCoord
	Before Block
	After  Block
}

// Changed reports whether the mutation altered the block's material.
func (c BlockChange) Changed() bool {
	return !c.Before.SameMaterial(c.After)
}

// ChangeSet accumulates block mutations for a frame. Repeated changes to the
// same block keep the earliest Before and the latest After.
type ChangeSet struct {
	changes map[BlockCoord]BlockChange
	chunks  map[ChunkCoord]struct{}
	dim     Dimensions
}

func NewChangeSet(dim Dimensions) *ChangeSet {
	return &ChangeSet{
		changes: make(map[BlockCoord]BlockChange),
		chunks:  make(map[ChunkCoord]struct{}),
		dim:     dim,
	}
}

func (s *ChangeSet) Add(change BlockChange) {
	if existing, ok := s.changes[change.Coord]; ok {
		change.Before = existing.Before
	}
	s.changes[change.Coord] = change
	s.chunks[s.dim.ChunkOf(change.Coord)] = struct{}{}
}

func (s *ChangeSet) Len() int {
	return len(s.changes)
}

// Changes returns recorded mutations ordered by coordinate.
func (s *ChangeSet) Changes() []BlockChange {
	if len(s.changes) == 0 {
		return nil
	}
	out := make([]BlockChange, 0, len(s.changes))
	for _, change := range s.changes {
		out = append(out, change)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessBlock(out[i].Coord, out[j].Coord)
	})
	return out
}

// DirtyChunks returns the chunks touched by recorded mutations.
func (s *ChangeSet) DirtyChunks() []ChunkCoord {
	if len(s.chunks) == 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		out = append(out, coord)
	}
	SortChunks(out)
	return out
}

func (s *ChangeSet) Merge(other *ChangeSet) {
	if other == nil {
		return
	}
	for _, change := range other.Changes() {
		s.Add(change)
	}
}

func (s *ChangeSet) Reset() {
	clear(s.changes)
	clear(s.chunks)
}

// SortChunks orders coordinates by X, then Z.
func SortChunks(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
}

func lessBlock(a, b BlockCoord) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	return a.Y < b.Y
}
