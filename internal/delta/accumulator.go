// Package delta collects block edits per chunk and encodes them for a
// networking layer. Nothing here talks to the network.
package delta

import (
	"sort"
	"time"

	"voxelstream/internal/world"
)

// BlockUpdate is the post-edit state of one block. Light is not carried;
// receivers recompute it.
type BlockUpdate struct {
	Coord world.BlockCoord
	Type  world.BlockType
	Meta  uint8
}

// Block returns the update as a block value with no light.
func (u BlockUpdate) Block() world.Block {
	return world.Block{Type: u.Type, Metadata: u.Meta}
}

// ChunkDelta lists the blocks of one chunk that changed since the previous
// flush.
type ChunkDelta struct {
	Chunk     world.ChunkCoord
	Seq       uint64
	Timestamp time.Time
	Blocks    []BlockUpdate
}

// Accumulator merges block changes until the next Flush. A block edited
// several times keeps its earliest Before and latest After; blocks whose net
// change is a no-op are left out of the flushed delta.
type Accumulator struct {
	dim  world.Dimensions
	seq  uint64
	data map[world.ChunkCoord]map[world.BlockCoord]world.BlockChange
	now  func() time.Time
}

func NewAccumulator(dim world.Dimensions) *Accumulator {
	return &Accumulator{
		dim:  dim,
		data: make(map[world.ChunkCoord]map[world.BlockCoord]world.BlockChange),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (a *Accumulator) Add(change world.BlockChange) {
	chunk := a.dim.ChunkOf(change.Coord)
	byBlock := a.data[chunk]
	if byBlock == nil {
		byBlock = make(map[world.BlockCoord]world.BlockChange)
		a.data[chunk] = byBlock
	}
	if existing, ok := byBlock[change.Coord]; ok {
		change.Before = existing.Before
	}
	byBlock[change.Coord] = change
}

// Pending returns the number of blocks waiting for the next flush.
func (a *Accumulator) Pending() int {
	n := 0
	for _, blocks := range a.data {
		n += len(blocks)
	}
	return n
}

// Seq returns the sequence number the next delta will carry.
func (a *Accumulator) Seq() uint64 {
	return a.seq
}

// Flush returns one delta per touched chunk, ordered by chunk coordinate,
// and resets the accumulator.
func (a *Accumulator) Flush() []ChunkDelta {
	if len(a.data) == 0 {
		return nil
	}
	chunks := make([]world.ChunkCoord, 0, len(a.data))
	for c := range a.data {
		chunks = append(chunks, c)
	}
	world.SortChunks(chunks)

	now := a.now()
	deltas := make([]ChunkDelta, 0, len(chunks))
	for _, c := range chunks {
		blocks := a.data[c]
		updates := make([]BlockUpdate, 0, len(blocks))
		for coord, change := range blocks {
			if change.Before.Type == change.After.Type && change.Before.Metadata == change.After.Metadata {
				continue
			}
			updates = append(updates, BlockUpdate{Coord: coord, Type: change.After.Type, Meta: change.After.Metadata})
		}
		if len(updates) == 0 {
			continue
		}
		sort.Slice(updates, func(i, j int) bool {
			p, q := updates[i].Coord, updates[j].Coord
			if p.X != q.X {
				return p.X < q.X
			}
			if p.Z != q.Z {
				return p.Z < q.Z
			}
			return p.Y < q.Y
		})
		deltas = append(deltas, ChunkDelta{Chunk: c, Seq: a.seq, Timestamp: now, Blocks: updates})
		a.seq++
	}
	a.data = make(map[world.ChunkCoord]map[world.BlockCoord]world.BlockChange)
	return deltas
}
