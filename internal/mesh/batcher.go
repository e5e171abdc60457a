package mesh

import (
	"fmt"
	"sort"

	"voxelstream/internal/world"
)

// GroupCoord identifies a GroupSize x GroupSize block of chunks.
type GroupCoord struct {
	X int
	Z int
}

func (g GroupCoord) String() string {
	return fmt.Sprintf("group(%d,%d)", g.X, g.Z)
}

// MultiDrawIndex lists the vertex ranges of a batch, one per chunk, in the
// layout a multi-draw call expects.
type MultiDrawIndex struct {
	Start []int32
	Count []int32
}

// Batch is the merged mesh of one group. Vertices stay chunk-local; the
// renderer offsets each range by its chunk origin.
type Batch struct {
	Group    GroupCoord
	Chunks   []world.ChunkCoord
	Vertices []uint32
	Index    MultiDrawIndex
}

func (b *Batch) TriangleCount() int {
	return len(b.Vertices) / 3
}

// Range returns the vertex range of one member chunk.
func (b *Batch) Range(c world.ChunkCoord) (start, count int32, ok bool) {
	for i, member := range b.Chunks {
		if member == c {
			return b.Index.Start[i], b.Index.Count[i], true
		}
	}
	return 0, 0, false
}

// ChunkLookup resolves a resident chunk.
type ChunkLookup func(world.ChunkCoord) (*world.Chunk, bool)

// Batcher keeps merged draw batches for chunk groups. It only reads chunk
// meshes and never changes gameplay state.
type Batcher struct {
	size    int
	batches map[GroupCoord]*Batch
	members map[GroupCoord]map[world.ChunkCoord]struct{}
	dirty   []GroupCoord
	pending map[GroupCoord]struct{}
}

func NewBatcher(groupSize int) *Batcher {
	if groupSize <= 0 {
		groupSize = 2
	}
	return &Batcher{
		size:    groupSize,
		batches: make(map[GroupCoord]*Batch),
		members: make(map[GroupCoord]map[world.ChunkCoord]struct{}),
		pending: make(map[GroupCoord]struct{}),
	}
}

func (b *Batcher) GroupSize() int {
	return b.size
}

// GroupOf returns the group containing c.
func (b *Batcher) GroupOf(c world.ChunkCoord) GroupCoord {
	return GroupCoord{X: floorDiv(c.X, b.size), Z: floorDiv(c.Z, b.size)}
}

// MarkDirty records that c has a new mesh and its group must be rebuilt.
func (b *Batcher) MarkDirty(c world.ChunkCoord) {
	g := b.GroupOf(c)
	set, ok := b.members[g]
	if !ok {
		set = make(map[world.ChunkCoord]struct{})
		b.members[g] = set
	}
	set[c] = struct{}{}
	b.markGroup(g)
}

// Remove drops c from its group; the group is rebuilt without it.
func (b *Batcher) Remove(c world.ChunkCoord) {
	g := b.GroupOf(c)
	if set, ok := b.members[g]; ok {
		delete(set, c)
		b.markGroup(g)
	}
}

func (b *Batcher) markGroup(g GroupCoord) {
	if _, ok := b.pending[g]; ok {
		return
	}
	b.pending[g] = struct{}{}
	b.dirty = append(b.dirty, g)
}

// Dirty returns the number of groups waiting for a rebuild.
func (b *Batcher) Dirty() int {
	return len(b.dirty)
}

// Rebuild merges at most limit dirty groups, oldest first, and returns the
// groups rebuilt. limit <= 0 rebuilds everything pending.
func (b *Batcher) Rebuild(limit int, lookup ChunkLookup) []GroupCoord {
	if limit <= 0 || limit > len(b.dirty) {
		limit = len(b.dirty)
	}
	work := b.dirty[:limit]
	b.dirty = append([]GroupCoord(nil), b.dirty[limit:]...)
	for _, g := range work {
		delete(b.pending, g)
		b.rebuild(g, lookup)
	}
	return work
}

func (b *Batcher) rebuild(g GroupCoord, lookup ChunkLookup) {
	set := b.members[g]
	coords := make([]world.ChunkCoord, 0, len(set))
	for c := range set {
		if chunk, ok := lookup(c); ok && chunk != nil {
			coords = append(coords, c)
		} else {
			delete(set, c)
		}
	}
	if len(coords) == 0 {
		delete(b.members, g)
		delete(b.batches, g)
		return
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Z != coords[j].Z {
			return coords[i].Z < coords[j].Z
		}
		return coords[i].X < coords[j].X
	})

	batch := &Batch{Group: g, Chunks: coords}
	for _, c := range coords {
		chunk, _ := lookup(c)
		start := int32(len(batch.Vertices))
		batch.Vertices = append(batch.Vertices, chunk.Mesh.Vertices...)
		batch.Index.Start = append(batch.Index.Start, start)
		batch.Index.Count = append(batch.Index.Count, int32(len(chunk.Mesh.Vertices)))
	}
	b.batches[g] = batch
}

func (b *Batcher) Batch(g GroupCoord) (*Batch, bool) {
	batch, ok := b.batches[g]
	return batch, ok
}

// Batches returns all built batches ordered by group.
func (b *Batcher) Batches() []*Batch {
	out := make([]*Batch, 0, len(b.batches))
	for _, batch := range b.batches {
		out = append(out, batch)
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].Group, out[j].Group
		if a.Z != c.Z {
			return a.Z < c.Z
		}
		return a.X < c.X
	})
	return out
}

func floorDiv(value, size int) int {
	q := value / size
	if value%size != 0 && value < 0 {
		q--
	}
	return q
}
