package world

import "sync"

// Mesh is the packed renderable surface of a chunk. Vertices are encoded by
// the mesh package; the world package only stores them.
type Mesh struct {
	Vertices []uint32
	Quads    int
}

// Triangles returns the number of triangles in the mesh.
func (m Mesh) Triangles() int {
	return len(m.Vertices) / 3
}

// Chunk stores a dense block grid for one chunk column. Blocks are laid out
// column-major so a vertical scan walks contiguous memory.
type Chunk struct {
	Coord ChunkCoord

	// NeedsRemesh is set whenever blocks or light change after the last mesh.
	NeedsRemesh bool
	Mesh        Mesh

	dim    Dimensions
	blocks []Block
}

// NewChunk allocates an all-air chunk.
func NewChunk(coord ChunkCoord, dim Dimensions) *Chunk {
	return &Chunk{
		Coord:  coord,
		dim:    dim,
		blocks: make([]Block, dim.Volume()),
	}
}

func (c *Chunk) Dimensions() Dimensions {
	return c.dim
}

// Bounds returns the block-space bounds of the chunk.
func (c *Chunk) Bounds() Bounds {
	return c.dim.ChunkBounds(c.Coord)
}

func (c *Chunk) columnIndex(x, z int) int {
	return (z*c.dim.Width + x) * c.dim.Height
}

func (c *Chunk) index(x, y, z int) int {
	return c.columnIndex(x, z) + y
}

// LocalBlock returns the block at a chunk-local coordinate. ok is false
// outside the chunk.
func (c *Chunk) LocalBlock(x, y, z int) (Block, bool) {
	if !c.dim.ContainsLocal(x, y, z) {
		return Block{}, false
	}
	return c.blocks[c.index(x, y, z)], true
}

// At is LocalBlock without the bounds report; out-of-range reads return Air.
func (c *Chunk) At(x, y, z int) Block {
	if !c.dim.ContainsLocal(x, y, z) {
		return Air
	}
	return c.blocks[c.index(x, y, z)]
}

// SetLocalBlock replaces the block at a chunk-local coordinate.
func (c *Chunk) SetLocalBlock(x, y, z int, block Block) bool {
	if !c.dim.ContainsLocal(x, y, z) {
		return false
	}
	c.blocks[c.index(x, y, z)] = block
	return true
}

// Column returns the live slice of blocks for column (x,z), bottom first.
// Callers may modify it in place.
func (c *Chunk) Column(x, z int) []Block {
	if x < 0 || z < 0 || x >= c.dim.Width || z >= c.dim.Depth {
		return nil
	}
	start := c.columnIndex(x, z)
	return c.blocks[start : start+c.dim.Height]
}

// SurfaceHeight returns the highest non-air y in a column, or -1.
func (c *Chunk) SurfaceHeight(x, z int) int {
	col := c.Column(x, z)
	for y := len(col) - 1; y >= 0; y-- {
		if !col[y].IsAir() {
			return y
		}
	}
	return -1
}

// ForEachBlock iterates over non-air blocks, invoking fn with world coordinates.
func (c *Chunk) ForEachBlock(fn func(global BlockCoord, block Block) bool) {
	origin := c.dim.Origin(c.Coord)
	for z := 0; z < c.dim.Depth; z++ {
		for x := 0; x < c.dim.Width; x++ {
			col := c.Column(x, z)
			for y, block := range col {
				if block.IsAir() {
					continue
				}
				if !fn(BlockCoord{X: origin.X + x, Y: y, Z: origin.Z + z}, block) {
					return
				}
			}
		}
	}
}

// Blocks exposes the raw grid for bulk passes (lighting, meshing).
func (c *Chunk) Blocks() []Block {
	return c.blocks
}

// Equal reports whether two chunks hold identical block grids.
func (c *Chunk) Equal(other *Chunk) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Coord != other.Coord || c.dim != other.dim || len(c.blocks) != len(other.blocks) {
		return false
	}
	for i := range c.blocks {
		if c.blocks[i] != other.blocks[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the chunk grid.
func (c *Chunk) Clone() *Chunk {
	clone := &Chunk{
		Coord:       c.Coord,
		NeedsRemesh: c.NeedsRemesh,
		dim:         c.dim,
		blocks:      make([]Block, len(c.blocks)),
	}
	copy(clone.blocks, c.blocks)
	if len(c.Mesh.Vertices) > 0 {
		clone.Mesh = Mesh{Vertices: append([]uint32(nil), c.Mesh.Vertices...), Quads: c.Mesh.Quads}
	}
	return clone
}

// BufferPool recycles chunk grids between evictions and new generation jobs.
// Get may be called from any goroutine; a chunk handed to Put must no longer
// be referenced by its previous owner.
type BufferPool struct {
	dim  Dimensions
	pool sync.Pool
}

func NewBufferPool(dim Dimensions) *BufferPool {
	p := &BufferPool{dim: dim}
	p.pool.New = func() any {
		return make([]Block, dim.Volume())
	}
	return p
}

// Get returns a cleared chunk for coord.
func (p *BufferPool) Get(coord ChunkCoord) *Chunk {
	blocks := p.pool.Get().([]Block)
	clear(blocks)
	return &Chunk{Coord: coord, dim: p.dim, blocks: blocks}
}

// Put releases a chunk's grid back to the pool.
func (p *BufferPool) Put(c *Chunk) {
	if c == nil || c.dim != p.dim || len(c.blocks) != p.dim.Volume() {
		return
	}
	blocks := c.blocks
	c.blocks = nil
	c.Mesh = Mesh{}
	p.pool.Put(blocks)
}
