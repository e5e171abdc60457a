package world

import "fmt"

// ChunkCoord identifies a chunk column on the horizontal grid.
type ChunkCoord struct {
	X int
	Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Add offsets c by dx, dz chunks.
func (c ChunkCoord) Add(dx, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Z: c.Z + dz}
}

// Chebyshev returns the square-ring distance between two chunk coordinates.
func (c ChunkCoord) Chebyshev(other ChunkCoord) int {
	dx := absInt(c.X - other.X)
	dz := absInt(c.Z - other.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// DistanceSq returns the squared Euclidean distance in chunks.
func (c ChunkCoord) DistanceSq(other ChunkCoord) int {
	dx := c.X - other.X
	dz := c.Z - other.Z
	return dx*dx + dz*dz
}

// BlockCoord describes a block position in world space. Y is vertical.
type BlockCoord struct {
	X int
	Y int
	Z int
}

func (b BlockCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", b.X, b.Y, b.Z)
}

// Add offsets b by the given deltas.
func (b BlockCoord) Add(dx, dy, dz int) BlockCoord {
	return BlockCoord{X: b.X + dx, Y: b.Y + dy, Z: b.Z + dz}
}

// Dimensions defines the size of a chunk in blocks.
type Dimensions struct {
	Width  int // x
	Depth  int // z
	Height int // y
}

// Volume is the number of blocks in one chunk.
func (d Dimensions) Volume() int {
	return d.Width * d.Depth * d.Height
}

// ContainsLocal reports whether the local coordinate lies inside a chunk.
func (d Dimensions) ContainsLocal(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < d.Width && y < d.Height && z < d.Depth
}

// ChunkOf returns the chunk containing the block.
func (d Dimensions) ChunkOf(b BlockCoord) ChunkCoord {
	return ChunkCoord{X: floorDiv(b.X, d.Width), Z: floorDiv(b.Z, d.Depth)}
}

// Local converts a world block coordinate to chunk-local x, y, z.
func (d Dimensions) Local(b BlockCoord) (ChunkCoord, int, int, int) {
	c := d.ChunkOf(b)
	return c, b.X - c.X*d.Width, b.Y, b.Z - c.Z*d.Depth
}

// Origin returns the world coordinate of the chunk's (0,0,0) block.
func (d Dimensions) Origin(c ChunkCoord) BlockCoord {
	return BlockCoord{X: c.X * d.Width, Y: 0, Z: c.Z * d.Depth}
}

// Bounds is an axis-aligned bounding box with inclusive corners in block space.
type Bounds struct {
	Min BlockCoord
	Max BlockCoord
}

// ChunkBounds returns the block-space bounds of a chunk.
func (d Dimensions) ChunkBounds(c ChunkCoord) Bounds {
	min := d.Origin(c)
	return Bounds{
		Min: min,
		Max: BlockCoord{X: min.X + d.Width - 1, Y: d.Height - 1, Z: min.Z + d.Depth - 1},
	}
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
