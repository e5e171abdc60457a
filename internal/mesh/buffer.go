package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/world"
)

// Side is the direction a face points.
type Side uint8

const (
	SideWest   Side = iota // -x
	SideEast               // +x
	SideBottom             // -y
	SideTop                // +y
	SideNorth              // -z
	SideSouth              // +z
)

var sideNames = [...]string{"west", "east", "bottom", "top", "north", "south"}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return "unknown"
}

// Axis returns 0, 1 or 2 for x, y and z.
func (s Side) Axis() int {
	return int(s) / 2
}

// Positive reports whether the face points along the positive axis.
func (s Side) Positive() bool {
	return s%2 == 1
}

func (s Side) Normal() mgl32.Vec3 {
	var n mgl32.Vec3
	if s.Positive() {
		n[s.Axis()] = 1
	} else {
		n[s.Axis()] = -1
	}
	return n
}

// Vertex is one corner of a quad in chunk-local space.
//
// Packed layout, low bit first:
//
//	x:5 y:8 z:5 side:3 type:7 light:4
type Vertex struct {
	X, Y, Z int
	Side    Side
	Type    world.BlockType
	Light   uint8
}

const (
	xBits     = 5
	yBits     = 8
	zBits     = 5
	sideBits  = 3
	typeBits  = 7
	lightBits = 4

	yShift     = xBits
	zShift     = yShift + yBits
	sideShift  = zShift + zBits
	typeShift  = sideShift + sideBits
	lightShift = typeShift + typeBits
)

func bitMask(bits int) uint32 {
	return 1<<bits - 1
}

func (v Vertex) Pack() uint32 {
	out := uint32(v.X) & bitMask(xBits)
	out |= (uint32(v.Y) & bitMask(yBits)) << yShift
	out |= (uint32(v.Z) & bitMask(zBits)) << zShift
	out |= (uint32(v.Side) & bitMask(sideBits)) << sideShift
	out |= (uint32(v.Type) & bitMask(typeBits)) << typeShift
	out |= (uint32(v.Light) & bitMask(lightBits)) << lightShift
	return out
}

func Unpack(packed uint32) Vertex {
	return Vertex{
		X:     int(packed & bitMask(xBits)),
		Y:     int(packed >> yShift & bitMask(yBits)),
		Z:     int(packed >> zShift & bitMask(zBits)),
		Side:  Side(packed >> sideShift & bitMask(sideBits)),
		Type:  world.BlockType(packed >> typeShift & bitMask(typeBits)),
		Light: uint8(packed >> lightShift & bitMask(lightBits)),
	}
}

// Corner is a quad corner position in chunk-local block units.
type Corner struct {
	X, Y, Z int
}

// Buffer collects packed vertices, six per quad.
type Buffer struct {
	vertices []uint32
	quads    int
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// AppendQuad adds two triangles. Corners are given counter-clockwise as seen
// from the front for positive sides; negative sides are wound the other way
// so every face keeps the same facing after the sweep.
func (b *Buffer) AppendQuad(tr, br, bl, tl Corner, side Side, t world.BlockType, light uint8) {
	pack := func(c Corner) uint32 {
		return Vertex{X: c.X, Y: c.Y, Z: c.Z, Side: side, Type: t, Light: light}.Pack()
	}
	vtr, vbr, vbl, vtl := pack(tr), pack(br), pack(bl), pack(tl)
	if side.Positive() {
		b.vertices = append(b.vertices, vtl, vbl, vtr, vbl, vbr, vtr)
	} else {
		b.vertices = append(b.vertices, vtr, vbl, vtl, vtr, vbr, vbl)
	}
	b.quads++
}

func (b *Buffer) Vertices() []uint32 {
	return b.vertices
}

func (b *Buffer) Quads() int {
	return b.quads
}

func (b *Buffer) TriangleCount() int {
	return len(b.vertices) / 3
}

// Merge appends another buffer's vertices.
func (b *Buffer) Merge(other *Buffer) {
	if other == nil {
		return
	}
	b.vertices = append(b.vertices, other.vertices...)
	b.quads += other.quads
}

func (b *Buffer) Reset() {
	b.vertices = b.vertices[:0]
	b.quads = 0
}

// Mesh copies the buffer into a chunk mesh.
func (b *Buffer) Mesh() world.Mesh {
	return world.Mesh{Vertices: append([]uint32(nil), b.vertices...), Quads: b.quads}
}
