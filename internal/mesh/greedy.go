// Package mesh turns chunk grids into packed vertex buffers and merges
// neighbouring chunk meshes into draw batches.
package mesh

import "voxelstream/internal/world"

// Neighborhood holds the live chunks around the one being meshed. Any of
// them may be nil; a missing neighbour reads as open sky.
type Neighborhood struct {
	West  *world.Chunk // x-1
	East  *world.Chunk // x+1
	North *world.Chunk // z-1
	South *world.Chunk // z+1
}

// NeighborhoodOf collects the four horizontal neighbours of coord.
func NeighborhoodOf(coord world.ChunkCoord, lookup func(world.ChunkCoord) (*world.Chunk, bool)) Neighborhood {
	get := func(dx, dz int) *world.Chunk {
		if c, ok := lookup(coord.Add(dx, dz)); ok {
			return c
		}
		return nil
	}
	return Neighborhood{West: get(-1, 0), East: get(1, 0), North: get(0, -1), South: get(0, 1)}
}

var skyBlock = world.Block{Type: world.BlockAir, Light: world.MaxLight}

// sample reads a block relative to chunk, crossing into neighbours on the
// x and z axes. Below the world reads as bedrock so bottom faces are culled.
func (n Neighborhood) sample(chunk *world.Chunk, x, y, z int) world.Block {
	dim := chunk.Dimensions()
	switch {
	case y < 0:
		return world.NewBlock(world.BlockBedrock)
	case y >= dim.Height:
		return skyBlock
	}
	var src *world.Chunk
	switch {
	case x < 0:
		src, x = n.West, x+dim.Width
	case x >= dim.Width:
		src, x = n.East, x-dim.Width
	case z < 0:
		src, z = n.North, z+dim.Depth
	case z >= dim.Depth:
		src, z = n.South, z-dim.Depth
	default:
		return chunk.At(x, y, z)
	}
	if src == nil || src.Dimensions() != dim {
		return skyBlock
	}
	return src.At(x, y, z)
}

// occludes reports whether neighbour hides the face of block it touches.
func occludes(block, neighbour world.Block) bool {
	switch {
	case neighbour.IsAir():
		return false
	case neighbour.Solid():
		return true
	}
	return neighbour.Type == block.Type
}

type face struct {
	visible bool
	t       world.BlockType
	light   uint8
}

func (f face) mergesWith(other face) bool {
	return f.visible && other.visible && f.t == other.t && f.light == other.light
}

// Build greedy-meshes chunk. Faces are emitted where a block touches air or
// a different transparent block; coplanar faces with equal type and light
// are merged into larger quads. Face light is taken from the cell in front.
func Build(chunk *world.Chunk, neighbors Neighborhood) world.Mesh {
	buf := NewBuffer()
	BuildInto(buf, chunk, neighbors)
	return buf.Mesh()
}

// BuildInto meshes chunk into buf, which is reset first.
func BuildInto(buf *Buffer, chunk *world.Chunk, neighbors Neighborhood) {
	buf.Reset()
	dim := chunk.Dimensions()
	size := [3]int{dim.Width, dim.Height, dim.Depth}
	var maskBuf []face

	for s := SideWest; s <= SideSouth; s++ {
		d := s.Axis()
		u, v := (d+1)%3, (d+2)%3
		step := -1
		if s.Positive() {
			step = 1
		}
		area := size[u] * size[v]
		if cap(maskBuf) < area {
			maskBuf = make([]face, area)
		}
		mask := maskBuf[:area]

		var p [3]int
		for p[d] = 0; p[d] < size[d]; p[d]++ {
			n := 0
			for p[v] = 0; p[v] < size[v]; p[v]++ {
				for p[u] = 0; p[u] < size[u]; p[u]++ {
					block := chunk.At(p[0], p[1], p[2])
					f := face{}
					if !block.IsAir() {
						q := p
						q[d] += step
						front := neighbors.sample(chunk, q[0], q[1], q[2])
						if !occludes(block, front) {
							f = face{visible: true, t: block.Type, light: front.Light}
						}
					}
					mask[n] = f
					n++
				}
			}
			emitSlice(buf, mask, size[u], size[v], d, u, v, p[d], s)
		}
	}
}

// emitSlice merges one mask slice into rectangles and appends their quads.
func emitSlice(buf *Buffer, mask []face, width, height, d, u, v, layer int, s Side) {
	plane := layer
	if s.Positive() {
		plane++
	}
	n := 0
	for j := 0; j < height; j++ {
		for i := 0; i < width; {
			f := mask[n]
			if !f.visible {
				i++
				n++
				continue
			}
			w := 1
			for i+w < width && mask[n+w].mergesWith(f) {
				w++
			}
			h := 1
		grow:
			for j+h < height {
				for k := 0; k < w; k++ {
					if !mask[n+k+h*width].mergesWith(f) {
						break grow
					}
				}
				h++
			}

			var base, du, dv [3]int
			base[d] = plane
			base[u], base[v] = i, j
			du[u] = w
			dv[v] = h
			corner := func(a, b bool) Corner {
				c := base
				if a {
					c[0], c[1], c[2] = c[0]+du[0], c[1]+du[1], c[2]+du[2]
				}
				if b {
					c[0], c[1], c[2] = c[0]+dv[0], c[1]+dv[1], c[2]+dv[2]
				}
				return Corner{X: c[0], Y: c[1], Z: c[2]}
			}
			buf.AppendQuad(corner(true, true), corner(true, false), corner(false, false), corner(false, true), s, f.t, f.light)

			for l := 0; l < h; l++ {
				for k := 0; k < w; k++ {
					mask[n+k+l*width] = face{}
				}
			}
			i += w
			n += w
		}
	}
}
