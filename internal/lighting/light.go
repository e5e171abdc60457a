// Package lighting computes per-block skylight for a chunk: a top-down column
// scan followed by bounded neighbour relaxation.
package lighting

import "voxelstream/internal/world"

// MaxPasses bounds relaxation; light falls by one per hop, so 16 passes
// cover the full 15-level range.
const MaxPasses = 16

// removalRadius is how far light from one column can travel horizontally.
const removalRadius = int(world.MaxLight) - 1

// Compute lights a freshly generated chunk from scratch.
func Compute(chunk *world.Chunk) int {
	dim := chunk.Dimensions()
	for z := 0; z < dim.Depth; z++ {
		for x := 0; x < dim.Width; x++ {
			scanColumn(chunk.Column(x, z))
		}
	}
	return Relax(chunk)
}

// scanColumn walks a column from the top. Air keeps the incoming level,
// transparent blocks record it and attenuate by one, and the first solid
// block records it and darkens everything below. It reports whether any
// cell ended darker than before.
func scanColumn(col []world.Block) bool {
	level := int(world.MaxLight)
	darker := false
	for y := len(col) - 1; y >= 0; y-- {
		b := &col[y]
		next := world.ClampLight(level)
		if next < b.Light {
			darker = true
		}
		b.Light = next
		switch {
		case b.Type.IsAir():
		case b.Type.Transparent():
			if level > 0 {
				level--
			}
		default:
			level = 0
		}
	}
	return darker
}

// Relax raises air and transparent cells to one below their brightest
// neighbour until a pass changes nothing or MaxPasses is reached. Only
// neighbours inside the chunk are consulted. It returns the number of
// passes run.
func Relax(chunk *world.Chunk) int {
	dim := chunk.Dimensions()
	blocks := chunk.Blocks()
	h := dim.Height
	rowStride := dim.Width * h

	passes := 0
	for passes < MaxPasses {
		passes++
		changed := false
		for z := 0; z < dim.Depth; z++ {
			for x := 0; x < dim.Width; x++ {
				base := (z*dim.Width + x) * h
				for y := 0; y < h; y++ {
					i := base + y
					b := &blocks[i]
					if b.Type.Solid() {
						continue
					}
					best := b.Light
					// Solid neighbours count too: a lit roof feeds the cell below it.
					consider := func(n world.Block) {
						if n.Light > best+1 {
							best = n.Light - 1
						}
					}
					if y+1 < h {
						consider(blocks[i+1])
					}
					if y > 0 {
						consider(blocks[i-1])
					}
					if x+1 < dim.Width {
						consider(blocks[i+h])
					}
					if x > 0 {
						consider(blocks[i-h])
					}
					if z+1 < dim.Depth {
						consider(blocks[i+rowStride])
					}
					if z > 0 {
						consider(blocks[i-rowStride])
					}
					if best != b.Light {
						b.Light = best
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return passes
}

// Column names a chunk-local column.
type Column struct {
	X int
	Z int
}

// UpdateColumn recomputes light after an edit in column (x,z). See UpdateColumns.
func UpdateColumn(chunk *world.Chunk, x, z int) bool {
	return UpdateColumns(chunk, []Column{{X: x, Z: z}})
}

// UpdateColumns rescans the edited columns and relaxes the chunk. When a
// column got darker, every column within light range is reset to its scan
// values first so no stale light survives. NeedsRemesh is set only if some
// light level actually changed; it reports the same.
func UpdateColumns(chunk *world.Chunk, cols []Column) bool {
	if len(cols) == 0 {
		return false
	}
	dim := chunk.Dimensions()
	before := snapshot(chunk)

	darker := false
	for _, c := range cols {
		col := chunk.Column(c.X, c.Z)
		if col == nil {
			continue
		}
		if scanColumn(col) {
			darker = true
		}
	}
	if darker {
		for z := 0; z < dim.Depth; z++ {
			for x := 0; x < dim.Width; x++ {
				if withinRange(cols, x, z) {
					scanColumn(chunk.Column(x, z))
				}
			}
		}
	}
	Relax(chunk)

	changed := false
	for i, b := range chunk.Blocks() {
		if b.Light != before[i] {
			changed = true
			break
		}
	}
	if changed {
		chunk.NeedsRemesh = true
	}
	return changed
}

func withinRange(cols []Column, x, z int) bool {
	for _, c := range cols {
		dx, dz := x-c.X, z-c.Z
		if dx < 0 {
			dx = -dx
		}
		if dz < 0 {
			dz = -dz
		}
		if dx+dz <= removalRadius {
			return true
		}
	}
	return false
}

func snapshot(chunk *world.Chunk) []uint8 {
	blocks := chunk.Blocks()
	out := make([]uint8, len(blocks))
	for i, b := range blocks {
		out[i] = b.Light
	}
	return out
}
