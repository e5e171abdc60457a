package terrain

import (
	"math"

	"voxelstream/internal/world"
)

type canopyShape uint8

const (
	canopyNone canopyShape = iota
	canopyRound
	canopyCone
)

type treeVariant struct {
	name         string
	trunk        world.BlockType
	leaves       world.BlockType
	trunkHeight  int
	trunkVaries  int
	canopyRadius int
	canopyHeight int
	shape        canopyShape
	minSpacing   int
	soil         world.BlockType // replaces the surface block under the trunk
}

type treePlacement struct {
	localX   int
	localZ   int
	surfaceY int
	globalX  int
	globalZ  int
	variant  *treeVariant
}

func (g *Generator) initTreeVariants() {
	variants := []treeVariant{
		{
			name:         "oak",
			trunk:        world.BlockLog,
			leaves:       world.BlockLeaves,
			trunkHeight:  4,
			trunkVaries:  2,
			canopyRadius: 2,
			canopyHeight: 4,
			shape:        canopyRound,
			minSpacing:   4,
			soil:         world.BlockDirt,
		},
		{
			name:         "birch",
			trunk:        world.BlockLog,
			leaves:       world.BlockLeaves,
			trunkHeight:  5,
			trunkVaries:  2,
			canopyRadius: 2,
			canopyHeight: 3,
			shape:        canopyRound,
			minSpacing:   3,
			soil:         world.BlockDirt,
		},
		{
			name:         "spruce",
			trunk:        world.BlockLog,
			leaves:       world.BlockLeaves,
			trunkHeight:  6,
			trunkVaries:  3,
			canopyRadius: 2,
			canopyHeight: 6,
			shape:        canopyCone,
			minSpacing:   4,
			soil:         world.BlockDirt,
		},
		{
			name:        "cactus",
			trunk:       world.BlockCactus,
			trunkHeight: 2,
			trunkVaries: 2,
			shape:       canopyNone,
			minSpacing:  5,
			soil:        world.BlockSand,
		},
	}
	g.trees = make(map[string]*treeVariant, len(variants))
	for i := range variants {
		g.trees[variants[i].name] = &variants[i]
	}
}

// PlaceVegetation stamps trees onto generated terrain and returns how many
// were placed. Trees stay inside the chunk edge margin so a chunk never
// writes into its neighbours; every placed block carries the natural tag.
func (g *Generator) PlaceVegetation(chunk *world.Chunk, columns []Column) int {
	veg := g.cfg.Vegetation
	if !veg.Enabled || veg.Density <= 0 {
		return 0
	}
	origin := g.dim.Origin(chunk.Coord)
	placements := make([]treePlacement, 0, 16)

	for z := 0; z < g.dim.Depth; z++ {
		for x := 0; x < g.dim.Width; x++ {
			col := columns[z*g.dim.Width+x]
			biome := BiomeByID(col.Biome)
			if biome.TreeDensity <= 0 || len(biome.Trees) == 0 {
				continue
			}
			if col.Height < g.cfg.Terrain.SeaLevel {
				continue
			}
			if chunk.At(x, col.Height, z).Type != biome.Surface {
				continue
			}

			globalX := origin.X + x
			globalZ := origin.Z + z
			variant := g.selectTreeVariant(biome, globalX, globalZ)
			if variant == nil {
				continue
			}
			if g.nearChunkEdge(x, z, variant) {
				continue
			}
			if !g.hasVerticalSpace(col.Height, variant) {
				continue
			}
			if g.slopeTooSteep(columns, x, z, col.Height) {
				continue
			}

			detail := g.noise.Detail(float64(globalX), float64(globalZ), veg.Frequency)
			chance := biome.TreeDensity * veg.Density * (0.4 + detail)
			if hashUnit(globalX, globalZ, g.Seed(), 0x95ac3f) >= chance {
				continue
			}
			if !g.checkSpacing(placements, variant, globalX, globalZ) {
				continue
			}
			placements = append(placements, treePlacement{
				localX:   x,
				localZ:   z,
				surfaceY: col.Height,
				globalX:  globalX,
				globalZ:  globalZ,
				variant:  variant,
			})
		}
	}

	for _, placement := range placements {
		g.buildTree(chunk, placement)
	}
	if g.cfg.Engine.Verbose && len(placements) > 0 {
		g.logger.Printf("chunk %v vegetation: %d trees", chunk.Coord, len(placements))
	}
	return len(placements)
}

func (g *Generator) buildTree(chunk *world.Chunk, placement treePlacement) {
	variant := placement.variant
	rng := newDeterministicRNG(placement.globalX, placement.globalZ, g.Seed())
	height := variant.trunkHeight + rng.nextInt(variant.trunkVaries+1)
	baseY := placement.surfaceY + 1

	chunk.SetLocalBlock(placement.localX, placement.surfaceY, placement.localZ, world.NewBlock(variant.soil))
	for level := 0; level < height; level++ {
		setNatural(chunk, placement.localX, baseY+level, placement.localZ, variant.trunk)
	}

	top := baseY + height
	switch variant.shape {
	case canopyRound:
		g.buildRoundCanopy(chunk, placement, top, rng)
	case canopyCone:
		g.buildConeCanopy(chunk, placement, top)
	}
}

func (g *Generator) buildRoundCanopy(chunk *world.Chunk, placement treePlacement, top int, rng *deterministicRNG) {
	variant := placement.variant
	start := top - variant.canopyHeight + 1
	for y := start; y <= top; y++ {
		radius := variant.canopyRadius
		if y >= top-1 {
			radius--
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				corner := absInt(dx) == radius && absInt(dz) == radius
				if corner && (radius == 0 || rng.nextInt(2) == 0 || y == top) {
					continue
				}
				placeIfAir(chunk, placement.localX+dx, y, placement.localZ+dz, variant.leaves)
			}
		}
	}
}

func (g *Generator) buildConeCanopy(chunk *world.Chunk, placement treePlacement, top int) {
	variant := placement.variant
	start := top - variant.canopyHeight
	for y := start; y <= top; y++ {
		layer := top - y
		radius := int(math.Round(float64(layer) / float64(variant.canopyHeight) * float64(variant.canopyRadius)))
		if layer%2 == 1 && radius > 0 {
			radius--
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				if absInt(dx)+absInt(dz) > radius+1 {
					continue
				}
				placeIfAir(chunk, placement.localX+dx, y, placement.localZ+dz, variant.leaves)
			}
		}
	}
}

func (g *Generator) selectTreeVariant(biome Biome, globalX, globalZ int) *treeVariant {
	if len(biome.Trees) == 0 {
		return nil
	}
	idx := int(hash3(globalX, globalZ, int(g.Seed()^0xd1ce7)) % uint32(len(biome.Trees)))
	return g.trees[biome.Trees[idx]]
}

func (g *Generator) nearChunkEdge(localX, localZ int, variant *treeVariant) bool {
	margin := g.cfg.Vegetation.EdgeMargin
	if variant.canopyRadius > margin {
		margin = variant.canopyRadius
	}
	return localX < margin || localZ < margin ||
		localX > g.dim.Width-margin-1 || localZ > g.dim.Depth-margin-1
}

func (g *Generator) hasVerticalSpace(surfaceY int, variant *treeVariant) bool {
	required := surfaceY + variant.trunkHeight + variant.trunkVaries + 2
	return required < g.dim.Height
}

func (g *Generator) slopeTooSteep(columns []Column, x, z, height int) bool {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, nz := x+d[0], z+d[1]
		if nx < 0 || nz < 0 || nx >= g.dim.Width || nz >= g.dim.Depth {
			continue
		}
		if absInt(columns[nz*g.dim.Width+nx].Height-height) > 2 {
			return true
		}
	}
	return false
}

func (g *Generator) checkSpacing(placements []treePlacement, variant *treeVariant, globalX, globalZ int) bool {
	spacing := g.cfg.Vegetation.MinSpacing
	if variant.minSpacing > spacing {
		spacing = variant.minSpacing
	}
	for _, placement := range placements {
		limit := spacing
		if placement.variant.minSpacing > limit {
			limit = placement.variant.minSpacing
		}
		if math.Hypot(float64(globalX-placement.globalX), float64(globalZ-placement.globalZ)) < float64(limit) {
			return false
		}
	}
	return true
}

func setNatural(chunk *world.Chunk, x, y, z int, t world.BlockType) {
	chunk.SetLocalBlock(x, y, z, world.NaturalBlock(t))
}

func placeIfAir(chunk *world.Chunk, x, y, z int, t world.BlockType) {
	if block, ok := chunk.LocalBlock(x, y, z); ok && block.IsAir() {
		setNatural(chunk, x, y, z, t)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
