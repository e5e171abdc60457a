package terrain

import (
	"context"
	"log"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// Generator creates repeatable terrain from a seed. Generate is pure: the
// same seed and coordinate always produce an identical block grid.
type Generator struct {
	cfg    *config.Config
	dim    world.Dimensions
	noise  *Noise
	trees  map[string]*treeVariant
	logger *log.Logger
}

func NewGenerator(cfg *config.Config, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	g := &Generator{
		cfg: cfg,
		dim: world.Dimensions{
			Width:  cfg.World.ChunkWidth,
			Depth:  cfg.World.ChunkDepth,
			Height: cfg.World.ChunkHeight,
		},
		noise:  NewNoise(cfg.World.Seed, cfg.Terrain),
		logger: logger,
	}
	g.initTreeVariants()
	return g
}

func (g *Generator) Dimensions() world.Dimensions {
	return g.dim
}

func (g *Generator) Seed() int64 {
	return g.noise.Seed()
}

// Generate allocates a chunk and runs the terrain and vegetation stages.
func (g *Generator) Generate(ctx context.Context, coord world.ChunkCoord) (*world.Chunk, error) {
	chunk := world.NewChunk(coord, g.dim)
	columns, err := g.GenerateTerrain(ctx, chunk)
	if err != nil {
		return nil, err
	}
	g.PlaceVegetation(chunk, columns)
	return chunk, nil
}

// GenerateTerrain fills a caller-owned, all-air chunk with the base terrain
// and returns the sampled columns for later stages.
func (g *Generator) GenerateTerrain(ctx context.Context, chunk *world.Chunk) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	origin := g.dim.Origin(chunk.Coord)
	columns := make([]Column, g.dim.Width*g.dim.Depth)
	for z := 0; z < g.dim.Depth; z++ {
		for x := 0; x < g.dim.Width; x++ {
			col := g.SampleColumn(origin.X+x, origin.Z+z)
			columns[z*g.dim.Width+x] = col
			g.populateColumn(chunk.Column(x, z), col)
		}
	}
	return columns, nil
}

func (g *Generator) populateColumn(column []world.Block, col Column) {
	if len(column) == 0 {
		return
	}
	biome := BiomeByID(col.Biome)
	top := clampInt(col.Height, 0, len(column)-1)
	seaLevel := g.cfg.Terrain.SeaLevel

	fillBlockRange(column, 0, top, world.NewBlock(world.BlockStone))
	fillerStart := top - biome.FillerDepth
	if fillerStart < 1 {
		fillerStart = 1
	}
	fillBlockRange(column, fillerStart, top-1, world.NewBlock(biome.Filler))

	surface := biome.Surface
	if col.Biome == BiomeMountains && top > seaLevel+32 {
		surface = world.BlockSnow
	}
	column[top] = world.NewBlock(surface)
	column[0] = world.NewBlock(world.BlockBedrock)

	if top < seaLevel && seaLevel < len(column) {
		fillBlockRange(column, top+1, seaLevel, world.WaterSource())
		if col.Temperature < 0.3 {
			column[seaLevel] = world.NewBlock(world.BlockIce)
		}
	}
}

func fillBlockRange(column []world.Block, start, end int, value world.Block) {
	if len(column) == 0 {
		return
	}
	if start < 0 {
		start = 0
	}
	if end >= len(column) {
		end = len(column) - 1
	}
	if start > end {
		return
	}
	column[start] = value
	filled := 1
	remaining := end - start + 1
	for filled < remaining {
		copyLen := filled
		if copyLen > remaining-filled {
			copyLen = remaining - filled
		}
		copy(column[start+filled:], column[start:start+copyLen])
		filled += copyLen
	}
}
