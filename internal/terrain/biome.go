package terrain

import "voxelstream/internal/world"

// BiomeID names a climate zone.
type BiomeID uint8

const (
	BiomeOcean BiomeID = iota
	BiomePlains
	BiomeForest
	BiomeDesert
	BiomeTundra
	BiomeMountains
)

// Biome defines surface materials and vegetation for a climate zone.
type Biome struct {
	ID          BiomeID
	Name        string
	Surface     world.BlockType
	Filler      world.BlockType
	FillerDepth int
	TreeDensity float64
	Trees       []string
}

var biomes = map[BiomeID]Biome{
	BiomeOcean:     {ID: BiomeOcean, Name: "ocean", Surface: world.BlockSand, Filler: world.BlockGravel, FillerDepth: 3},
	BiomePlains:    {ID: BiomePlains, Name: "plains", Surface: world.BlockGrass, Filler: world.BlockDirt, FillerDepth: 3, TreeDensity: 0.04, Trees: []string{"oak"}},
	BiomeForest:    {ID: BiomeForest, Name: "forest", Surface: world.BlockGrass, Filler: world.BlockDirt, FillerDepth: 4, TreeDensity: 0.22, Trees: []string{"oak", "birch", "oak"}},
	BiomeDesert:    {ID: BiomeDesert, Name: "desert", Surface: world.BlockSand, Filler: world.BlockSand, FillerDepth: 5, TreeDensity: 0.02, Trees: []string{"cactus"}},
	BiomeTundra:    {ID: BiomeTundra, Name: "tundra", Surface: world.BlockSnow, Filler: world.BlockDirt, FillerDepth: 3, TreeDensity: 0.05, Trees: []string{"spruce"}},
	BiomeMountains: {ID: BiomeMountains, Name: "mountains", Surface: world.BlockStone, Filler: world.BlockStone, FillerDepth: 1, TreeDensity: 0.03, Trees: []string{"spruce"}},
}

func (id BiomeID) String() string {
	if b, ok := biomes[id]; ok {
		return b.Name
	}
	return "unknown"
}

// BiomeByID returns the definition for id.
func BiomeByID(id BiomeID) Biome {
	return biomes[id]
}

// Climate is the per-column input to biome classification.
type Climate struct {
	Temperature float64
	Moisture    float64
	Roughness   float64
	Height      int
	SeaLevel    int
}

// ClassifyBiome maps a column climate to a biome. Ocean wins below sea
// level, then relief, then temperature and moisture.
func ClassifyBiome(c Climate) BiomeID {
	switch {
	case c.Height < c.SeaLevel:
		return BiomeOcean
	case c.Roughness > 0.68 && c.Height > c.SeaLevel+12:
		return BiomeMountains
	case c.Temperature < 0.3:
		return BiomeTundra
	case c.Temperature > 0.66 && c.Moisture < 0.4:
		return BiomeDesert
	case c.Moisture > 0.55:
		return BiomeForest
	}
	return BiomePlains
}

// Column describes the generated shape of one world column.
type Column struct {
	Height int
	Biome  BiomeID
	Climate
}

// SampleColumn computes height and biome for a world column. Height blends
// continuous fields only, so neighbouring columns never jump at biome or
// chunk borders.
func (g *Generator) SampleColumn(wx, wz int) Column {
	x, z := float64(wx), float64(wz)
	cfg := g.cfg.Terrain
	base := float64(cfg.BaseHeight)
	continent := g.noise.Continent(x, z)
	rough := g.noise.Roughness(x, z)
	relief := lerp(0.35, 1.6, smoothstep(0.45, 0.85, rough))
	h := base + continent*cfg.Amplitude*0.5 + g.noise.Fractal(x, z)*cfg.Amplitude*relief
	height := clampInt(int(h), 1, g.dim.Height-1)

	temp, moist := g.noise.Climate(x, z)
	climate := Climate{
		Temperature: temp,
		Moisture:    moist,
		Roughness:   rough,
		Height:      height,
		SeaLevel:    cfg.SeaLevel,
	}
	return Column{Height: height, Biome: ClassifyBiome(climate), Climate: climate}
}
