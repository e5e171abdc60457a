package terrain

import (
	"context"
	"testing"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.ChunkHeight = 96
	return cfg
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := testConfig()
	coords := []world.ChunkCoord{{X: 0, Z: 0}, {X: -3, Z: 7}, {X: 12, Z: -5}}
	a := NewGenerator(cfg, nil)
	b := NewGenerator(cfg, nil)
	for _, coord := range coords {
		first, err := a.Generate(context.Background(), coord)
		if err != nil {
			t.Fatalf("generate %v: %v", coord, err)
		}
		second, err := b.Generate(context.Background(), coord)
		if err != nil {
			t.Fatalf("generate %v: %v", coord, err)
		}
		if !first.Equal(second) {
			t.Fatalf("chunk %v differs between runs with the same seed", coord)
		}
		again, _ := a.Generate(context.Background(), coord)
		if !first.Equal(again) {
			t.Fatalf("chunk %v differs between calls on one generator", coord)
		}
	}
}

func TestGenerateDependsOnSeed(t *testing.T) {
	cfg := testConfig()
	other := testConfig()
	other.World.Seed = cfg.World.Seed + 99
	a, _ := NewGenerator(cfg, nil).Generate(context.Background(), world.ChunkCoord{X: 2, Z: 2})
	b, _ := NewGenerator(other, nil).Generate(context.Background(), world.ChunkCoord{X: 2, Z: 2})
	if a.Equal(b) {
		t.Fatalf("different seeds produced identical chunks")
	}
}

func TestGenerateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewGenerator(testConfig(), nil).Generate(ctx, world.ChunkCoord{}); err == nil {
		t.Fatalf("expected cancelled context to abort generation")
	}
}

func TestColumnsFollowSampledShape(t *testing.T) {
	cfg := testConfig()
	cfg.Vegetation.Enabled = false
	gen := NewGenerator(cfg, nil)
	chunk, err := gen.Generate(context.Background(), world.ChunkCoord{X: 1, Z: -1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	dim := gen.Dimensions()
	origin := dim.Origin(chunk.Coord)
	for z := 0; z < dim.Depth; z++ {
		for x := 0; x < dim.Width; x++ {
			col := gen.SampleColumn(origin.X+x, origin.Z+z)
			if got := chunk.At(x, 0, z).Type; got != world.BlockBedrock {
				t.Fatalf("column (%d,%d): expected bedrock floor, got %s", x, z, got)
			}
			if chunk.At(x, col.Height, z).IsAir() {
				t.Fatalf("column (%d,%d): surface at %d is air", x, z, col.Height)
			}
			above := chunk.At(x, col.Height+1, z)
			if col.Height < cfg.Terrain.SeaLevel {
				if !above.IsWater() && above.Type != world.BlockIce {
					t.Fatalf("column (%d,%d): expected water above sea floor, got %s", x, z, above.Type)
				}
				continue
			}
			if !above.IsAir() {
				t.Fatalf("column (%d,%d): expected air above surface, got %s", x, z, above.Type)
			}
		}
	}
}

func TestHeightsAreContinuousAcrossChunkBorders(t *testing.T) {
	gen := NewGenerator(testConfig(), nil)
	dim := gen.Dimensions()
	for z := 0; z < dim.Depth; z++ {
		left := gen.SampleColumn(dim.Width-1, z)
		right := gen.SampleColumn(dim.Width, z)
		if absInt(left.Height-right.Height) > 6 {
			t.Fatalf("row %d: height jumps from %d to %d across the border", z, left.Height, right.Height)
		}
	}
}

func TestClassifyBiome(t *testing.T) {
	cases := []struct {
		name    string
		climate Climate
		want    BiomeID
	}{
		{"under sea", Climate{Height: 10, SeaLevel: 20, Temperature: 0.9}, BiomeOcean},
		{"rough highland", Climate{Height: 60, SeaLevel: 20, Roughness: 0.9, Temperature: 0.5}, BiomeMountains},
		{"cold", Climate{Height: 30, SeaLevel: 20, Temperature: 0.1}, BiomeTundra},
		{"hot and dry", Climate{Height: 30, SeaLevel: 20, Temperature: 0.9, Moisture: 0.1}, BiomeDesert},
		{"wet", Climate{Height: 30, SeaLevel: 20, Temperature: 0.5, Moisture: 0.8}, BiomeForest},
		{"mild", Climate{Height: 30, SeaLevel: 20, Temperature: 0.5, Moisture: 0.4}, BiomePlains},
	}
	for _, tc := range cases {
		if got := ClassifyBiome(tc.climate); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestNoiseFieldsStayInRange(t *testing.T) {
	n := NewNoise(5, config.Default().Terrain)
	for i := -200; i < 200; i += 7 {
		x, z := float64(i*13), float64(i*-29)
		if v := n.Fractal(x, z); v < -1 || v > 1 {
			t.Fatalf("fractal out of range: %f", v)
		}
		temp, moist := n.Climate(x, z)
		if temp < 0 || temp > 1 || moist < 0 || moist > 1 {
			t.Fatalf("climate out of range: %f %f", temp, moist)
		}
		if d := n.Detail(x, z, 0.3); d < 0 || d > 1 {
			t.Fatalf("detail out of range: %f", d)
		}
	}
}
