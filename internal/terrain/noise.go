package terrain

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"voxelstream/internal/config"
)

// Noise bundles the seeded noise fields used by generation. All fields sample
// world coordinates, so values agree across chunk borders. Safe for
// concurrent use: opensimplex instances only read their permutation tables.
type Noise struct {
	cfg  config.TerrainConfig
	seed int64

	height      opensimplex.Noise
	continent   opensimplex.Noise
	roughness   opensimplex.Noise
	temperature opensimplex.Noise
	moisture    opensimplex.Noise
	detail      opensimplex.Noise
}

func NewNoise(seed int64, cfg config.TerrainConfig) *Noise {
	return &Noise{
		cfg:         cfg,
		seed:        seed,
		height:      opensimplex.New(seed),
		continent:   opensimplex.New(seed + 1),
		roughness:   opensimplex.New(seed + 2),
		temperature: opensimplex.New(seed + 3),
		moisture:    opensimplex.New(seed + 4),
		detail:      opensimplex.New(seed + 5),
	}
}

func (n *Noise) Seed() int64 {
	return n.seed
}

// Fractal sums octaves of the height field and normalises to [-1,1].
func (n *Noise) Fractal(x, z float64) float64 {
	return octaves(n.height, x, z, n.cfg.Frequency, n.cfg.Octaves, n.cfg.Persistence, n.cfg.Lacunarity)
}

// Continent is a low-frequency field in [-1,1] shifting land above or below sea level.
func (n *Noise) Continent(x, z float64) float64 {
	return octaves(n.continent, x, z, n.cfg.BiomeFrequency, 2, 0.5, 2)
}

// Roughness is in [0,1]; high values raise mountain relief.
func (n *Noise) Roughness(x, z float64) float64 {
	return unit(octaves(n.roughness, x, z, n.cfg.BiomeFrequency*1.7, 2, 0.5, 2))
}

// Climate samples temperature and moisture in [0,1].
func (n *Noise) Climate(x, z float64) (temperature, moisture float64) {
	temperature = unit(octaves(n.temperature, x, z, n.cfg.BiomeFrequency, 2, 0.5, 2))
	moisture = unit(octaves(n.moisture, x, z, n.cfg.BiomeFrequency*1.3, 2, 0.5, 2))
	return temperature, moisture
}

// Detail samples the high-frequency vegetation field in [0,1].
func (n *Noise) Detail(x, z, frequency float64) float64 {
	return unit(n.detail.Eval2(x*frequency, z*frequency))
}

func octaves(field opensimplex.Noise, x, z, frequency float64, count int, persistence, lacunarity float64) float64 {
	amplitude := 1.0
	sum := 0.0
	maxAmplitude := 0.0
	for i := 0; i < count; i++ {
		sum += field.Eval2(x*frequency, z*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if maxAmplitude == 0 {
		return 0
	}
	return clampFloat(sum/maxAmplitude, -1, 1)
}

func unit(v float64) float64 {
	return clampFloat((v+1)*0.5, 0, 1)
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := clampFloat((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// hash3 mixes three integers into a well-distributed 32-bit value.
func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// hashUnit maps a world column and salt to [0,1).
func hashUnit(x, z int, seed int64, salt int64) float64 {
	return float64(hash3(x, z, int(seed^salt))&0xFFFF) / 0x10000
}

type deterministicRNG struct {
	state uint64
}

func newDeterministicRNG(x, z int, seed int64) *deterministicRNG {
	state := uint64(uint32(x))<<32 ^ uint64(uint32(z))<<1 ^ uint64(seed)
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	return &deterministicRNG{state: state}
}

func (r *deterministicRNG) next() uint64 {
	r.state ^= r.state << 7
	r.state ^= r.state >> 9
	r.state ^= r.state << 8
	return r.state
}

func (r *deterministicRNG) nextInt(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
