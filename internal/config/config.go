package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that
// accepts human readable strings such as "150ms" in configuration files while
// still allowing numeric nanosecond values.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return errors.New("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "duration: decode string")
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return errors.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML scalars.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("duration: line %d: expected scalar", value.Line)
	}
	if value.ShortTag() == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return errors.Wrap(err, "duration: decode int")
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	if value.ShortTag() == "!!null" {
		*d = 0
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "duration: parse %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters of the streaming core.
type Config struct {
	World      WorldConfig      `json:"world" yaml:"world"`
	Terrain    TerrainConfig    `json:"terrain" yaml:"terrain"`
	Vegetation VegetationConfig `json:"vegetation" yaml:"vegetation"`
	Workers    WorkerConfig     `json:"workers" yaml:"workers"`
	Streaming  StreamingConfig  `json:"streaming" yaml:"streaming"`
	Water      WaterConfig      `json:"water" yaml:"water"`
	Mesh       MeshConfig       `json:"mesh" yaml:"mesh"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
}

type WorldConfig struct {
	Seed        int64 `json:"seed" yaml:"seed"`
	ChunkWidth  int   `json:"chunkWidth" yaml:"chunkWidth"`
	ChunkDepth  int   `json:"chunkDepth" yaml:"chunkDepth"`
	ChunkHeight int   `json:"chunkHeight" yaml:"chunkHeight"`
}

type TerrainConfig struct {
	Frequency      float64 `json:"frequency" yaml:"frequency"`
	Amplitude      float64 `json:"amplitude" yaml:"amplitude"`
	Octaves        int     `json:"octaves" yaml:"octaves"`
	Persistence    float64 `json:"persistence" yaml:"persistence"`
	Lacunarity     float64 `json:"lacunarity" yaml:"lacunarity"`
	BaseHeight     int     `json:"baseHeight" yaml:"baseHeight"`
	SeaLevel       int     `json:"seaLevel" yaml:"seaLevel"`
	BiomeFrequency float64 `json:"biomeFrequency" yaml:"biomeFrequency"`
}

type VegetationConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Frequency  float64 `json:"frequency" yaml:"frequency"`   // detail noise frequency
	Density    float64 `json:"density" yaml:"density"`       // multiplier on per-biome tree density
	EdgeMargin int     `json:"edgeMargin" yaml:"edgeMargin"` // columns kept clear at chunk borders
	MinSpacing int     `json:"minSpacing" yaml:"minSpacing"`
}

type WorkerConfig struct {
	Count         int `json:"count" yaml:"count"` // 0 picks GOMAXPROCS-1
	QueueCapacity int `json:"queueCapacity" yaml:"queueCapacity"`
}

type StreamingConfig struct {
	Radius              int     `json:"radius" yaml:"radius"`
	MaxInstallsPerFrame int     `json:"maxInstallsPerFrame" yaml:"maxInstallsPerFrame"`
	SubmitsPerSecond    float64 `json:"submitsPerSecond" yaml:"submitsPerSecond"` // 0 disables pacing
	SubmitBurst         int     `json:"submitBurst" yaml:"submitBurst"`
}

type WaterConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	BatchPerTick int  `json:"batchPerTick" yaml:"batchPerTick"`
	MaxSpread    int  `json:"maxSpread" yaml:"maxSpread"`
	Backtrace    int  `json:"backtrace" yaml:"backtrace"`
}

type MeshConfig struct {
	GroupSize                int `json:"groupSize" yaml:"groupSize"`
	MaxRemeshPerFrame        int `json:"maxRemeshPerFrame" yaml:"maxRemeshPerFrame"`
	MaxBatchRebuildsPerFrame int `json:"maxBatchRebuildsPerFrame" yaml:"maxBatchRebuildsPerFrame"`
}

type EngineConfig struct {
	FrameInterval Duration `json:"frameInterval" yaml:"frameInterval"` // e.g. "16ms"
	LogPrefix     string   `json:"logPrefix" yaml:"logPrefix"`
	Verbose       bool     `json:"verbose" yaml:"verbose"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults. Values in the file override defaults field by field.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	yamlFile := isYAML(path)
	if err := validateDocument(data, yamlFile); err != nil {
		return nil, errors.Wrap(err, "validate config schema")
	}

	if yamlFile {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

// Save writes cfg to path, as YAML when the extension says so and JSON otherwise.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create config directory")
		}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:        1337,
			ChunkWidth:  16,
			ChunkDepth:  16,
			ChunkHeight: 128,
		},
		Terrain: TerrainConfig{
			Frequency:      0.008,
			Amplitude:      28,
			Octaves:        4,
			Persistence:    0.5,
			Lacunarity:     2.0,
			BaseHeight:     52,
			SeaLevel:       46,
			BiomeFrequency: 0.0025,
		},
		Vegetation: VegetationConfig{
			Enabled:    true,
			Frequency:  0.21,
			Density:    1.0,
			EdgeMargin: 2,
			MinSpacing: 4,
		},
		Workers: WorkerConfig{
			Count:         0,
			QueueCapacity: 512,
		},
		Streaming: StreamingConfig{
			Radius:              4,
			MaxInstallsPerFrame: 4,
			SubmitsPerSecond:    0,
			SubmitBurst:         16,
		},
		Water: WaterConfig{
			Enabled:      true,
			BatchPerTick: 64,
			MaxSpread:    6,
			Backtrace:    32,
		},
		Mesh: MeshConfig{
			GroupSize:                2,
			MaxRemeshPerFrame:        4,
			MaxBatchRebuildsPerFrame: 2,
		},
		Engine: EngineConfig{
			FrameInterval: Duration(16 * time.Millisecond),
			LogPrefix:     "voxelstream ",
		},
	}
}

// Validate reports the first configuration error. Configuration errors are
// fatal: callers must not start generation with an invalid config.
func (c *Config) Validate() error {
	if c.World.Seed == 0 {
		return errors.New("world.seed must be set")
	}
	if c.World.ChunkWidth <= 0 || c.World.ChunkDepth <= 0 || c.World.ChunkHeight <= 0 {
		return errors.New("chunk dimensions must be positive")
	}
	if c.World.ChunkWidth > 31 || c.World.ChunkDepth > 31 {
		return errors.New("world.chunkWidth and world.chunkDepth must be <= 31")
	}
	if c.World.ChunkHeight > 255 {
		return errors.New("world.chunkHeight must be <= 255")
	}
	if !positiveFinite(c.Terrain.Frequency) || !positiveFinite(c.Terrain.Lacunarity) || !positiveFinite(c.Terrain.BiomeFrequency) {
		return errors.New("terrain frequencies and lacunarity must be positive and finite")
	}
	if !positiveFinite(c.Terrain.Persistence) || c.Terrain.Persistence > 1 {
		return errors.New("terrain.persistence must be in (0,1]")
	}
	if c.Terrain.Amplitude < 0 || math.IsNaN(c.Terrain.Amplitude) || math.IsInf(c.Terrain.Amplitude, 0) {
		return errors.New("terrain.amplitude must be finite and non-negative")
	}
	if c.Terrain.Octaves < 1 || c.Terrain.Octaves > 16 {
		return errors.New("terrain.octaves must be between 1 and 16")
	}
	if c.Terrain.BaseHeight < 1 || c.Terrain.BaseHeight >= c.World.ChunkHeight {
		return errors.New("terrain.baseHeight must lie inside the chunk height")
	}
	if c.Terrain.SeaLevel < 0 || c.Terrain.SeaLevel >= c.World.ChunkHeight {
		return errors.New("terrain.seaLevel must lie inside the chunk height")
	}
	if c.Vegetation.Enabled {
		if !positiveFinite(c.Vegetation.Frequency) {
			return errors.New("vegetation.frequency must be positive and finite")
		}
		if c.Vegetation.Density < 0 || math.IsNaN(c.Vegetation.Density) {
			return errors.New("vegetation.density cannot be negative")
		}
		if c.Vegetation.EdgeMargin < 0 || 2*c.Vegetation.EdgeMargin >= min(c.World.ChunkWidth, c.World.ChunkDepth) {
			return errors.New("vegetation.edgeMargin must leave room inside the chunk")
		}
	}
	if c.Workers.Count < 0 {
		return errors.New("workers.count cannot be negative")
	}
	if c.Workers.QueueCapacity <= 0 {
		return errors.New("workers.queueCapacity must be positive")
	}
	if c.Streaming.Radius < 0 {
		return errors.New("streaming.radius cannot be negative")
	}
	if c.Streaming.MaxInstallsPerFrame <= 0 {
		return errors.New("streaming.maxInstallsPerFrame must be positive")
	}
	if c.Streaming.SubmitsPerSecond < 0 {
		return errors.New("streaming.submitsPerSecond cannot be negative")
	}
	if c.Streaming.SubmitsPerSecond > 0 && c.Streaming.SubmitBurst <= 0 {
		return errors.New("streaming.submitBurst must be positive when pacing is enabled")
	}
	if c.Water.Enabled {
		if c.Water.BatchPerTick <= 0 {
			return errors.New("water.batchPerTick must be positive")
		}
		if c.Water.MaxSpread < 1 || c.Water.MaxSpread > 6 {
			return errors.New("water.maxSpread must be between 1 and 6")
		}
		if c.Water.Backtrace < c.Water.MaxSpread {
			return errors.New("water.backtrace must be at least water.maxSpread")
		}
	}
	if c.Mesh.GroupSize <= 0 {
		return errors.New("mesh.groupSize must be positive")
	}
	if c.Mesh.MaxRemeshPerFrame <= 0 || c.Mesh.MaxBatchRebuildsPerFrame <= 0 {
		return errors.New("mesh per-frame budgets must be positive")
	}
	if c.Engine.FrameInterval <= 0 {
		return errors.New("engine.frameInterval must be positive")
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
