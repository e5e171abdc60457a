package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing seed",
			mutate:  func(cfg *Config) { cfg.World.Seed = 0 },
			wantErr: "world.seed must be set",
		},
		{
			name:    "non positive chunk dimensions",
			mutate:  func(cfg *Config) { cfg.World.ChunkWidth = 0 },
			wantErr: "chunk dimensions must be positive",
		},
		{
			name:    "chunk too wide to pack",
			mutate:  func(cfg *Config) { cfg.World.ChunkDepth = 32 },
			wantErr: "must be <= 31",
		},
		{
			name:    "chunk too tall to pack",
			mutate:  func(cfg *Config) { cfg.World.ChunkHeight = 256 },
			wantErr: "world.chunkHeight must be <= 255",
		},
		{
			name:    "non finite frequency",
			mutate:  func(cfg *Config) { cfg.Terrain.Frequency = math.Inf(1) },
			wantErr: "terrain frequencies",
		},
		{
			name:    "nan lacunarity",
			mutate:  func(cfg *Config) { cfg.Terrain.Lacunarity = math.NaN() },
			wantErr: "terrain frequencies",
		},
		{
			name:    "persistence above one",
			mutate:  func(cfg *Config) { cfg.Terrain.Persistence = 1.5 },
			wantErr: "terrain.persistence",
		},
		{
			name:    "zero octaves",
			mutate:  func(cfg *Config) { cfg.Terrain.Octaves = 0 },
			wantErr: "terrain.octaves must be between 1 and 16",
		},
		{
			name:    "sea level above world",
			mutate:  func(cfg *Config) { cfg.Terrain.SeaLevel = 400 },
			wantErr: "terrain.seaLevel",
		},
		{
			name:    "edge margin fills chunk",
			mutate:  func(cfg *Config) { cfg.Vegetation.EdgeMargin = 8 },
			wantErr: "vegetation.edgeMargin",
		},
		{
			name:    "negative workers",
			mutate:  func(cfg *Config) { cfg.Workers.Count = -1 },
			wantErr: "workers.count cannot be negative",
		},
		{
			name:    "empty queue",
			mutate:  func(cfg *Config) { cfg.Workers.QueueCapacity = 0 },
			wantErr: "workers.queueCapacity must be positive",
		},
		{
			name:    "no installs per frame",
			mutate:  func(cfg *Config) { cfg.Streaming.MaxInstallsPerFrame = 0 },
			wantErr: "streaming.maxInstallsPerFrame must be positive",
		},
		{
			name: "pacing without burst",
			mutate: func(cfg *Config) {
				cfg.Streaming.SubmitsPerSecond = 30
				cfg.Streaming.SubmitBurst = 0
			},
			wantErr: "streaming.submitBurst",
		},
		{
			name:    "water spread too far",
			mutate:  func(cfg *Config) { cfg.Water.MaxSpread = 9 },
			wantErr: "water.maxSpread must be between 1 and 6",
		},
		{
			name:    "water backtrace shorter than spread",
			mutate:  func(cfg *Config) { cfg.Water.Backtrace = 3 },
			wantErr: "water.backtrace must be at least water.maxSpread",
		},
		{
			name:    "zero frame interval",
			mutate:  func(cfg *Config) { cfg.Engine.FrameInterval = 0 },
			wantErr: "engine.frameInterval must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	cfg := Default()
	cfg.Water.Enabled = false
	cfg.Water.MaxSpread = 0
	cfg.Vegetation.Enabled = false
	cfg.Vegetation.Frequency = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled sections should not be validated: %v", err)
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Seed != Default().World.Seed {
		t.Fatalf("expected default seed")
	}
}

func TestLoadJSONMergesOverDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "world": {"seed": 42},
  "streaming": {"radius": 6},
  "engine": {"frameInterval": "20ms"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Seed != 42 || cfg.Streaming.Radius != 6 {
		t.Fatalf("unexpected values: seed=%d radius=%d", cfg.World.Seed, cfg.Streaming.Radius)
	}
	if got := cfg.Engine.FrameInterval.Duration(); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms frame interval, got %s", got)
	}
	if cfg.World.ChunkHeight != Default().World.ChunkHeight {
		t.Fatalf("unset fields should keep defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
world:
  seed: 7
terrain:
  octaves: 6
engine:
  frameInterval: 33ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Seed != 7 || cfg.Terrain.Octaves != 6 {
		t.Fatalf("unexpected values: %+v %+v", cfg.World, cfg.Terrain)
	}
	if got := cfg.Engine.FrameInterval.Duration(); got != 33*time.Millisecond {
		t.Fatalf("expected 33ms, got %s", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.json", `{"world": {"sead": 42}}`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	path := writeFile(t, "config.yml", "terrain:\n  octaves: 40\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected octaves out of range to fail")
	}
}

func TestLoadRejectsInvalidSeed(t *testing.T) {
	path := writeFile(t, "config.json", `{"world": {"seed": 0}}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "world.seed must be set") {
		t.Fatalf("expected seed error, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out/config.json", "out/config.yaml"} {
		cfg := Default()
		cfg.World.Seed = 99
		cfg.Engine.FrameInterval = Duration(40 * time.Millisecond)
		path := filepath.Join(dir, name)
		if err := Save(cfg, path); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if loaded.World.Seed != 99 || loaded.Engine.FrameInterval != cfg.Engine.FrameInterval {
			t.Fatalf("%s: round trip mismatch %+v", name, loaded.World)
		}
	}
}

func TestDurationUnmarshalJSONNumeric(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte("1500000")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration() != 1500*time.Microsecond {
		t.Fatalf("unexpected duration %s", d.Duration())
	}
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
