package main

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"voxelstream/internal/config"
)

func TestWriteConfigFromEnvJSON(t *testing.T) {
	t.Setenv(envConfigYAMLB64, "")

	cfg := config.Default()
	cfg.World.Seed = 4242
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv(envConfigJSON, string(data))

	path := filepath.Join(t.TempDir(), "config.json")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.World.Seed != 4242 {
		t.Fatalf("unexpected seed: %d", loaded.World.Seed)
	}
}

func TestWriteConfigFromEnvYAML(t *testing.T) {
	cfg := config.Default()
	cfg.Streaming.Radius = 7
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAMLB64, base64.StdEncoding.EncodeToString(data))

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if _, err := writeConfigFromEnv(path); err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.Streaming.Radius != 7 {
		t.Fatalf("unexpected radius: %d", loaded.Streaming.Radius)
	}
}

func TestWriteConfigFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv(envConfigYAMLB64, "")
	t.Setenv(envConfigJSON, `{"world":{"seed":0}}`)

	if _, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Fatalf("expected seed 0 to be rejected")
	}
}

func TestWriteConfigFromEnvNoPayload(t *testing.T) {
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAMLB64, "")

	wrote, err := writeConfigFromEnv("")
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if wrote {
		t.Fatalf("expected no config to be written")
	}
}
