package main

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"voxelstream/internal/config"
)

const (
	envConfigJSON    = "VOXELSTREAM_CONFIG_JSON"
	envConfigYAMLB64 = "VOXELSTREAM_CONFIG_YAML_B64"
)

// writeConfigFromEnv materialises a configuration handed over through the
// environment (JSON, or base64 YAML) at cfgPath so the regular loader picks
// it up. It reports whether a file was written.
func writeConfigFromEnv(cfgPath string) (bool, error) {
	jsonPayload := os.Getenv(envConfigJSON)
	yamlPayload := os.Getenv(envConfigYAMLB64)

	if jsonPayload == "" && yamlPayload == "" {
		return false, nil
	}
	if cfgPath == "" {
		return false, errors.New("configuration provided through the environment but no -config path supplied")
	}

	cfg := config.Default()
	if jsonPayload != "" {
		if err := json.Unmarshal([]byte(jsonPayload), cfg); err != nil {
			return false, errors.Wrap(err, "decode config json from environment")
		}
	} else {
		data, err := base64.StdEncoding.DecodeString(yamlPayload)
		if err != nil {
			return false, errors.Wrap(err, "decode config yaml from environment")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return false, errors.Wrap(err, "parse config yaml from environment")
		}
	}

	if err := cfg.Validate(); err != nil {
		return false, errors.Wrap(err, "validate config from environment")
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return false, err
	}
	return true, nil
}
