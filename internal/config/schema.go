package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "config.schema.json"

// schemaJSON describes the shape of a config document. Every field is
// optional because values merge over Default; cross-field rules live in
// Validate.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "duration": {"oneOf": [{"type": "string", "pattern": "^([0-9.]+(ns|us|µs|ms|s|m|h))+$"}, {"type": "integer", "minimum": 0}]}
  },
  "properties": {
    "world": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "seed": {"type": "integer"},
        "chunkWidth": {"type": "integer", "minimum": 1, "maximum": 31},
        "chunkDepth": {"type": "integer", "minimum": 1, "maximum": 31},
        "chunkHeight": {"type": "integer", "minimum": 1, "maximum": 255}
      }
    },
    "terrain": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "frequency": {"type": "number", "exclusiveMinimum": 0},
        "amplitude": {"type": "number", "minimum": 0},
        "octaves": {"type": "integer", "minimum": 1, "maximum": 16},
        "persistence": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "lacunarity": {"type": "number", "exclusiveMinimum": 0},
        "baseHeight": {"type": "integer", "minimum": 1},
        "seaLevel": {"type": "integer", "minimum": 0},
        "biomeFrequency": {"type": "number", "exclusiveMinimum": 0}
      }
    },
    "vegetation": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "frequency": {"type": "number", "exclusiveMinimum": 0},
        "density": {"type": "number", "minimum": 0},
        "edgeMargin": {"type": "integer", "minimum": 0},
        "minSpacing": {"type": "integer", "minimum": 0}
      }
    },
    "workers": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "count": {"type": "integer", "minimum": 0},
        "queueCapacity": {"type": "integer", "minimum": 1}
      }
    },
    "streaming": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "radius": {"type": "integer", "minimum": 0},
        "maxInstallsPerFrame": {"type": "integer", "minimum": 1},
        "submitsPerSecond": {"type": "number", "minimum": 0},
        "submitBurst": {"type": "integer", "minimum": 0}
      }
    },
    "water": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "batchPerTick": {"type": "integer", "minimum": 1},
        "maxSpread": {"type": "integer", "minimum": 1, "maximum": 6},
        "backtrace": {"type": "integer", "minimum": 1}
      }
    },
    "mesh": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "groupSize": {"type": "integer", "minimum": 1},
        "maxRemeshPerFrame": {"type": "integer", "minimum": 1},
        "maxBatchRebuildsPerFrame": {"type": "integer", "minimum": 1}
      }
    },
    "engine": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "frameInterval": {"$ref": "#/definitions/duration"},
        "logPrefix": {"type": "string"},
        "verbose": {"type": "boolean"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a raw config file against the schema before it is
// merged over defaults, so misspelled keys are reported instead of ignored.
func validateDocument(data []byte, yamlFile bool) error {
	var raw any
	if yamlFile {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return errors.Wrap(err, "decode yaml")
		}
		if raw == nil {
			return nil
		}
		normalized, err := json.Marshal(raw)
		if err != nil {
			return errors.Wrap(err, "normalise yaml")
		}
		data = normalized
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "decode json")
	}

	schema, err := configSchema()
	if err != nil {
		return errors.Wrap(err, "compile schema")
	}
	return schema.Validate(doc)
}
