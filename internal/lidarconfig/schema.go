package lidarconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON Schema that every bus-delivered
// saveLidarConfig payload must satisfy before it is even unmarshalled
// into a Config — malformed payloads are rejected here, never reaching
// the pipeline; the saveLidarConfig subscription reports the rejection
// as an apperrors.MalformedPayloadError.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["devices", "cluster", "tracking"],
  "properties": {
    "devices": { "type": "object" },
    "roi": {
      "type": ["object", "null"],
      "properties": {
        "corners": { "type": "array", "minItems": 4, "maxItems": 4 },
        "margin": { "type": "number" }
      }
    },
    "cluster": {
      "type": "object",
      "required": ["eps", "minPoints"],
      "properties": {
        "eps": { "type": "number", "exclusiveMinimum": 0 },
        "minPoints": { "type": "integer", "minimum": 1 },
        "maxClusterSize": { "type": "integer", "minimum": 0 },
        "minClusterSize": { "type": "integer", "minimum": 0 }
      }
    },
    "tracking": {
      "type": "object",
      "required": ["maxMatchDistance", "trackTimeout", "alpha", "beta"],
      "properties": {
        "maxMatchDistance": { "type": "number", "exclusiveMinimum": 0 },
        "trackTimeout": { "type": "integer", "minimum": 1 },
        "alpha": { "type": "number", "exclusiveMinimum": 0, "maximum": 1 },
        "beta": { "type": "number", "exclusiveMinimum": 0, "maximum": 1 },
        "minMatchCount": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(configSchema)

// ValidateSchema checks raw JSON bytes against the config schema before
// they are unmarshalled. On failure it returns a human-readable summary
// joining every schema error reported, separated by "; ".
func ValidateSchema(payload []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(payload)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config payload failed schema validation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeAndValidate schema-validates payload, then unmarshals it into a
// Config and runs semantic Validate. Either failure is a malformed
// payload from the caller's point of view.
func DecodeAndValidate(payload []byte) (*Config, error) {
	if err := ValidateSchema(payload); err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]DeviceConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
