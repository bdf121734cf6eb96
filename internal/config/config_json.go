package config

import (
	"encoding/json"

	"screenshotsvc/internal/model"
)

// unmarshalJSONConfig decodes a JSON config document into cfg, matching the
// shape LoadFromFile produces for YAML.
func unmarshalJSONConfig(data []byte, cfg *model.Config) error {
	return json.Unmarshal(data, cfg)
}
