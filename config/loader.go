package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/plotstream/errors"
)

// Load reads, decodes and validates a configuration file. The format is
// chosen by extension: .yaml/.yml decode as YAML, everything else as JSON.
// Omitted fields keep the Default() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load",
			fmt.Sprintf("read %s", path))
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load",
				fmt.Sprintf("parse YAML %s", path))
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load",
				fmt.Sprintf("parse JSON %s", path))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load",
			fmt.Sprintf("validate %s", path))
	}
	return cfg, nil
}
