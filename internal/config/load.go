// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFileNames is the set of file names Load searches for, in order,
// when given a directory instead of a file path.
var DefaultFileNames = []string{"orckit.yaml", "orckit.yml", ".orckit.yaml"}

// Load reads and validates a config from path. If path is a directory,
// it searches DefaultFileNames within it. Processes have their ready
// check defaults applied before validation runs.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &conductorerrors.ConfigError{
			Key:    resolved,
			Reason: "failed to read config file",
			Cause:  err,
		}
	}

	cfg, err := parse(resolved, data)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadJSON parses a config from raw JSON bytes, applying the same
// defaulting and validation as Load, for config documents held in
// memory rather than read from a file.
func LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &conductorerrors.ConfigError{
			Key:    "<inline>",
			Reason: "invalid JSON",
			Cause:  err,
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	var err error
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &conductorerrors.ConfigError{
			Key:    path,
			Reason: "failed to parse config",
			Cause:  err,
		}
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &conductorerrors.ConfigError{
			Key:    path,
			Reason: "config path not found",
			Cause:  err,
		}
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range DefaultFileNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &conductorerrors.ConfigError{
		Key:    path,
		Reason: "no orckit.yaml found in directory",
	}
}

func (c *Config) applyDefaults() {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = SupportedSchemaVersion
	}
	for _, p := range c.Processes {
		p.ReadyCheck.ApplyDefaults()
		if p.RestartPolicy == "" {
			p.RestartPolicy = RestartOnFailure
		}
	}
}
