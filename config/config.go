// Copyright 2024 the studyview authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads viewer-side configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML.
type Config struct {
	Scan struct {
		// Parallelism bounds the number of files parsed concurrently.
		Parallelism int `yaml:"parallelism"`
	} `yaml:"scan"`

	Cache struct {
		// FrameBudgetMB bounds the decoded frame cache in megabytes. Size by
		// available memory, not frame count: frame bytes scale with
		// resolution.
		FrameBudgetMB int64 `yaml:"frameBudgetMB"`
	} `yaml:"cache"`

	Log struct {
		// Level is a zerolog level name: trace, debug, info, warn, error.
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{}
	cfg.Scan.Parallelism = runtime.GOMAXPROCS(0)
	cfg.Cache.FrameBudgetMB = 256
	cfg.Log.Level = "info"
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults come back unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Cache.FrameBudgetMB <= 0 {
		return nil, fmt.Errorf("config: frameBudgetMB must be positive, got %d", cfg.Cache.FrameBudgetMB)
	}
	return cfg, nil
}

// FrameBudgetBytes converts the cache budget to bytes.
func (c *Config) FrameBudgetBytes() int64 {
	return c.Cache.FrameBudgetMB << 20
}
