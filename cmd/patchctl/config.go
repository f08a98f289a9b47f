// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cliConfig is the patchctl configuration file shape.
//
// Looked up at $PATCHCTL_CONFIG, then ~/.patchmind/config.yaml. A missing
// file is not an error; defaults apply.
type cliConfig struct {
	// ServerURL is the refinery service base URL.
	ServerURL string `yaml:"server_url"`

	// LogLevel is the minimum severity ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set. Supports ~ expansion.
	LogDir string `yaml:"log_dir"`
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		ServerURL: "http://localhost:12310",
		LogLevel:  "info",
	}
}

// loadCLIConfig reads the config file, layering it over defaults.
func loadCLIConfig() (cliConfig, error) {
	cfg := defaultCLIConfig()

	path := os.Getenv("PATCHCTL_CONFIG")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".patchmind", "config.yaml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultCLIConfig().ServerURL
	}
	return cfg, nil
}
