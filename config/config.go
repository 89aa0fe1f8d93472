// Package config loads the host configuration file: the per-capability
// default-runner table, per-runner settings passed through to Load, and
// server options for the daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/runner"
)

// RunnerConfig holds per-runner configuration.
type RunnerConfig struct {
	// Settings is the opaque object handed unchanged to the runner's Load.
	Settings map[string]any `yaml:"settings"`
	// DefaultModel is used when a request names no model.
	DefaultModel string `yaml:"default_model"`
}

// Config represents the infermesh configuration file
// (~/.config/infermesh/config.yaml by default).
type Config struct {
	// ServerAddress is the daemon listen address.
	ServerAddress string `yaml:"server_address"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DefaultRunners maps capability name to runner name, consulted when a
	// request carries no explicit runner preference.
	DefaultRunners map[string]string `yaml:"default_runners"`

	// Runners maps runner name to its configuration.
	Runners map[string]RunnerConfig `yaml:"runners"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "infermesh", "config.yaml")
}

// Load reads and validates the config file. A missing file yields a zero
// Config without error so the daemon can start with flags alone.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	for capName := range c.DefaultRunners {
		if !core.Capability(capName).IsValid() {
			return fmt.Errorf("default_runners: unknown capability %q", capName)
		}
	}
	return nil
}

// DefaultTable converts the default-runner mapping to typed capabilities.
func (c Config) DefaultTable() map[core.Capability]string {
	table := make(map[core.Capability]string, len(c.DefaultRunners))
	for capName, name := range c.DefaultRunners {
		table[core.Capability(capName)] = name
	}
	return table
}

// Settings returns the per-runner settings keyed by runner name.
func (c Config) Settings() map[string]runner.Settings {
	settings := make(map[string]runner.Settings, len(c.Runners))
	for name, rc := range c.Runners {
		s := runner.Settings{}
		for k, v := range rc.Settings {
			s[k] = v
		}
		if rc.DefaultModel != "" {
			s["default_model"] = rc.DefaultModel
		}
		settings[name] = s
	}
	return settings
}
