/*
Copyright 2026 The kss-operator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the operator's runtime settings. A
// missing config file is not an error: the operator runs with sane
// defaults, the same way it would with an empty file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvReconcilePeriod overrides ReconcilePeriod when set.
	EnvReconcilePeriod = "KSS_RECONCILE_PERIOD"

	defaultReconcilePeriod = 300 * time.Second
	defaultAPITimeout      = 30 * time.Second
)

// Config holds the operator's tunables. The label and annotation keys that
// identify Origins and Replicas are not configurable: spec §6 fixes them
// as part of the operator's external interface, so pkg/identity defines
// them as constants rather than Config fields.
type Config struct {
	// ReconcilePeriod is the interval between Periodic Reconciler sweeps.
	ReconcilePeriod time.Duration `yaml:"reconcilePeriod"`

	// APITimeout bounds every individual Kubernetes API call the
	// operator makes.
	APITimeout time.Duration `yaml:"apiTimeout"`
}

// NewDefaultConfig returns a Config with every field set to its built-in
// default.
func NewDefaultConfig() *Config {
	return &Config{
		ReconcilePeriod: defaultReconcilePeriod,
		APITimeout:      defaultAPITimeout,
	}
}

// LoadConfig reads path and merges it over the defaults. A path that does
// not exist is not an error: LoadConfig returns the defaults, with only
// the EnvReconcilePeriod override applied.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path == "" {
		return cfg, applyEnvOverrides(cfg)
	}

	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, applyEnvOverrides(cfg)
		}
		return nil, fmt.Errorf("reading config file %s: %w", clean, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", clean, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file %s: %w", clean, err)
	}

	return cfg, nil
}

// applyEnvOverrides lets EnvReconcilePeriod win over both the default and
// anything set in the file, per spec §6's "configurable via one
// environment variable or flag" requirement.
func applyEnvOverrides(cfg *Config) error {
	raw, ok := os.LookupEnv(EnvReconcilePeriod)
	if !ok || raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", EnvReconcilePeriod, raw, err)
	}
	cfg.ReconcilePeriod = d
	return nil
}

// Validate rejects nonsensical tunables before the manager starts.
func (c *Config) Validate() error {
	if c.ReconcilePeriod <= 0 {
		return fmt.Errorf("reconcilePeriod must be positive, got %s", c.ReconcilePeriod)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("apiTimeout must be positive, got %s", c.APITimeout)
	}
	if c.APITimeout >= c.ReconcilePeriod {
		return fmt.Errorf("apiTimeout (%s) must be smaller than reconcilePeriod (%s)", c.APITimeout, c.ReconcilePeriod)
	}
	return nil
}
