// Package config loads the target list used by the bench and watch
// commands.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Target is one endpoint to probe.
type Target struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
}

// Config drives repeated probing: which targets, how often, how many
// iterations per refresh.
type Config struct {
	Interval   time.Duration
	Iterations int
	Targets    []Target
}

// rawConfig is the on-disk shape; the interval is a duration string like
// "10s" since yaml.v3 has no native time.Duration decoding.
type rawConfig struct {
	Interval   string   `yaml:"interval"`
	Iterations int      `yaml:"iterations"`
	Targets    []Target `yaml:"targets"`
}

// Default returns a config probing a pair of well-known public endpoints.
func Default() *Config {
	return &Config{
		Interval:   5 * time.Second,
		Iterations: 5,
		Targets: []Target{
			{Name: "example", URL: "https://example.com"},
			{Name: "httpbin", URL: "https://httpbin.org/get"},
		},
	}
}

// Load reads a YAML config file and fills in defaults for anything left
// unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	raw := rawConfig{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := &Config{
		Iterations: raw.Iterations,
		Targets:    raw.Targets,
	}
	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parsing interval: %w", err)
		}
		cfg.Interval = interval
	}

	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 5
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("config %s declares no targets", path)
	}
	for i, tgt := range cfg.Targets {
		if tgt.URL == "" {
			return nil, fmt.Errorf("target %d has no url", i)
		}
		if tgt.Name == "" {
			cfg.Targets[i].Name = tgt.URL
		}
		if tgt.Method == "" {
			cfg.Targets[i].Method = "GET"
		}
	}

	return cfg, nil
}
