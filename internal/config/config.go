// Package config loads the bridge daemon configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Hosts         []string     `yaml:"hosts"`
	RetryInterval Duration     `yaml:"retry_interval"`
	Server        ServerConfig `yaml:"server"`
	LogLevel      string       `yaml:"log_level"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Duration accepts either a Go duration string ("5s") or a plain
// number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var secs float64
	if err := node.Decode(&secs); err == nil {
		*d = Duration(math.Round(secs * float64(time.Second)))
		return nil
	}

	return fmt.Errorf("config: invalid duration on line %d", node.Line)
}

// Load reads the config file at path, applying defaults for anything
// not set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Hosts:         []string{"localhost:6600"},
		RetryInterval: Duration(5 * time.Second),
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		LogLevel: "info",
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("config: at least one host is required")
	}
	if cfg.RetryInterval <= 0 {
		return nil, fmt.Errorf("config: retry_interval must be positive")
	}

	return cfg, nil
}
