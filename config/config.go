// Package config loads the optional yaml configuration file controlling the
// cache backend, tagging service and search defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NanamiAkari/attire-ai-explorer/cache"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig    `yaml:"database"`
	Cache    CacheConfig       `yaml:"cache"`
	Tagger   tags.ClientConfig `yaml:"tagger"`
	Search   SearchConfig      `yaml:"search"`
}

// DatabaseConfig holds the garment index location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig selects the feature cache backend.
type CacheConfig struct {
	// Backend is one of "memory", "sqlite", "redis".
	Backend string            `yaml:"backend"`
	Redis   cache.RedisConfig `yaml:"redis"`
}

// SearchConfig holds search defaults overridable per invocation.
type SearchConfig struct {
	Threshold float64 `yaml:"threshold"`
	Limit     int     `yaml:"limit"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Backend: "sqlite",
			Redis:   cache.DefaultRedisConfig(),
		},
		Tagger: tags.DefaultClientConfig(),
		Search: SearchConfig{
			Threshold: 0.5,
			Limit:     5,
		},
	}
}

// Load reads a yaml config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %v", path, err)
	}

	switch cfg.Cache.Backend {
	case "", "memory", "sqlite", "redis":
	default:
		return cfg, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	return cfg, nil
}
