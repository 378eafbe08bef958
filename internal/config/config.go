package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the scheduler server.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`            // Listen address (default ":8080")
	LogLevel       string        `yaml:"log_level"`       // Log level: debug, info, warn, error
	LogFormat      string        `yaml:"log_format"`      // Log format: text, json
	Store          string        `yaml:"store"`           // Store backend: sqlite, bolt
	DBPath         string        `yaml:"db"`              // Database path (default ~/.shardsched/<backend file>, ":memory:" for sqlite tests)
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request deadline; 0 disables
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		Store:          "sqlite",
		RequestTimeout: 30 * time.Second,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// DefaultDBFile returns the database file name used for a backend when no
// path is configured.
func DefaultDBFile(backend string) string {
	if backend == "bolt" {
		return "shardsched.bolt"
	}
	return "shardsched.db"
}
