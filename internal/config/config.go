package config

import (
	"encoding/json"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir is where the archive's Pebble store lives.
	DataDir string `json:"dataDir"`
	// Fsync is the archive durability mode: always|interval|never.
	Fsync string `json:"fsync"`
	// FsyncIntervalMs applies when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs"`
	// Workers caps the populate/read-back fan-out; 0 means NumCPU.
	Workers int `json:"workers"`
	// LogLevel and LogFormat configure the process logger.
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Fsync:           "always",
		FsyncIntervalMs: 5,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
