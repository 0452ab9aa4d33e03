package config

import (
	"os"
	"strconv"
)

// FromEnv overlays LOGBRIDGE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LOGBRIDGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOGBRIDGE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("LOGBRIDGE_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("LOGBRIDGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("LOGBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOGBRIDGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
