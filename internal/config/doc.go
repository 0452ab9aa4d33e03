// Package config provides loading and environment overlay for logbridge
// configuration: archive location and durability, worker fan-out, and the
// process logger. Defaults come from Default(), a JSON file may override
// them, and LOGBRIDGE_* environment variables overlay both.
package config
