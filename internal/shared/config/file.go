package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig carries durations as strings on top of Config.
type fileConfig struct {
	Config
	SnapshotTTL    string `toml:"snapshot_ttl"`
	ExportTimeout  string `toml:"export_timeout"`
	SessionIdleTTL string `toml:"session_idle_ttl"`
}

// loadFile decodes a TOML file on top of base. Keys absent from the file keep base values.
func loadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	fc := fileConfig{Config: base}
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return base, fmt.Errorf("decode toml: %w", err)
	}
	cfg := fc.Config
	if cfg.SnapshotTTL, err = parseFileDuration("snapshot_ttl", fc.SnapshotTTL, base.SnapshotTTL); err != nil {
		return base, err
	}
	if cfg.ExportTimeout, err = parseFileDuration("export_timeout", fc.ExportTimeout, base.ExportTimeout); err != nil {
		return base, err
	}
	if cfg.SessionIdleTTL, err = parseFileDuration("session_idle_ttl", fc.SessionIdleTTL, base.SessionIdleTTL); err != nil {
		return base, err
	}
	return cfg, nil
}

func parseFileDuration(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
