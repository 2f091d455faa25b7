package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rendis/flowlens/internal/validation"
	"github.com/rendis/flowlens/pkg/schema"
)

// Config holds all flowlens configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath   string         `json:"db_path"`
	LogLevel string         `json:"log_level"`
	PoolSize int            `json:"pool_size"`
	Analyzer schema.Options `json:"analyzer"`
}

func defaultConfig() Config {
	return Config{
		DBPath:   filepath.Join(flowlensDir(), "flowlens.db"),
		LogLevel: "info",
		PoolSize: 4,
		Analyzer: schema.DefaultOptions(),
	}
}

func flowlensDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowlens"
	}
	return filepath.Join(home, ".flowlens")
}

func settingsPath() string {
	return filepath.Join(flowlensDir(), "settings.json")
}

// loadConfig layers settings.json over defaults, then env vars on top.
// Analyzer settings from the file are schema-validated before they are used.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		var file struct {
			DBPath   string          `json:"db_path"`
			LogLevel string          `json:"log_level"`
			PoolSize int             `json:"pool_size"`
			Analyzer json.RawMessage `json:"analyzer"`
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(), err)
		}
		if file.DBPath != "" {
			cfg.DBPath = file.DBPath
		}
		if file.LogLevel != "" {
			cfg.LogLevel = file.LogLevel
		}
		if file.PoolSize > 0 {
			cfg.PoolSize = file.PoolSize
		}
		if len(file.Analyzer) > 0 {
			v, err := validation.NewSettingsValidator()
			if err != nil {
				return cfg, err
			}
			if err := v.ValidateRaw(file.Analyzer); err != nil {
				return cfg, err
			}
			var opts schema.Options
			if err := json.Unmarshal(file.Analyzer, &opts); err != nil {
				return cfg, fmt.Errorf("parse analyzer settings: %w", err)
			}
			cfg.Analyzer = opts.Normalize()
		}
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWLENS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWLENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWLENS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("FLOWLENS_LOOP_UNROLL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analyzer.LoopUnroll = n
		}
	}

	return cfg, nil
}
