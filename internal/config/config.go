// Package config handles tool configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/Faultbox/srcmodel/internal/logger"
	"github.com/Faultbox/srcmodel/pkg/encoding"
	"github.com/Faultbox/srcmodel/pkg/formats"
)

// Config holds all settings.
type Config struct {
	Models  ModelsConfig  `yaml:"models"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelsConfig controls where and how model files are read.
type ModelsConfig struct {
	SearchPaths []string `yaml:"search_paths"` // Later paths take priority
	Charset     string   `yaml:"charset"`      // Charset of model names
	Parallel    bool     `yaml:"parallel"`     // Decode the three files concurrently
	Cache       bool     `yaml:"cache"`        // Keep file bytes in memory between loads
	CacheMB     int      `yaml:"cache_mb"`     // Cache size bound in MiB
}

// ExportConfig holds glTF export settings.
type ExportConfig struct {
	LOD    int  `yaml:"lod"`
	Binary bool `yaml:"binary"` // Write .glb instead of .gltf
}

// ServerConfig holds inspection server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			SearchPaths: []string{"source_assets/models"},
			Charset:     encoding.UTF8,
			Parallel:    false,
			Cache:       true,
			CacheMB:     256,
		},
		Export: ExportConfig{
			LOD:    0,
			Binary: true,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if len(c.Models.SearchPaths) == 0 {
		return fmt.Errorf("models.search_paths is empty")
	}
	if !encoding.ValidCharset(c.Models.Charset) {
		return fmt.Errorf("models.charset: unknown charset %q", c.Models.Charset)
	}
	if c.Models.Cache && c.Models.CacheMB <= 0 {
		return fmt.Errorf("models.cache_mb must be positive when caching is enabled, got %d", c.Models.CacheMB)
	}
	if c.Export.LOD < 0 || c.Export.LOD >= formats.MaxLODs {
		return fmt.Errorf("export.lod %d out of range [0, %d)", c.Export.LOD, formats.MaxLODs)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
