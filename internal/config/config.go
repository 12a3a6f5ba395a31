// Package config holds the recurctl configuration file model.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyp0633/librecur/recurrence"
)

const defaultTimezone = "UTC"

// CacheConfig controls the occurrence cache of the engine. A non-empty
// Preset names one of the recurrence engine presets and takes precedence
// over the other fields.
type CacheConfig struct {
	Preset          string        `yaml:"preset,omitempty" json:"preset,omitempty"`
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries      int           `yaml:"max_entries" json:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// Config is the top-level configuration.
type Config struct {
	// Timezone is the IANA (or Windows) zone used when a command is given none.
	Timezone string `yaml:"timezone" json:"timezone"`

	// AllDay is the default all-day flag for parse, format and validate.
	AllDay bool `yaml:"all_day" json:"all_day"`

	// Verbose turns on debug logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	Cache CacheConfig `yaml:"cache" json:"cache"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: defaultTimezone,
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             recurrence.DefaultCacheConfig.TTL,
			MaxEntries:      recurrence.DefaultCacheConfig.MaxEntries,
			CleanupInterval: recurrence.DefaultCacheConfig.CleanupInterval,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = recurrence.DefaultCacheConfig.TTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = recurrence.DefaultCacheConfig.MaxEntries
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = recurrence.DefaultCacheConfig.CleanupInterval
	}
}

// Validate rejects settings Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Cache.Preset == "" {
		return nil
	}
	if _, ok := recurrence.EngineConfigPreset(c.Cache.Preset); !ok {
		return fmt.Errorf("unknown cache preset %q", c.Cache.Preset)
	}
	return nil
}

// EngineConfig converts the cache section for recurrence.NewEngineWithConfig.
func (c *Config) EngineConfig() recurrence.EngineConfig {
	if preset, ok := recurrence.EngineConfigPreset(c.Cache.Preset); ok {
		return preset
	}
	return recurrence.EngineConfig{
		CacheEnabled: c.Cache.Enabled,
		CacheConfig: recurrence.CacheConfig{
			TTL:             c.Cache.TTL,
			MaxEntries:      c.Cache.MaxEntries,
			CleanupInterval: c.Cache.CleanupInterval,
		},
	}
}

// Load reads configuration from the given YAML path. An empty path or a
// missing file yields the defaults; nothing is written.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path through a temp file and rename, with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".recurctl-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
