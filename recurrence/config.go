package recurrence

import (
	"io"
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the occurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// Logger receives debug output of occurrence checks. Nil discards it.
	Logger *slog.Logger
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,
}

// HighTrafficConfig keeps more results for longer, for busy check-in periods
var HighTrafficConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
}

// Preset names accepted by EngineConfigPreset.
const (
	PresetDefault     = "default"
	PresetHighTraffic = "high_traffic"
	PresetDisabled    = "disabled"
)

// EngineConfigPreset returns the named preset configuration.
func EngineConfigPreset(name string) (EngineConfig, bool) {
	switch name {
	case PresetDefault:
		return DefaultEngineConfig, true
	case PresetHighTraffic:
		return HighTrafficConfig, true
	case PresetDisabled:
		return DisabledCacheConfig, true
	}
	return EngineConfig{}, false
}

// NewEngineWithConfig creates a new occurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *OccurrenceCache
	if config.CacheEnabled {
		cache = NewOccurrenceCache(config.CacheConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cache:  cache,
		logger: logger,
	}
}
