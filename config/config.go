// Package config loads and validates the audiograph host configuration:
// which backend adapter to use, where the metrics endpoint listens, and
// an optional patch definition the daemon builds at startup. Configuration
// comes from a JSON file with AUDIOGRAPH_* environment overrides applied
// on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/c360/audiograph/errors"
)

// Backend type constants
const (
	BackendOffline = "offline" // in-memory backend, no rendering
	BackendNATS    = "nats"    // command bridge to a remote renderer
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `json:"version"`
	Platform PlatformConfig `json:"platform"`
	Backend  BackendConfig  `json:"backend"`
	Metrics  MetricsConfig  `json:"metrics"`
	Patch    PatchConfig    `json:"patch"`
}

// PlatformConfig identifies the running instance.
type PlatformConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment"` // development, staging, production
}

// BackendConfig selects and parameterizes the backend adapter.
type BackendConfig struct {
	Type string     `json:"type"` // "offline" or "nats"
	NATS NATSConfig `json:"nats,omitempty"`
}

// NATSConfig holds connection settings for the NATS command bridge.
type NATSConfig struct {
	URL              string `json:"url"`
	Name             string `json:"name,omitempty"`
	RequestTimeoutMS int    `json:"request_timeout_ms,omitempty"`
	MaxReconnects    int    `json:"max_reconnects,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// PatchConfig is an optional patch the daemon assembles at startup:
// modules by name, connections between those names, and whether to start
// the engine once the patch is built.
type PatchConfig struct {
	Modules     []PatchModule     `json:"modules,omitempty"`
	Connections []PatchConnection `json:"connections,omitempty"`
	Autostart   bool              `json:"autostart,omitempty"`
}

// PatchModule declares one module in the startup patch.
type PatchModule struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Props    map[string]any `json:"props,omitempty"`
}

// PatchConnection declares a routing edge between two startup-patch
// modules, referenced by their names.
type PatchConnection struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// Default returns a configuration with sensible development defaults.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Platform: PlatformConfig{
			Name:        "audiograph",
			Environment: "development",
		},
		Backend: BackendConfig{
			Type: BackendOffline,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads a configuration file, applies environment overrides and
// validates the result. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Config", "Load", "parse config file")
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers AUDIOGRAPH_* environment variables over the
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUDIOGRAPH_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("AUDIOGRAPH_NATS_URL"); v != "" {
		c.Backend.NATS.URL = v
	}
	if v := os.Getenv("AUDIOGRAPH_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
	if v := os.Getenv("AUDIOGRAPH_ENVIRONMENT"); v != "" {
		c.Platform.Environment = v
	}
}

// Validate checks structural validity of the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: version is required", errors.ErrInvalidConfig),
			"Config", "Validate", "version check")
	}

	switch c.Backend.Type {
	case BackendOffline:
	case BackendNATS:
		if c.Backend.NATS.URL == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: backend.nats.url is required for the nats backend", errors.ErrMissingConfig),
				"Config", "Validate", "nats backend check")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown backend type %q", errors.ErrInvalidConfig, c.Backend.Type),
			"Config", "Validate", "backend type check")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metrics port %d outside valid range", errors.ErrInvalidConfig, c.Metrics.Port),
			"Config", "Validate", "metrics port check")
	}

	return c.Patch.validate()
}

// validate checks the startup patch: unique module names, non-empty
// categories, and connections that reference declared modules.
func (p *PatchConfig) validate() error {
	names := make(map[string]bool, len(p.Modules))
	for _, m := range p.Modules {
		if m.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: patch module without a name", errors.ErrInvalidConfig),
				"Config", "Validate", "patch module check")
		}
		if m.Category == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: patch module %q without a category", errors.ErrInvalidConfig, m.Name),
				"Config", "Validate", "patch module check")
		}
		if names[m.Name] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: duplicate patch module name %q", errors.ErrInvalidConfig, m.Name),
				"Config", "Validate", "patch module check")
		}
		names[m.Name] = true
	}

	for _, conn := range p.Connections {
		if !names[conn.Source] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: connection references unknown module %q", errors.ErrInvalidConfig, conn.Source),
				"Config", "Validate", "patch connection check")
		}
		if !names[conn.Dest] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: connection references unknown module %q", errors.ErrInvalidConfig, conn.Dest),
				"Config", "Validate", "patch connection check")
		}
	}
	return nil
}

// Clone creates a deep copy of the configuration via JSON round-trip.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return &Config{}
	}
	return clone
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SafeConfig", "Update", "nil config check")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
