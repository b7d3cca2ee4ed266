package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/audiograph/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"version": "2.0.0"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, BackendOffline, cfg.Backend.Type)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"version": `)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"version": "1.0.0",
		"backend": {
			"type": "nats",
			"nats": {"url": "nats://localhost:4222", "request_timeout_ms": 2000}
		},
		"patch": {
			"modules": [
				{"name": "osc", "category": "oscillator", "props": {"frequency": 220}},
				{"name": "vol", "category": "gain"}
			],
			"connections": [{"source": "osc", "dest": "vol"}],
			"autostart": true
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNATS, cfg.Backend.Type)
	assert.Equal(t, "nats://localhost:4222", cfg.Backend.NATS.URL)
	require.Len(t, cfg.Patch.Modules, 2)
	assert.True(t, cfg.Patch.Autostart)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUDIOGRAPH_BACKEND", "nats")
	t.Setenv("AUDIOGRAPH_NATS_URL", "nats://override:4222")
	t.Setenv("AUDIOGRAPH_METRICS_PORT", "9999")

	path := writeConfig(t, `{"version": "1.0.0"}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendNATS, cfg.Backend.Type)
	assert.Equal(t, "nats://override:4222", cfg.Backend.NATS.URL)
	assert.Equal(t, 9999, cfg.Metrics.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty version", func(c *Config) { c.Version = "" }},
		{"unknown backend", func(c *Config) { c.Backend.Type = "wasm" }},
		{"nats without url", func(c *Config) { c.Backend.Type = BackendNATS }},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = -1 }},
		{"nameless patch module", func(c *Config) {
			c.Patch.Modules = []PatchModule{{Category: "gain"}}
		}},
		{"categoryless patch module", func(c *Config) {
			c.Patch.Modules = []PatchModule{{Name: "a"}}
		}},
		{"duplicate patch names", func(c *Config) {
			c.Patch.Modules = []PatchModule{
				{Name: "a", Category: "gain"},
				{Name: "a", Category: "gain"},
			}
		}},
		{"dangling connection", func(c *Config) {
			c.Patch.Connections = []PatchConnection{{Source: "x", Dest: "y"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(Default())

	// Get returns a detached copy
	got := sc.Get()
	got.Version = "mutated"
	assert.Equal(t, "1.0.0", sc.Get().Version)

	// Update validates before swapping
	bad := Default()
	bad.Backend.Type = "wasm"
	require.Error(t, sc.Update(bad))
	assert.Equal(t, BackendOffline, sc.Get().Backend.Type)

	good := Default()
	good.Version = "3.0.0"
	require.NoError(t, sc.Update(good))
	assert.Equal(t, "3.0.0", sc.Get().Version)
}
