package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Dataset.Path = "/data/trips.parquet"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing dataset path",
			mutate:  func(c *Config) { c.Dataset.Path = "" },
			wantErr: "dataset.path",
		},
		{
			name:    "zero render width",
			mutate:  func(c *Config) { c.Render.Width = 0 },
			wantErr: "render dimensions",
		},
		{
			name:    "unknown colormap",
			mutate:  func(c *Config) { c.Render.Colormap = "plasma" },
			wantErr: "render.colormap",
		},
		{
			name:    "missing gateway addr",
			mutate:  func(c *Config) { c.Gateway.Addr = "" },
			wantErr: "gateway.addr",
		},
		{
			name:    "negative viewport rate",
			mutate:  func(c *Config) { c.Gateway.ViewportRate = -1 },
			wantErr: "viewport_rate",
		},
		{
			name: "bridge enabled without url",
			mutate: func(c *Config) {
				c.Bridge.Enabled = true
				c.Bridge.URL = ""
			},
			wantErr: "bridge.url",
		},
		{
			name: "bad subject prefix",
			mutate: func(c *Config) {
				c.Bridge.Enabled = true
				c.Bridge.URL = "nats://localhost:4222"
				c.Bridge.SubjectPrefix = "plot stream"
			},
			wantErr: "subject_prefix",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadJSONAndYAMLIdentical(t *testing.T) {
	jsonPath := writeFile(t, "cfg.json", `{
  "dataset": {"path": "/data/trips.parquet"},
  "render": {"width": 400, "height": 300, "colormap": "viridis"},
  "gateway": {"addr": ":9000"}
}`)
	yamlPath := writeFile(t, "cfg.yaml", `
dataset:
  path: /data/trips.parquet
render:
  width: 400
  height: 300
  colormap: viridis
gateway:
  addr: ":9000"
`)

	fromJSON, err := Load(jsonPath)
	require.NoError(t, err)
	fromYAML, err := Load(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, 400, fromJSON.Render.Width)
	assert.Equal(t, "viridis", fromJSON.Render.Colormap)
	// omitted sections keep defaults
	assert.True(t, fromJSON.Metrics.Enabled)
	assert.Equal(t, "plotstream.events", fromJSON.Bridge.SubjectPrefix)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "cfg.json", `{"render": {"width": 10, "height": 10}}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.path")
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := writeFile(t, "cfg.yaml", "dataset: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(validConfig())

	got := sc.Get()
	got.Render.Width = 1
	// Get returns a copy; mutation does not leak back
	assert.NotEqual(t, 1, sc.Get().Render.Width)

	bad := validConfig()
	bad.Dataset.Path = ""
	require.Error(t, sc.Update(bad))

	next := validConfig()
	next.Render.Width = 1200
	require.NoError(t, sc.Update(next))
	assert.Equal(t, 1200, sc.Get().Render.Width)
}
