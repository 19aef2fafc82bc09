package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/c360/plotstream/pkg/colormap"
)

// Config represents the complete application configuration
type Config struct {
	Dataset Dataset `json:"dataset" yaml:"dataset"`
	Render  Render  `json:"render" yaml:"render"`
	Gateway Gateway `json:"gateway" yaml:"gateway"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Bridge  Bridge  `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	Logging Logging `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Dataset names the columnar file to serve
type Dataset struct {
	Path string `json:"path" yaml:"path"`
}

// Render holds raster defaults applied to every new explorer
type Render struct {
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Colormap   string `json:"colormap,omitempty" yaml:"colormap,omitempty"`
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
}

// Gateway configures the WebSocket session server
type Gateway struct {
	Addr string `json:"addr" yaml:"addr"`
	// ViewportRate caps viewport events per second per session; zero
	// disables the limiter
	ViewportRate float64 `json:"viewport_rate,omitempty" yaml:"viewport_rate,omitempty"`
	// ViewportBurst is the limiter burst size
	ViewportBurst int `json:"viewport_burst,omitempty" yaml:"viewport_burst,omitempty"`
	// WriteTimeout bounds a single outbound frame write
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	// SendBuffer is the per-session outbound queue depth
	SendBuffer int `json:"send_buffer,omitempty" yaml:"send_buffer,omitempty"`
}

// Metrics configures the Prometheus scrape endpoint
type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Bridge configures the optional NATS event bridge
type Bridge struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	URL           string        `json:"url,omitempty" yaml:"url,omitempty"`
	SubjectPrefix string        `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
}

// Logging selects log output format and level
type Logging struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		Dataset: Dataset{},
		Render: Render{
			Width:    900,
			Height:   600,
			Colormap: "fire",
		},
		Gateway: Gateway{
			Addr:          ":8080",
			ViewportRate:  20,
			ViewportBurst: 40,
			WriteTimeout:  10 * time.Second,
			SendBuffer:    8,
		},
		Metrics: Metrics{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Bridge: Bridge{
			SubjectPrefix: "plotstream.events",
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the config is valid, normalizing where the value has a
// canonical form
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}

	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render dimensions must be positive, got %dx%d",
			c.Render.Width, c.Render.Height)
	}
	if c.Render.Colormap != "" {
		if _, err := colormap.Get(c.Render.Colormap); err != nil {
			return fmt.Errorf("render.colormap: %w", err)
		}
	}

	if c.Gateway.Addr == "" {
		return errors.New("gateway.addr is required")
	}
	if c.Gateway.ViewportRate < 0 {
		return errors.New("gateway.viewport_rate cannot be negative")
	}
	if c.Gateway.SendBuffer < 0 {
		return errors.New("gateway.send_buffer cannot be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}

	if c.Bridge.Enabled {
		if c.Bridge.URL == "" {
			return errors.New("bridge.url is required when the bridge is enabled")
		}
		c.Bridge.SubjectPrefix = strings.ToLower(c.Bridge.SubjectPrefix)
		if !isValidSubjectPart(c.Bridge.SubjectPrefix) {
			return fmt.Errorf(
				"bridge.subject_prefix '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
				c.Bridge.SubjectPrefix)
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level '%s' is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format '%s' is not one of json, text", c.Logging.Format)
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// isValidSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
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
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
