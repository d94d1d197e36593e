// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig    = "REEF_CONFIG"
	EnvURL       = "REEF_URL"
	EnvStreamURL = "REEF_WS_URL"
)

// Config is the complete client configuration.
type Config struct {
	// Service locates the reef service.
	Service ServiceConfig `yaml:"service"`

	// Refresh controls background snapshot refreshes.
	Refresh RefreshConfig `yaml:"refresh"`

	// Buffer caps per-session output held in memory.
	Buffer BufferConfig `yaml:"buffer"`

	// Cache configures the warm-start snapshot cache.
	Cache CacheConfig `yaml:"cache"`

	// Log configures diagnostic logging.
	Log LogConfig `yaml:"log"`
}

// ServiceConfig locates the reef service.
type ServiceConfig struct {
	// BaseURL is the HTTP endpoint. Default: http://localhost:7777
	BaseURL string `yaml:"base_url"`

	// StreamURL is the WebSocket endpoint. Default: derived from
	// BaseURL (ws://localhost:7777/ws).
	StreamURL string `yaml:"stream_url"`

	// Timeout bounds every HTTP request. Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// RefreshConfig controls background snapshot refreshes.
type RefreshConfig struct {
	// Interval between refreshes. Default: 5s
	Interval time.Duration `yaml:"interval"`

	// OutputLines is the line hint sent with output fetches.
	// Default: 1000
	OutputLines int `yaml:"output_lines"`
}

// BufferConfig caps per-session output. Zero selects the default;
// a negative value disables the limit.
type BufferConfig struct {
	// MaxFragments caps stream fragments per session. Default: 4096
	MaxFragments int `yaml:"max_fragments"`

	// MaxBytes caps stream bytes per session. Default: 4 MiB
	MaxBytes int `yaml:"max_bytes"`

	// MaxOrphans caps sessions holding output before the session
	// itself is known. Default: 256
	MaxOrphans int `yaml:"max_orphans"`
}

// Compression values for CacheConfig.Compression.
const (
	CompressionNone = "none"
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

// CacheConfig configures the warm-start snapshot cache.
type CacheConfig struct {
	// Path is the cache file. Empty disables the cache.
	// Default: ${XDG_CACHE_HOME:-${HOME}/.cache}/reef/snapshot
	Path string `yaml:"path"`

	// Compression is one of none, lz4, zstd. Default: zstd
	Compression string `yaml:"compression"`

	// KeyFile, if set, names a file holding a 32-byte key; the cache
	// is then encrypted at rest.
	KeyFile string `yaml:"key_file"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`
}

// SlogLevel parses Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:   "http://localhost:7777",
			StreamURL: "ws://localhost:7777/ws",
			Timeout:   5 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval:    5 * time.Second,
			OutputLines: 1000,
		},
		Buffer: BufferConfig{
			MaxFragments: 4096,
			MaxBytes:     4 << 20,
			MaxOrphans:   256,
		},
		Cache: CacheConfig{
			Path:        "${XDG_CACHE_HOME:-${HOME}/.cache}/reef/snapshot",
			Compression: CompressionZstd,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by REEF_CONFIG, or the defaults when it is
// unset, and applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return LoadFile(path)
	}
	cfg := Default()
	cfg.applyEnvironment()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from path over the defaults and applies
// environment overrides. Fields the file omits keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	defaults := cfg.Service

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.decode(path, data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Service.StreamURL == defaults.StreamURL && cfg.Service.BaseURL != defaults.BaseURL {
		cfg.Service.StreamURL = StreamURLFor(cfg.Service.BaseURL)
	}

	cfg.applyEnvironment()
	cfg.expandVariables()
	return cfg, nil
}

// decode parses data into c. JSON with comments is stripped and
// compacted to a single-line flow mapping, which the YAML decoder
// accepts, so both formats share the YAML tags and duration handling.
func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		var compacted bytes.Buffer
		if err := json.Compact(&compacted, jsonc.ToJSON(data)); err != nil {
			return err
		}
		data = compacted.Bytes()
	}
	return yaml.Unmarshal(data, c)
}

// applyEnvironment applies REEF_URL and REEF_WS_URL.
func (c *Config) applyEnvironment() {
	if baseURL := os.Getenv(EnvURL); baseURL != "" {
		c.Service.BaseURL = baseURL
		c.Service.StreamURL = StreamURLFor(baseURL)
	}
	if streamURL := os.Getenv(EnvStreamURL); streamURL != "" {
		c.Service.StreamURL = streamURL
	}
}

// StreamURLFor derives the stream endpoint from an HTTP base URL:
// http becomes ws, https becomes wss, and /ws is appended to the path.
// An unparseable base is returned with only the path appended.
func StreamURLFor(baseURL string) string {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/ws"
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path += "/ws"
	return parsed.String()
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Cache.Path = expandVars(c.Cache.Path, vars)
	c.Cache.KeyFile = expandVars(c.Cache.KeyFile, vars)
}

// varPattern matches the innermost ${VAR} or ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^{}:]+)(?::-([^{}]*))?\}`)

// expandVars expands patterns from the inside out, so a default may
// itself contain a pattern.
func expandVars(s string, vars map[string]string) string {
	for {
		expanded := varPattern.ReplaceAllStringFunc(s, func(match string) string {
			parts := varPattern.FindStringSubmatch(match)
			name, defaultValue := parts[1], parts[2]
			if value, ok := vars[name]; ok && value != "" {
				return value
			}
			if value := os.Getenv(name); value != "" {
				return value
			}
			return defaultValue
		})
		if expanded == s {
			return expanded
		}
		s = expanded
	}
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := validateURL(c.Service.BaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("service.base_url: %w", err))
	}
	if err := validateURL(c.Service.StreamURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("service.stream_url: %w", err))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("service.timeout must be positive"))
	}
	if c.Refresh.Interval <= 0 {
		errs = append(errs, errors.New("refresh.interval must be positive"))
	}
	if c.Refresh.OutputLines <= 0 {
		errs = append(errs, errors.New("refresh.output_lines must be positive"))
	}
	compressions := []string{CompressionNone, CompressionLZ4, CompressionZstd}
	if !slices.Contains(compressions, c.Cache.Compression) {
		errs = append(errs, fmt.Errorf("cache.compression must be one of: %v", compressions))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(schemes, parsed.Scheme) {
		return fmt.Errorf("scheme must be one of %v, got %q", schemes, parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
