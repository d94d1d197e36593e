// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/lib/config"
	"github.com/bureau-foundation/reef/lib/reefapi"
	"github.com/bureau-foundation/reef/lib/reefstream"
)

// Connection holds the flags that locate the service. Embed it in a
// command's parameter struct and call AddFlags from the command's
// Flags function.
type Connection struct {
	// URL overrides service.base_url. The stream URL is derived from
	// it unless StreamURL is also set.
	URL string

	// StreamURL overrides service.stream_url.
	StreamURL string

	// ConfigPath names a config file, overriding REEF_CONFIG.
	ConfigPath string
}

// AddFlags registers --url, --ws-url and --config on flagSet.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.URL, "url", "", "reef-core HTTP base URL (default from config or REEF_URL)")
	flagSet.StringVar(&c.StreamURL, "ws-url", "", "reef-core stream URL (default derived from --url)")
	flagSet.StringVar(&c.ConfigPath, "config", "", "config file (default from REEF_CONFIG)")
}

// Config loads the configuration and applies the flag overrides. Flags
// win over the environment, which wins over the file.
func (c *Connection) Config() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.ConfigPath != "" {
		cfg, err = config.LoadFile(c.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, Validation("%w", err)
	}

	if c.URL != "" {
		cfg.Service.BaseURL = c.URL
		cfg.Service.StreamURL = config.StreamURLFor(c.URL)
	}
	if c.StreamURL != "" {
		cfg.Service.StreamURL = c.StreamURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, Validation("invalid configuration: %w", err).
			WithHint("Check --url, --ws-url, REEF_URL and the file named by --config or REEF_CONFIG.")
	}
	return cfg, nil
}

// Client builds a reefapi client for cfg.
func Client(cfg *config.Config, logger *slog.Logger) (*reefapi.Client, error) {
	client, err := reefapi.NewClient(reefapi.ClientConfig{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, Validation("%w", err)
	}
	return client, nil
}

// Channel builds a stopped stream channel for cfg.
func Channel(cfg *config.Config, logger *slog.Logger) *reefstream.Channel {
	return reefstream.NewChannel(reefstream.ChannelConfig{
		URL:    cfg.Service.StreamURL,
		Logger: logger,
	})
}
