// CLAUDE:SUMMARY Aggregated YAML configuration with env overrides (credentials, db, browser), defaults and validation.
// Package config loads the rfpwatch configuration file.
//
// Each component keeps its own Config type; this package only aggregates
// them, applies cross-component defaults and environment overrides, and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/rfpwatch/acquire"
	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/docpipe"
	"github.com/hazyhaar/rfpwatch/listing"
	"github.com/hazyhaar/rfpwatch/pipeline"
	"github.com/hazyhaar/rfpwatch/scoring"
	"github.com/hazyhaar/rfpwatch/session"
)

// Environment overrides.
const (
	EnvUsername   = "RFPWATCH_USERNAME"
	EnvPassword   = "RFPWATCH_PASSWORD"
	EnvDB         = "RFPWATCH_DB"
	EnvBrowserURL = "RFPWATCH_BROWSER_URL"
)

// Config is the top-level rfpwatch configuration.
type Config struct {
	DB string `yaml:"db"`

	Browser  browser.Config     `yaml:"browser"`
	Session  session.Config     `yaml:"session"`
	Listing  listing.Config     `yaml:"listing"`
	Feed     listing.FeedConfig `yaml:"feed"`
	Pipeline pipeline.Config    `yaml:"pipeline"`
	Acquire  acquire.Config     `yaml:"acquire"`
	Docpipe  docpipe.Config     `yaml:"docpipe"`
	Scoring  scoring.Config     `yaml:"scoring"`
	Cleanup  pipeline.Policy    `yaml:"cleanup"`
	Server   ServerConfig       `yaml:"server"`
}

// ServerConfig configures `rfpwatch serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Schedule is a cron expression for recurring runs. Empty = API only.
	Schedule string `yaml:"schedule"`
}

// Load reads path, applies environment overrides and defaults. An empty
// path yields a configuration built from defaults and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUsername); ok && v != "" {
		c.Session.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Session.Password = v
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.DB = v
	}
	if v, ok := lookup(EnvBrowserURL); ok && v != "" {
		c.Browser.RemoteURL = v
	}
}

// applyDefaults fills values shared between components. Per-component
// defaults stay with each component's constructor.
func (c *Config) applyDefaults() {
	if c.DB == "" {
		c.DB = "rfpwatch.db"
	}
	if c.Pipeline.ListingURL == "" {
		c.Pipeline.ListingURL = c.Listing.URL
	}
	if c.Listing.URL == "" {
		c.Listing.URL = c.Pipeline.ListingURL
	}
	if c.Pipeline.FeedURL == "" {
		c.Pipeline.FeedURL = c.Feed.URL
	}
	if c.Feed.URL == "" {
		c.Feed.URL = c.Pipeline.FeedURL
	}
	if c.Pipeline.Discovery == "" {
		c.Pipeline.Discovery = pipeline.DiscoverListing
		if c.Pipeline.ListingURL == "" && c.Pipeline.FeedURL != "" {
			c.Pipeline.Discovery = pipeline.DiscoverRSS
		}
	}
	if c.Session.VerifyURL == "" && c.Pipeline.ListingURL != "" {
		c.Session.VerifyURL = c.Pipeline.ListingURL
	}
	if c.Scoring.Thresholds.High == 0 && c.Scoring.Thresholds.Medium == 0 && c.Scoring.Thresholds.Low == 0 {
		c.Scoring.Thresholds = scoring.DefaultConfig().Thresholds
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// SetLogger hands logger to every component configuration.
func (c *Config) SetLogger(logger *slog.Logger) {
	c.Browser.Logger = logger
	c.Session.Logger = logger
	c.Listing.Logger = logger
	c.Feed.Logger = logger
	c.Pipeline.Logger = logger
	c.Acquire.Logger = logger
	c.Acquire.Archive.Logger = logger
	c.Docpipe.Logger = logger
	c.Scoring.Logger = logger
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.LoginURL == "" {
		errs = append(errs, errors.New("session.login_url is required"))
	}
	if strings.TrimSpace(c.Session.Username) == "" || c.Session.Password == "" {
		errs = append(errs, fmt.Errorf("credentials are required (session.username/password or %s/%s)", EnvUsername, EnvPassword))
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Acquire.Mode {
	case "", acquire.ModeMemory, acquire.ModeDisk:
	default:
		errs = append(errs, fmt.Errorf("acquire.mode must be memory or disk, got %q", c.Acquire.Mode))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
