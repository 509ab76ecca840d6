package pipeline

import (
	"fmt"
	"log/slog"
	"time"
)

// Discovery selects where listings come from.
type Discovery string

const (
	DiscoverListing Discovery = "listing"
	DiscoverRSS     Discovery = "rss"
	DiscoverBoth    Discovery = "both"
)

// Run modes recorded in the runs table.
const (
	ModeRun     = "run"
	ModeScrape  = "scrape"
	ModeRescore = "rescore"
)

// Config configures the Coordinator.
type Config struct {
	ListingURL string    `yaml:"listing_url"`
	FeedURL    string    `yaml:"feed_url"`
	Discovery  Discovery `yaml:"discovery"`

	// MinCorpusChars is the shortest corpus worth scoring. Default: 100.
	MinCorpusChars int `yaml:"min_corpus_chars"`
	// Parallelism bounds concurrent process+score workers. Default: 4.
	Parallelism int `yaml:"parallelism"`
	// NarrateTimeout bounds one Narrator call. Default: 30s.
	NarrateTimeout time.Duration `yaml:"narrate_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Discovery == "" {
		c.Discovery = DiscoverListing
		if c.ListingURL == "" && c.FeedURL != "" {
			c.Discovery = DiscoverRSS
		}
	}
	if c.MinCorpusChars <= 0 {
		c.MinCorpusChars = 100
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.NarrateTimeout <= 0 {
		c.NarrateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks that the discovery mode has the URLs it needs.
func (c Config) Validate() error {
	switch c.Discovery {
	case DiscoverListing, "":
		if c.ListingURL == "" {
			return fmt.Errorf("pipeline: listing discovery needs a listing url")
		}
	case DiscoverRSS:
		if c.FeedURL == "" {
			return fmt.Errorf("pipeline: rss discovery needs a feed url")
		}
	case DiscoverBoth:
		if c.ListingURL == "" || c.FeedURL == "" {
			return fmt.Errorf("pipeline: both discovery needs a listing url and a feed url")
		}
	default:
		return fmt.Errorf("pipeline: unknown discovery mode %q", c.Discovery)
	}
	return nil
}
