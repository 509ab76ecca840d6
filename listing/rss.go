package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// FeedConfig configures RSS/Atom discovery.
type FeedConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Client carries portal cookies when the feed requires them.
	Client *http.Client `yaml:"-"`
	Logger *slog.Logger `yaml:"-"`
}

func (c *FeedConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Feed discovers listings from the portal's syndication feed. It is a
// cheap prefilter: no browser, no session.
type Feed struct {
	cfg    FeedConfig
	parser *gofeed.Parser
}

// NewFeed creates a Feed.
func NewFeed(cfg FeedConfig) *Feed {
	cfg.defaults()
	p := gofeed.NewParser()
	p.Client = cfg.Client
	p.UserAgent = "rfpwatch/1.0"
	return &Feed{cfg: cfg, parser: p}
}

// Discover fetches feedURL (or the configured URL) and converts its items
// into listings. Ids are derived exactly as for listing pages so both
// discovery modes dedup against each other.
func (f *Feed) Discover(ctx context.Context, feedURL string) ([]rfp.Listing, error) {
	if feedURL == "" {
		feedURL = f.cfg.URL
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("listing: parse feed %s: %w", feedURL, err)
	}

	out := make([]rfp.Listing, 0, len(feed.Items))
	seen := make(map[string]bool, len(feed.Items))
	for _, it := range feed.Items {
		l, ok := itemListing(it)
		if !ok || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	f.cfg.Logger.Info("listing: feed parsed", "url", feedURL, "items", len(feed.Items), "listings", len(out))
	return out, nil
}

func itemListing(it *gofeed.Item) (rfp.Listing, bool) {
	title := collapse(it.Title)
	link := strings.TrimSpace(it.Link)
	if link == "" && len(it.Links) > 0 {
		link = strings.TrimSpace(it.Links[0])
	}
	if title == "" || link == "" {
		return rfp.Listing{}, false
	}

	body := collapse(it.Description + " " + it.Content)
	posted, due := ParseDates(body)
	if it.PublishedParsed != nil {
		posted = dateOnly(*it.PublishedParsed)
	} else if posted == nil && it.UpdatedParsed != nil {
		posted = dateOnly(*it.UpdatedParsed)
	}

	l := rfp.Listing{
		Title:      title,
		PostedDate: posted,
		DueDate:    due,
		DetailURL:  link,
		Source:     rfp.SourceRSS,
	}
	if it.Author != nil {
		l.Agency = it.Author.Name
	}
	l.ID = DeriveID(l.Title, l.PostedDate)
	return l, true
}

// dateOnly keeps the calendar date in the feed's own zone.
func dateOnly(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
