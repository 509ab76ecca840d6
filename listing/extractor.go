// CLAUDE:SUMMARY Paginated listing extraction over the authenticated session: strategy chain, next-page following, cycle guard, dedup.
// Package listing turns listing pages into opportunity records.
//
// Layouts vary between table, list and card markup, so extraction is a
// chain of selector strategies tried in order; the first strategy that
// yields at least one record wins for that page.
package listing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/session"
)

// Config configures the extractor.
type Config struct {
	// URL is the first listing page.
	URL        string           `yaml:"url"`
	Strategies []StrategyConfig `yaml:"strategies"`
	// NextSelectors locate the next-page affordance, in priority order.
	NextSelectors []string `yaml:"next_selectors"`
	// MaxPages stops pagination after this many pages. 0 = unlimited.
	MaxPages int `yaml:"max_pages"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if len(c.Strategies) == 0 {
		c.Strategies = DefaultStrategies()
	}
	if len(c.NextSelectors) == 0 {
		c.NextSelectors = []string{
			`a[rel="next"]`,
			`.pagination .next a`,
			`.pagination a.next`,
			`li.next a`,
			`a.next`,
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

var nextTexts = map[string]bool{
	"next": true, "next page": true, "next »": true, "next ›": true,
	"next >": true, "»": true, "›": true,
}

// Extractor extracts listings page by page.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// ExtractPage runs the strategy chain over doc and returns the records of
// the first strategy that yields any, with its name. Relative links
// resolve against base.
func (e *Extractor) ExtractPage(doc *goquery.Document, base *url.URL) ([]rfp.Listing, string) {
	for _, s := range e.cfg.Strategies {
		if out := s.extract(doc, base); len(out) > 0 {
			return out, s.Name
		}
	}
	return nil, ""
}

// next describes the next-page affordance: an href to load, or a
// selector to click when the control has no href.
type next struct {
	href     string
	selector string
}

func (e *Extractor) findNext(doc *goquery.Document, base *url.URL) (next, bool) {
	for _, sel := range e.cfg.NextSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 || disabled(el) {
			continue
		}
		if href, ok := el.Attr("href"); ok && usableHref(href) {
			return next{href: resolve(base, strings.TrimSpace(href))}, true
		}
		return next{selector: sel}, true
	}

	var found next
	ok := false
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !nextTexts[strings.ToLower(collapse(a.Text()))] || disabled(a) {
			return true
		}
		href, _ := a.Attr("href")
		if !usableHref(href) {
			return true
		}
		found, ok = next{href: resolve(base, strings.TrimSpace(href))}, true
		return false
	})
	return found, ok
}

func disabled(el *goquery.Selection) bool {
	if el.HasClass("disabled") || el.Parent().HasClass("disabled") {
		return true
	}
	v, _ := el.Attr("aria-disabled")
	return v == "true"
}

func usableHref(href string) bool {
	href = strings.TrimSpace(href)
	return href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// page is one extracted listing page.
type page struct {
	url      string
	listings []rfp.Listing
	strategy string
	next     next
	hasNext  bool
}

// ExtractAll extracts every page reachable from startURL by following the
// next-page affordance until it is absent. A failure on the first page is
// fatal; a failure on a later page ends pagination and returns what was
// collected. Listings are de-duplicated by id in extraction order.
func (e *Extractor) ExtractAll(ctx context.Context, nav session.Navigator, startURL string) ([]rfp.Listing, error) {
	log := e.cfg.Logger
	if startURL == "" {
		startURL = e.cfg.URL
	}

	var all []rfp.Listing
	seenIDs := make(map[string]bool)
	visited := map[string]bool{startURL: true}
	printed := make(map[string]bool)
	step := next{href: startURL}
	pageNum := 0

	for {
		pageNum++
		pg, err := e.load(ctx, nav, step)
		if err != nil {
			if pageNum == 1 {
				return nil, rfp.E(rfp.KindNavigation, "listing.extract", err)
			}
			log.Warn("listing: page failed, stopping pagination",
				"page", pageNum, "error", err)
			break
		}

		fp := fingerprint(pg.listings)
		if pageNum > 1 && printed[fp] {
			log.Warn("listing: page repeats an earlier page, stopping", "page", pageNum, "url", pg.url)
			break
		}
		printed[fp] = true

		added := 0
		for _, l := range pg.listings {
			if seenIDs[l.ID] {
				continue
			}
			seenIDs[l.ID] = true
			all = append(all, l)
			added++
		}
		log.Info("listing: page extracted", "page", pageNum, "url", pg.url,
			"strategy", pg.strategy, "records", len(pg.listings), "new", added)
		if len(pg.listings) == 0 {
			log.Warn("listing: no strategy matched", "page", pageNum, "url", pg.url)
		}

		if !pg.hasNext {
			break
		}
		if e.cfg.MaxPages > 0 && pageNum >= e.cfg.MaxPages {
			log.Warn("listing: max pages reached", "max_pages", e.cfg.MaxPages)
			break
		}
		if pg.next.href != "" {
			if visited[pg.next.href] {
				log.Warn("listing: next page already visited, stopping", "url", pg.next.href)
				break
			}
			visited[pg.next.href] = true
		}
		step = pg.next
	}
	return all, nil
}

// load performs one step (navigate or click) and extracts the resulting page.
func (e *Extractor) load(ctx context.Context, nav session.Navigator, step next) (*page, error) {
	var pg page
	err := nav.Do(ctx, func(p browser.Page) error {
		if step.href != "" {
			if err := p.Navigate(ctx, step.href); err != nil {
				return err
			}
		} else {
			if err := p.Click(ctx, step.selector); err != nil {
				return fmt.Errorf("click next: %w", err)
			}
			if err := p.WaitLoad(ctx); err != nil {
				return fmt.Errorf("wait next: %w", err)
			}
		}

		cur, err := p.URL(ctx)
		if err != nil {
			return err
		}
		html, err := p.HTML(ctx)
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return fmt.Errorf("parse listing page: %w", err)
		}
		base, _ := url.Parse(cur)

		pg.url = cur
		pg.listings, pg.strategy = e.ExtractPage(doc, base)
		pg.next, pg.hasNext = e.findNext(doc, base)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

func fingerprint(ls []rfp.Listing) string {
	h := sha256.New()
	for _, l := range ls {
		h.Write([]byte(l.ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Merge combines listing-page records with feed records. Listing-page
// records win on id collision; feed-only records are appended in order.
func Merge(primary, secondary []rfp.Listing) []rfp.Listing {
	seen := make(map[string]bool, len(primary)+len(secondary))
	out := make([]rfp.Listing, 0, len(primary)+len(secondary))
	for _, set := range [][]rfp.Listing{primary, secondary} {
		for _, l := range set {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			out = append(out, l)
		}
	}
	return out
}
