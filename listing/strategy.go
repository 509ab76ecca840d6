package listing

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// StrategyConfig describes one listing layout as selectors. Field
// selectors are relative to the record.
type StrategyConfig struct {
	Name   string `yaml:"name"`
	Record string `yaml:"record"`
	Title  string `yaml:"title"`
	Link   string `yaml:"link"`
	// Dates holds compound "posted ... due ..." text. When empty or not
	// matched, the whole record text is parsed.
	Dates  string `yaml:"dates"`
	Posted string `yaml:"posted"`
	Due    string `yaml:"due"`
	Agency string `yaml:"agency"`
	// ID is a selector whose text is the site identifier; IDAttr an
	// attribute on the record carrying it.
	ID     string `yaml:"id"`
	IDAttr string `yaml:"id_attr"`
}

// DefaultStrategies covers the table, list and card layouts observed on
// the portal, in priority order.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{
			Name:   "table",
			Record: "table tbody tr",
			Title:  "td a",
			Link:   "td a[href]",
			Dates:  "td.dates, td.date",
			Agency: "td.agency",
			IDAttr: "data-id",
		},
		{
			Name:   "list",
			Record: "ul.listings > li, .listing-item",
			Title:  ".title, a",
			Link:   "a[href]",
			Dates:  ".dates, .date",
			Agency: ".agency",
			IDAttr: "data-id",
		},
		{
			Name:   "card",
			Record: "div.opportunity, article",
			Title:  "h2, h3, .title",
			Link:   "a[href]",
			Dates:  ".dates, .meta, time",
			Agency: ".agency, .organization",
			IDAttr: "data-id",
		},
	}
}

// extract applies s to doc. Records without a title or a link are not
// opportunities and are dropped; every other field is optional.
func (s StrategyConfig) extract(doc *goquery.Document, base *url.URL) []rfp.Listing {
	if s.Record == "" {
		return nil
	}
	var out []rfp.Listing
	doc.Find(s.Record).Each(func(_ int, rec *goquery.Selection) {
		if l, ok := s.record(rec, base); ok {
			out = append(out, l)
		}
	})
	return out
}

func (s StrategyConfig) record(rec *goquery.Selection, base *url.URL) (rfp.Listing, bool) {
	linkSel := s.Link
	if linkSel == "" {
		linkSel = "a[href]"
	}
	link := rec.Find(linkSel).First()
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return rfp.Listing{}, false
	}

	title := firstText(rec, s.Title)
	if title == "" {
		title = collapse(link.Text())
	}
	if title == "" {
		return rfp.Listing{}, false
	}

	l := rfp.Listing{
		Title:     title,
		Agency:    firstText(rec, s.Agency),
		DetailURL: resolve(base, href),
		Source:    rfp.SourceListing,
	}

	dateText := firstText(rec, s.Dates)
	if dateText == "" {
		dateText = collapse(rec.Text())
	}
	l.PostedDate, l.DueDate = ParseDates(dateText)
	if l.PostedDate == nil {
		l.PostedDate = FirstDate(firstText(rec, s.Posted))
	}
	if l.DueDate == nil {
		l.DueDate = FirstDate(firstText(rec, s.Due))
	}

	if s.IDAttr != "" {
		if v, ok := rec.Attr(s.IDAttr); ok {
			l.ID = strings.TrimSpace(v)
		}
	}
	if l.ID == "" {
		l.ID = firstText(rec, s.ID)
	}
	if l.ID == "" {
		l.ID = DeriveID(l.Title, l.PostedDate)
	}
	return l, true
}

func firstText(rec *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return collapse(rec.Find(sel).First().Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
