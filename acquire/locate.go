package acquire

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plausibleWords mark a link as a document when nothing more specific matched.
var plausibleWords = []string{"download", "attachment", "document", "solicitation", "bid package", "specification"}

// Locate finds the artifact link on a detail page. Candidates are tried in
// order: configured selectors, configured hosts, links to an accepted file
// extension, then the first link whose text or href reads like a document.
func (o *Orchestrator) Locate(doc *goquery.Document, base *url.URL) (string, bool) {
	for _, sel := range o.cfg.DownloadSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = usableHref(s, base)
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}

	anchors := doc.Find("a[href]")
	matchers := []func(u *url.URL, text string) bool{
		o.hostMatches,
		func(u *url.URL, _ string) bool { return o.acceptedExt(path.Ext(u.Path)) },
		plausible,
	}
	for _, match := range matchers {
		var found string
		anchors.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href := usableHref(s, base)
			if href == "" {
				return true
			}
			u, err := url.Parse(href)
			if err != nil {
				return true
			}
			if match(u, strings.ToLower(strings.TrimSpace(s.Text()))) {
				found = href
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func (o *Orchestrator) hostMatches(u *url.URL, _ string) bool {
	host := strings.ToLower(u.Host)
	for _, h := range o.cfg.DownloadHosts {
		if h != "" && strings.Contains(host, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func plausible(u *url.URL, text string) bool {
	target := text + " " + strings.ToLower(u.Path+"?"+u.RawQuery)
	for _, w := range plausibleWords {
		if strings.Contains(target, w) {
			return true
		}
	}
	return false
}

// usableHref resolves the selection's href, or returns "" when it points
// nowhere useful.
func usableHref(s *goquery.Selection, base *url.URL) string {
	href, ok := s.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
