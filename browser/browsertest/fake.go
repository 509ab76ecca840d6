// Package browsertest provides an in-memory browser.Page for tests.
//
// FakePage serves HTML from a route table keyed by absolute URL and answers
// selector queries with goquery against the current document, so tests can
// drive login, paging and detail flows without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/rfpwatch/browser"
)

// FakePage is a scripted browser.Page. The zero value is not usable; use New.
type FakePage struct {
	mu      sync.Mutex
	routes  map[string]string
	current string
	html    string

	// FailNavigate, when set, is consulted before every navigation. n is the
	// 1-based count of navigations to url so far.
	FailNavigate func(url string, n int) error

	// OnClick, when set, runs before the default click behaviour. Returning
	// handled=true skips the default (following an anchor's href).
	OnClick func(p *FakePage, selector string) (handled bool, err error)

	// Delay is added to every Navigate call.
	Delay time.Duration

	CookieJar []*http.Cookie

	navCounts map[string]int
	filled    map[string]string
	clicks    []string
	navs      []string
}

var _ browser.Page = (*FakePage)(nil)

// New returns a FakePage positioned on about:blank.
func New(routes map[string]string) *FakePage {
	r := make(map[string]string, len(routes))
	for k, v := range routes {
		r[k] = v
	}
	return &FakePage{
		routes:    r,
		current:   "about:blank",
		navCounts: make(map[string]int),
		filled:    make(map[string]string),
	}
}

// Route adds or replaces a route.
func (p *FakePage) Route(u, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[u] = html
}

// Show replaces the current document without a navigation.
func (p *FakePage) Show(u, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = u
	p.html = html
}

// Filled returns the last value filled into selector.
func (p *FakePage) Filled(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled[selector]
}

// Clicks returns the selectors clicked so far.
func (p *FakePage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Navigations returns every URL navigated to, in order.
func (p *FakePage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

func (p *FakePage) Navigate(ctx context.Context, u string) error {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.navCounts[u]++
	n := p.navCounts[u]
	p.navs = append(p.navs, u)
	fail := p.FailNavigate
	p.mu.Unlock()

	if fail != nil {
		if err := fail(u, n); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.routes[u]
	if !ok {
		return fmt.Errorf("browsertest: net::ERR_NAME_NOT_RESOLVED at %s", u)
	}
	p.current = u
	p.html = html
	return nil
}

func (p *FakePage) WaitLoad(ctx context.Context) error { return ctx.Err() }

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	doc, err := p.doc()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *FakePage) Has(ctx context.Context, selector string) (bool, error) {
	doc, err := p.doc()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	ok, err := p.Has(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browsertest: no element %q", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[selector] = value
	return nil
}

// Click runs OnClick, then follows the href of the first matching anchor.
func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		handled, err := hook(p, selector)
		if err != nil || handled {
			return err
		}
	}

	doc, err := p.doc()
	if err != nil {
		return err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("browsertest: no element %q", selector)
	}
	href, ok := sel.Attr("href")
	if !ok {
		return nil
	}
	p.mu.Lock()
	base, _ := url.Parse(p.current)
	p.mu.Unlock()
	ref, err := url.Parse(href)
	if err != nil {
		return err
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return p.Navigate(ctx, ref.String())
}

func (p *FakePage) WaitAny(ctx context.Context, selectors []string) (string, error) {
	for {
		for _, s := range selectors {
			ok, err := p.Has(ctx, s)
			if err != nil {
				return "", err
			}
			if ok {
				return s, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *FakePage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*http.Cookie(nil), p.CookieJar...), nil
}

func (p *FakePage) doc() (*goquery.Document, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
