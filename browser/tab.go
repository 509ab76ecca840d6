package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Tab implements Page over a Rod page.
type Tab struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *slog.Logger
}

var _ Page = (*Tab)(nil)

// bound gives every CDP call a deadline: the caller's, or navTimeout.
func (t *Tab) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.navTimeout)
}

// Navigate loads url and waits for the load event. A load that does not
// settle before the deadline is logged, not failed: slow third-party
// assets routinely keep the event from firing.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	nctx, cancel := t.bound(ctx)
	defer cancel()

	if err := t.page.Context(nctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := t.page.Context(nctx).WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("browser: wait load %s: %w", url, err)
		}
		t.logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

func (t *Tab) WaitLoad(ctx context.Context) error {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	return t.page.Context(nctx).WaitLoad()
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	info, err := t.page.Context(nctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (t *Tab) Title(ctx context.Context) (string, error) {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	info, err := t.page.Context(nctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.Title, nil
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	html, err := t.page.Context(nctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return html, nil
}

func (t *Tab) Has(ctx context.Context, selector string) (bool, error) {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	ok, _, err := t.page.Context(nctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("browser: has %q: %w", selector, err)
	}
	return ok, nil
}

func (t *Tab) Fill(ctx context.Context, selector, value string) error {
	nctx, cancel := t.bound(ctx)
	defer cancel()

	el, err := t.page.Context(nctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: find %q: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: select %q: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: input %q: %w", selector, err)
	}
	return nil
}

func (t *Tab) Click(ctx context.Context, selector string) error {
	nctx, cancel := t.bound(ctx)
	defer cancel()

	el, err := t.page.Context(nctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: find %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %q: %w", selector, err)
	}
	return nil
}

// WaitAny races the selectors and returns the first one to match.
// It returns ctx's error when none appears before the deadline.
func (t *Tab) WaitAny(ctx context.Context, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return "", fmt.Errorf("browser: wait: no selectors")
	}
	ctx, cancel := t.bound(ctx)
	defer cancel()
	var matched string
	race := t.page.Context(ctx).Race()
	for _, sel := range selectors {
		sel := sel
		race = race.Element(sel).Handle(func(*rod.Element) error {
			matched = sel
			return nil
		})
	}
	if _, err := race.Do(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("browser: wait: %w", err)
	}
	return matched, nil
}

func (t *Tab) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	nctx, cancel := t.bound(ctx)
	defer cancel()
	raw, err := t.page.Context(nctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("browser: cookies: %w", err)
	}
	out := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	return t.page.Close()
}
