package session

import (
	"context"
	"errors"

	"github.com/hazyhaar/rfpwatch/browser"
)

// Navigator runs fn against the authenticated page.
type Navigator interface {
	Do(ctx context.Context, fn func(browser.Page) error) error
}

// Handle is an authenticated session reference handed to listing and
// acquisition code.
type Handle struct {
	m *Manager
}

var _ Navigator = (*Handle)(nil)

// Do ensures the session is valid, then runs fn holding the navigation
// lock. A deadline inside fn invalidates the session: a page that stopped
// answering is not trusted again without re-verification.
func (h *Handle) Do(ctx context.Context, fn func(browser.Page) error) error {
	if _, err := h.m.EnsureAuthenticated(ctx); err != nil {
		return err
	}

	h.m.navMu.Lock()
	err := fn(h.m.page)
	h.m.navMu.Unlock()

	if errors.Is(err, context.DeadlineExceeded) {
		h.m.Invalidate()
	}
	return err
}

// Manager returns the Manager behind the handle.
func (h *Handle) Manager() *Manager { return h.m }
