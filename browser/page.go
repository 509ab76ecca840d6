// CLAUDE:SUMMARY Page is the browser-automation contract the session, listing and acquisition layers depend on.
package browser

import (
	"context"
	"net/http"
)

// Page is the set of browser primitives rfpwatch relies on. Selectors are
// plain CSS selector strings; they are configuration, not code.
//
// Implementations bind ctx to every call so that a stuck navigation times
// out instead of blocking.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitLoad waits for the current document to finish loading.
	WaitLoad(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// HTML returns the serialised DOM of the current document.
	HTML(ctx context.Context) (string, error)
	// Has reports whether selector matches an element right now, without waiting.
	Has(ctx context.Context, selector string) (bool, error)
	// Fill replaces the value of the input matched by selector.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// WaitAny blocks until one of selectors matches and returns it.
	WaitAny(ctx context.Context, selectors []string) (string, error)
	// Cookies returns the cookies visible to the current document.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}
