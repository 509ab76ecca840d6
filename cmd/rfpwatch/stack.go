package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/rfpwatch/acquire"
	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/docpipe"
	"github.com/hazyhaar/rfpwatch/listing"
	"github.com/hazyhaar/rfpwatch/pipeline"
	"github.com/hazyhaar/rfpwatch/scoring"
	"github.com/hazyhaar/rfpwatch/session"
	"github.com/hazyhaar/rfpwatch/store"
)

// stack is one wired Coordinator plus what must be released after use.
type stack struct {
	coord   *pipeline.Coordinator
	store   *store.Store
	browser *browser.Manager
	session *session.Manager
	logger  *slog.Logger
}

// offline wires a Coordinator with no browser: rescoring, cleanup and
// RSS-only scraping.
func (a *app) offline() (*stack, error) {
	st, err := store.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	deps := a.deps(st)
	return &stack{coord: pipeline.New(a.cfg.Pipeline, deps), store: st, logger: a.logger}, nil
}

// live wires a Coordinator on a running Chrome and a fresh portal session.
func (a *app) live(ctx context.Context) (*stack, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(a.cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		st.Close()
		return nil, err
	}
	tab, err := mgr.OpenTab(ctx)
	if err != nil {
		mgr.Close()
		st.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	sess := session.New(tab, a.cfg.Session)

	deps := a.deps(st)
	deps.Session = sess
	return &stack{
		coord:   pipeline.New(a.cfg.Pipeline, deps),
		store:   st,
		browser: mgr,
		session: sess,
		logger:  a.logger,
	}, nil
}

func (a *app) deps(st *store.Store) pipeline.Deps {
	deps := pipeline.Deps{
		Listings: listing.New(a.cfg.Listing),
		Acquirer: acquire.New(a.cfg.Acquire, docpipe.New(a.cfg.Docpipe)),
		Scorer:   scoring.New(a.cfg.Scoring),
		Store:    st,
	}
	if a.cfg.Feed.URL != "" {
		deps.Feed = listing.NewFeed(a.cfg.Feed)
	}
	return deps
}

func (s *stack) Close() {
	if s.session != nil && s.session.Logins() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := s.session.Logout(ctx); err != nil {
			s.logger.Warn("rfpwatch: logout", "error", err)
		}
		cancel()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	s.store.Close()
}
