// CLAUDE:SUMMARY Run coordinator: session, discovery, since cutoff, dedup, sequential acquisition, parallel process+score, persistence.
// Package pipeline sequences one rfpwatch run end to end.
//
// Acquisition goes through the single authenticated page and is therefore
// sequential. Processing and scoring need no browser and run on a bounded
// worker group. One opportunity failing never stops the others; only auth
// and listing-level navigation failures end a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/rfpwatch/acquire"
	"github.com/hazyhaar/rfpwatch/listing"
	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/scoring"
	"github.com/hazyhaar/rfpwatch/session"
	"github.com/hazyhaar/rfpwatch/store"
)

// Authenticator hands out navigators on a valid session.
// *session.Manager implements it.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) (*session.Handle, error)
}

// Narrator writes an optional prose summary of a scored opportunity. Its
// output never affects the score.
type Narrator interface {
	Narrate(ctx context.Context, res rfp.FitResult, corpus rfp.Corpus) (string, error)
}

// Deps are the collaborators of a Coordinator. Session, Listings and
// Acquirer may be nil for Rescore-only use; Feed and Narrator are optional.
type Deps struct {
	Session  Authenticator
	Listings *listing.Extractor
	Feed     *listing.Feed
	Acquirer *acquire.Orchestrator
	Scorer   *scoring.Scorer
	Store    *store.Store
	Narrator Narrator
}

// Coordinator runs the pipeline.
type Coordinator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	cfg.defaults()
	return &Coordinator{cfg: cfg, deps: deps, logger: cfg.Logger, now: time.Now}
}

// Options narrow a run.
type Options struct {
	// Since drops listings posted strictly before it. Undated listings are
	// kept. Zero keeps everything.
	Since time.Time
	// Force re-processes opportunities that already have a result.
	Force bool
	// Limit caps the number of opportunities acquired. 0 = no cap.
	Limit int
}

// Item is the outcome for one opportunity.
type Item struct {
	Listing   rfp.Listing   `json:"listing"`
	Result    rfp.FitResult `json:"result"`
	Skipped   []rfp.Skip    `json:"skipped,omitempty"`
	Succeeded bool          `json:"succeeded"`
}

// Report summarises a run. Items keep discovery order.
type Report struct {
	RunID         string    `json:"run_id"`
	Mode          string    `json:"mode"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Discovered    int       `json:"discovered"`
	BeforeCutoff  int       `json:"before_cutoff"`
	AlreadyScored int       `json:"already_scored"`
	New           int       `json:"new"`
	Items         []Item    `json:"items"`
}

// Succeeded counts items that were scored.
func (r *Report) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.Succeeded {
			n++
		}
	}
	return n
}

// Failed counts items that produced a failed result.
func (r *Report) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// Run performs discovery, acquisition, processing, scoring and persistence.
// A fatal error stops the run; the report then holds what completed.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Report, error) {
	rep, runID, err := c.begin(ctx, ModeRun)
	if err != nil {
		return nil, err
	}
	err = c.run(ctx, rep, opts)
	c.finish(ctx, runID, rep, err)
	return rep, err
}

func (c *Coordinator) run(ctx context.Context, rep *Report, opts Options) error {
	nav, err := c.navigator(ctx)
	if err != nil {
		return err
	}
	listings, err := c.discover(ctx, nav, rep, opts)
	if err != nil {
		return err
	}

	scored := map[string]bool{}
	if !opts.Force {
		if scored, err = c.deps.Store.ScoredIDs(ctx); err != nil {
			return fmt.Errorf("pipeline: scored ids: %w", err)
		}
	}
	var todo []rfp.Listing
	for _, l := range listings {
		if scored[l.ID] {
			rep.AlreadyScored++
			continue
		}
		todo = append(todo, l)
	}
	if opts.Limit > 0 && len(todo) > opts.Limit {
		todo = todo[:opts.Limit]
	}
	c.logger.Info("pipeline: candidates selected",
		"run_id", rep.RunID, "discovered", rep.Discovered, "before_cutoff", rep.BeforeCutoff,
		"already_scored", rep.AlreadyScored, "candidates", len(todo))

	items := make([]Item, len(todo))
	var g errgroup.Group
	g.SetLimit(c.cfg.Parallelism)

	done := 0
	var fatal error
	for i := range todo {
		l := todo[i]
		bufs, skips, err := c.deps.Acquirer.Fetch(ctx, nav, &l)
		if err != nil && (rfp.IsFatal(err) || ctx.Err() != nil) {
			fatal = err
			break
		}
		c.persistListing(ctx, l)
		done++

		if err != nil {
			c.logger.Warn("pipeline: acquisition failed", "opportunity_id", l.ID, "error", err)
			res := rfp.FailedResult(l.ID, err)
			c.saveResult(ctx, rep.RunID, res)
			items[i] = Item{Listing: l, Result: res, Skipped: skips}
			continue
		}

		g.Go(func() error {
			texts, pskips := c.deps.Acquirer.Process(ctx, l.ID, bufs)
			if err := c.deps.Store.SaveTexts(ctx, l.ID, texts); err != nil {
				c.logger.Warn("pipeline: save texts failed", "opportunity_id", l.ID, "error", err)
			}
			res := c.evaluate(ctx, l, texts)
			c.saveResult(ctx, rep.RunID, res)
			items[i] = Item{
				Listing:   l,
				Result:    res,
				Skipped:   append(skips, pskips...),
				Succeeded: !res.Failed,
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Items = items[:done]
	return fatal
}

// Scrape discovers and persists listings without acquiring anything.
func (c *Coordinator) Scrape(ctx context.Context, opts Options) (*Report, error) {
	rep, runID, err := c.begin(ctx, ModeScrape)
	if err != nil {
		return nil, err
	}
	err = c.scrape(ctx, rep, opts)
	c.finish(ctx, runID, rep, err)
	return rep, err
}

func (c *Coordinator) scrape(ctx context.Context, rep *Report, opts Options) error {
	var nav session.Navigator
	if c.cfg.Discovery != DiscoverRSS {
		var err error
		if nav, err = c.navigator(ctx); err != nil {
			return err
		}
	}
	listings, err := c.discover(ctx, nav, rep, opts)
	if err != nil {
		return err
	}
	for _, l := range listings {
		rep.Items = append(rep.Items, Item{Listing: l, Succeeded: true})
	}
	return nil
}

// Rescore recomputes results from stored text with the current rubric and
// persists them. No browser or network is used. Opportunities without
// stored text keep their previous result.
func (c *Coordinator) Rescore(ctx context.Context, since time.Time) (*Report, error) {
	rep, runID, err := c.begin(ctx, ModeRescore)
	if err != nil {
		return nil, err
	}
	err = c.rescore(ctx, rep, since)
	c.finish(ctx, runID, rep, err)
	return rep, err
}

func (c *Coordinator) rescore(ctx context.Context, rep *Report, since time.Time) error {
	recs, err := c.deps.Store.ListResults(ctx, since, c.deps.Scorer.Thresholds())
	if err != nil {
		return fmt.Errorf("pipeline: list results: %w", err)
	}
	rep.Discovered = len(recs)
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		texts, err := c.deps.Store.Texts(ctx, rec.Opportunity.ID)
		if err != nil {
			return fmt.Errorf("pipeline: texts %s: %w", rec.Opportunity.ID, err)
		}
		if len(texts) == 0 {
			rep.Items = append(rep.Items, Item{Listing: rec.Opportunity.Listing, Result: rec.Result, Succeeded: !rec.Result.Failed})
			continue
		}
		res := c.evaluate(ctx, rec.Opportunity.Listing, texts)
		c.saveResult(ctx, rep.RunID, res)
		rep.Items = append(rep.Items, Item{Listing: rec.Opportunity.Listing, Result: res, Succeeded: !res.Failed})
	}
	return nil
}

// evaluate turns extracted texts into a result. Empty or short corpora
// fail without invoking the scorer.
func (c *Coordinator) evaluate(ctx context.Context, l rfp.Listing, texts []rfp.ExtractedText) rfp.FitResult {
	const op = "pipeline.evaluate"
	if len(texts) == 0 {
		return rfp.FailedResult(l.ID, rfp.E(rfp.KindExtraction, op, rfp.ErrNoDocuments))
	}
	chars := 0
	for _, t := range texts {
		chars += t.CharCount
	}
	if chars < c.cfg.MinCorpusChars {
		return rfp.FailedResult(l.ID, rfp.E(rfp.KindInsufficientCorpus, op,
			fmt.Errorf("%w: %d chars, need %d", rfp.ErrInsufficientCorpus, chars, c.cfg.MinCorpusChars)))
	}

	corpus := rfp.BuildCorpus(l.ID, texts)
	res := c.deps.Scorer.Score(l.ID, l.Title+"\n\n"+corpus.CombinedText)
	if !res.Failed && c.deps.Narrator != nil {
		res.Narrative = c.narrate(ctx, res, corpus)
	}
	c.logger.Info("pipeline: scored",
		"opportunity_id", l.ID, "documents", corpus.DocumentCount, "words", corpus.TotalWords,
		"percentage", res.Percentage, "tier", res.Tier)
	return res
}

func (c *Coordinator) narrate(ctx context.Context, res rfp.FitResult, corpus rfp.Corpus) (out string) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.NarrateTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("pipeline: narrator panicked", "opportunity_id", res.OpportunityID, "panic", r)
			out = ""
		}
	}()
	text, err := c.deps.Narrator.Narrate(ctx, res, corpus)
	if err != nil {
		c.logger.Warn("pipeline: narrator failed", "opportunity_id", res.OpportunityID, "error", err)
		return ""
	}
	return text
}

// navigator ensures the session. Failures are fatal.
func (c *Coordinator) navigator(ctx context.Context) (session.Navigator, error) {
	if c.deps.Session == nil {
		return nil, rfp.E(rfp.KindAuth, "pipeline.session", errors.New("no session configured"))
	}
	h, err := c.deps.Session.EnsureAuthenticated(ctx)
	if err != nil {
		if rfp.KindOf(err) == "" {
			err = rfp.E(rfp.KindAuth, "pipeline.session", err)
		}
		return nil, err
	}
	return h, nil
}

// discover collects listings, applies the since cutoff and persists what
// is kept.
func (c *Coordinator) discover(ctx context.Context, nav session.Navigator, rep *Report, opts Options) ([]rfp.Listing, error) {
	var fromPage, fromFeed []rfp.Listing
	var err error

	if c.cfg.Discovery == DiscoverListing || c.cfg.Discovery == DiscoverBoth {
		if fromPage, err = c.deps.Listings.ExtractAll(ctx, nav, c.cfg.ListingURL); err != nil {
			return nil, err
		}
	}
	if (c.cfg.Discovery == DiscoverRSS || c.cfg.Discovery == DiscoverBoth) && c.deps.Feed != nil {
		fromFeed, err = c.deps.Feed.Discover(ctx, c.cfg.FeedURL)
		if err != nil {
			if c.cfg.Discovery == DiscoverRSS {
				return nil, rfp.E(rfp.KindNavigation, "pipeline.discover", err)
			}
			c.logger.Warn("pipeline: feed failed, using listing pages only", "error", err)
		}
	}
	all := listing.Merge(fromPage, fromFeed)
	rep.Discovered = len(all)

	known, err := c.deps.Store.KnownIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: known ids: %w", err)
	}
	kept := make([]rfp.Listing, 0, len(all))
	for _, l := range all {
		if !opts.Since.IsZero() && l.PostedDate != nil && l.PostedDate.Before(opts.Since) {
			rep.BeforeCutoff++
			continue
		}
		if !known[l.ID] {
			rep.New++
		}
		c.persistListing(ctx, l)
		kept = append(kept, l)
	}
	return kept, nil
}

func (c *Coordinator) persistListing(ctx context.Context, l rfp.Listing) {
	if err := c.deps.Store.UpsertListing(ctx, l); err != nil {
		c.logger.Warn("pipeline: persist listing failed", "opportunity_id", l.ID, "error", err)
	}
}

func (c *Coordinator) saveResult(ctx context.Context, runID string, res rfp.FitResult) {
	if err := c.deps.Store.SaveResult(ctx, runID, res); err != nil {
		c.logger.Warn("pipeline: save result failed", "opportunity_id", res.OpportunityID, "error", err)
	}
}

func (c *Coordinator) begin(ctx context.Context, mode string) (*Report, string, error) {
	runID, err := c.deps.Store.StartRun(ctx, mode)
	if err != nil {
		return nil, "", err
	}
	c.logger.Info("pipeline: run started", "run_id", runID, "mode", mode)
	return &Report{RunID: runID, Mode: mode, StartedAt: c.now()}, runID, nil
}

func (c *Coordinator) finish(ctx context.Context, runID string, rep *Report, runErr error) {
	rep.FinishedAt = c.now()
	// The run row is closed even when ctx was cancelled.
	if err := c.deps.Store.FinishRun(context.WithoutCancel(ctx), runID, store.RunStats{
		Discovered: rep.Discovered,
		Processed:  rep.Succeeded(),
		Failed:     rep.Failed(),
		Err:        runErr,
	}); err != nil {
		c.logger.Warn("pipeline: finish run failed", "run_id", runID, "error", err)
	}

	attrs := []any{
		"run_id", runID, "mode", rep.Mode, "items", len(rep.Items),
		"succeeded", rep.Succeeded(), "failed", rep.Failed(),
		"duration_ms", rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
	}
	if runErr != nil {
		c.logger.Error("pipeline: run aborted", append(attrs, "error", runErr)...)
		return
	}
	c.logger.Info("pipeline: run finished", attrs...)
}
