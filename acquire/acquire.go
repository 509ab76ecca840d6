// CLAUDE:SUMMARY Acquisition: detail page visit, download link location, checked download, disk or memory storage, archive and normaliser routing.
// Package acquire retrieves and normalises the documents of one opportunity.
//
// Fetch touches the shared browser session and must run one opportunity at
// a time. Process works on bytes only and may run in parallel.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/rfpwatch/archive"
	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/docpipe"
	"github.com/hazyhaar/rfpwatch/retry"
	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/session"
)

// Skip reasons recorded by acquisition.
const (
	ReasonTooLarge       = archive.ReasonTooLarge
	ReasonDisallowed     = archive.ReasonDisallowed
	ReasonCorruptArchive = "corrupt archive"
)

// Orchestrator fetches artifacts and turns them into extracted text.
type Orchestrator struct {
	cfg      Config
	logger   *slog.Logger
	allowed  map[string]bool
	archives map[string]bool
	expander *archive.Expander
	pipe     *docpipe.Pipeline
	dl       *downloader
}

// New creates an Orchestrator normalising documents with pipe.
func New(cfg Config, pipe *docpipe.Pipeline) *Orchestrator {
	cfg.defaults()
	o := &Orchestrator{
		cfg:      cfg,
		logger:   cfg.Logger,
		allowed:  extSet(cfg.AllowedExtensions),
		archives: extSet(cfg.ArchiveExtensions),
		expander: archive.New(cfg.Archive),
		pipe:     pipe,
	}
	o.dl = newDownloader(o)
	return o
}

func extSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

// Mode returns the configured storage mode.
func (o *Orchestrator) Mode() Mode { return o.cfg.Mode }

// ArtifactDir returns the directory holding id's artifacts, or "" in
// memory mode.
func (o *Orchestrator) ArtifactDir(id string) string {
	if o.cfg.Mode != ModeDisk {
		return ""
	}
	return filepath.Join(o.cfg.DownloadDir, safeSegment(id))
}

// Fetch retrieves the artifact of l. It visits the detail page through nav,
// locates the download link, records it in l.DownloadURL and downloads it
// with the browser's cookies. Rejected artifacts come back as skips along
// with a KindAcquisition error. Session failures are returned unchanged.
func (o *Orchestrator) Fetch(ctx context.Context, nav session.Navigator, l *rfp.Listing) ([]rfp.DocumentBuffer, []rfp.Skip, error) {
	const op = "acquire.fetch"
	start := time.Now()

	if o.cfg.Mode == ModeDisk {
		bufs, err := o.resume(l.ID)
		if err != nil {
			o.logger.Warn("acquire: resume failed", "opportunity_id", l.ID, "error", err)
		}
		if len(bufs) > 0 {
			o.logger.Info("acquire: resumed from disk", "opportunity_id", l.ID, "artifacts", len(bufs))
			return bufs, nil, nil
		}
	}

	link, cookies, err := o.visit(ctx, nav, l)
	if err != nil {
		if rfp.KindOf(err) == "" {
			err = rfp.E(rfp.KindAcquisition, op, err)
		}
		return nil, nil, err
	}
	l.DownloadURL = link

	art, err := o.dl.download(ctx, link, cookies)
	if err != nil {
		var skips []rfp.Skip
		if reason, ok := isRejection(err); ok {
			skips = append(skips, rfp.Skip{Name: linkName(link), Reason: reason})
			o.logger.Warn("acquire: artifact rejected",
				"opportunity_id", l.ID, "url", link, "reason", reason, "error", err)
		}
		return nil, skips, rfp.E(rfp.KindAcquisition, op, err)
	}

	buf := rfp.DocumentBuffer{
		Data:          art.data,
		Filename:      art.filename,
		DeclaredType:  art.contentType,
		OpportunityID: l.ID,
	}
	if o.cfg.Mode == ModeDisk {
		if p, err := o.persist(l.ID, art); err != nil {
			o.logger.Warn("acquire: persist failed", "opportunity_id", l.ID, "error", err)
		} else {
			o.logger.Debug("acquire: artifact written", "opportunity_id", l.ID, "path", p)
		}
	}

	o.logger.Info("acquire: artifact retrieved",
		"opportunity_id", l.ID, "filename", art.filename, "bytes", len(art.data),
		"content_type", art.contentType, "duration_ms", time.Since(start).Milliseconds())
	return []rfp.DocumentBuffer{buf}, nil, nil
}

// visit loads the detail page and returns the artifact link with the
// session cookies. A preset DownloadURL skips the page.
func (o *Orchestrator) visit(ctx context.Context, nav session.Navigator, l *rfp.Listing) (string, []*http.Cookie, error) {
	var link string
	var cookies []*http.Cookie
	err := nav.Do(ctx, func(p browser.Page) error {
		link = l.DownloadURL
		if link == "" {
			found, err := o.locateOnDetail(ctx, p, l.DetailURL)
			if err != nil {
				return err
			}
			link = found
		}
		c, err := p.Cookies(ctx)
		if err != nil {
			o.logger.Warn("acquire: cookies unavailable", "opportunity_id", l.ID, "error", err)
		}
		cookies = c
		return nil
	})
	return link, cookies, err
}

func (o *Orchestrator) locateOnDetail(ctx context.Context, p browser.Page, detailURL string) (string, error) {
	err := retry.Do(ctx, retry.Policy{
		Name:        "acquire.detail",
		MaxAttempts: o.cfg.MaxAttempts,
		Backoff:     o.cfg.RetryBackoff,
		Retryable:   retry.IsTransient,
		Logger:      o.logger,
	}, func(ctx context.Context) error {
		return p.Navigate(ctx, detailURL)
	})
	if err != nil {
		return "", rfp.E(rfp.KindAcquisition, "acquire.detail", err)
	}

	html, err := p.HTML(ctx)
	if err != nil {
		return "", rfp.E(rfp.KindAcquisition, "acquire.detail", err)
	}
	pageURL, err := p.URL(ctx)
	if err != nil || pageURL == "" {
		pageURL = detailURL
	}
	base, _ := url.Parse(pageURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", rfp.E(rfp.KindAcquisition, "acquire.locate", err)
	}
	link, ok := o.Locate(doc, base)
	if !ok {
		return "", rfp.E(rfp.KindAcquisition, "acquire.locate", fmt.Errorf("%w: %s", rfp.ErrNoDownload, detailURL))
	}
	return link, nil
}

// Process expands archives and normalises every document of opportunity
// id. Per-document failures are returned as skips; the remaining documents
// still count.
func (o *Orchestrator) Process(ctx context.Context, id string, bufs []rfp.DocumentBuffer) ([]rfp.ExtractedText, []rfp.Skip) {
	var docs []rfp.DocumentBuffer
	var skips []rfp.Skip
	for _, b := range bufs {
		if !archive.IsArchive(b.Filename, b.DeclaredType, b.Data) {
			docs = append(docs, b)
			continue
		}
		res, err := o.expander.Expand(b.Data, id)
		if err != nil {
			o.logger.Warn("acquire: archive unreadable", "opportunity_id", id, "filename", b.Filename, "error", err)
			skips = append(skips, rfp.Skip{Name: b.Filename, Reason: ReasonCorruptArchive})
			continue
		}
		docs = append(docs, res.Documents...)
		skips = append(skips, res.Skipped...)
	}

	texts := make([]rfp.ExtractedText, 0, len(docs))
	for _, d := range docs {
		t, err := o.pipe.Normalize(ctx, d)
		if err != nil {
			o.logger.Warn("acquire: document skipped", "opportunity_id", id, "filename", d.Filename, "error", err)
			skips = append(skips, rfp.Skip{Name: d.Filename, Reason: err.Error()})
			continue
		}
		texts = append(texts, *t)
	}
	return texts, skips
}

// persist writes art under the opportunity directory via a temporary file
// and a rename, so a resumed run never reads a partial artifact.
func (o *Orchestrator) persist(id string, art *artifact) (string, error) {
	dir := o.ArtifactDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("acquire: mkdir %s: %w", dir, err)
	}
	target := filepath.Join(dir, safeSegment(art.filename))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, art.data, 0o644); err != nil {
		return "", fmt.Errorf("acquire: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("acquire: rename: %w", err)
	}
	return target, nil
}

// resume loads artifacts a previous run left in the opportunity directory.
func (o *Orchestrator) resume(id string) ([]rfp.DocumentBuffer, error) {
	dir := o.ArtifactDir(id)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bufs []rfp.DocumentBuffer
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() > o.cfg.MaxArtifactSize {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, rfp.DocumentBuffer{Data: data, Filename: e.Name(), OpportunityID: id})
	}
	return bufs, nil
}

func linkName(link string) string {
	if u, err := url.Parse(link); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		return path.Base(u.Path)
	}
	return link
}

// safeSegment makes s usable as one path element.
func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}
