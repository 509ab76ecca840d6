package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/rfpwatch/retry"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// contentTypeExt maps artifact MIME types to the extension they stand for.
var contentTypeExt = map[string]string{
	"application/pdf":               ".pdf",
	"application/zip":               ".zip",
	"application/x-zip-compressed":  ".zip",
	"application/x-zip":             ".zip",
	"application/msword":            ".doc",
	"application/rtf":               ".rtf",
	"text/rtf":                      ".rtf",
	"text/plain":                    ".txt",
	"text/markdown":                 ".md",
	"text/html":                     ".html",

	"application/vnd.oasis.opendocument.text":                                 ".odt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// documentExt are the extensions artifactName keeps as they are.
var documentExt = map[string]bool{
	".pdf": true, ".zip": true, ".doc": true, ".docx": true, ".odt": true,
	".rtf": true, ".txt": true, ".md": true, ".html": true, ".htm": true,
}

// genericTypes say nothing about what the bytes are.
var genericTypes = map[string]bool{
	"":                           true,
	"application/octet-stream":   true,
	"binary/octet-stream":        true,
	"application/download":       true,
	"application/force-download": true,
}

// artifact is one downloaded file.
type artifact struct {
	data        []byte
	filename    string
	contentType string
}

type downloader struct {
	client *resty.Client
	o      *Orchestrator
}

func newDownloader(o *Orchestrator) *downloader {
	c := resty.New().
		SetTimeout(o.cfg.Timeout).
		SetHeader("User-Agent", o.cfg.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &downloader{client: c, o: o}
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "http " + strconv.Itoa(e.code) }

// download retrieves rawURL. Size and type are checked from a HEAD response
// when the server answers one, and again on the bytes received.
func (d *downloader) download(ctx context.Context, rawURL string, cookies []*http.Cookie) (*artifact, error) {
	if err := d.precheck(ctx, rawURL, cookies); err != nil {
		return nil, err
	}

	var art *artifact
	err := retry.Do(ctx, retry.Policy{
		Name:        "acquire.download",
		MaxAttempts: d.o.cfg.MaxAttempts,
		Backoff:     d.o.cfg.RetryBackoff,
		Retryable:   retry.IsTransient,
		Logger:      d.o.logger,
	}, func(ctx context.Context) error {
		a, err := d.get(ctx, rawURL, cookies)
		if err != nil {
			return err
		}
		art = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !d.o.typeAccepted(art.filename, art.contentType, art.data) {
		return nil, fmt.Errorf("%w: %s (%s)", rfp.ErrDisallowedType, art.filename, art.contentType)
	}
	return art, nil
}

func (d *downloader) precheck(ctx context.Context, rawURL string, cookies []*http.Cookie) error {
	resp, err := d.client.R().SetContext(ctx).SetCookies(cookies).Head(rawURL)
	if err != nil || resp.IsError() {
		// No usable HEAD; the GET enforces the limits.
		d.o.logger.Debug("acquire: head unavailable", "url", rawURL, "error", err)
		return nil
	}
	if n, err := strconv.ParseInt(resp.Header().Get("Content-Length"), 10, 64); err == nil && n > d.o.cfg.MaxArtifactSize {
		return fmt.Errorf("%w: %s declares %d bytes (max %d)", rfp.ErrTooLarge, rawURL, n, d.o.cfg.MaxArtifactSize)
	}
	ct := mediaType(resp.Header().Get("Content-Type"))
	name := artifactName(rawURL, resp.Header().Get("Content-Disposition"), ct)
	if !genericTypes[ct] && !d.o.acceptedExt(path.Ext(name)) && !d.o.acceptedExt(contentTypeExt[ct]) {
		return fmt.Errorf("%w: %s (%s)", rfp.ErrDisallowedType, name, ct)
	}
	return nil
}

func (d *downloader) get(ctx context.Context, rawURL string, cookies []*http.Cookie) (*artifact, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetCookies(cookies).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if code := resp.StatusCode(); code >= 400 {
		err := &statusError{code: code}
		if code < 500 && code != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	limit := d.o.cfg.MaxArtifactSize
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, retry.Permanent(fmt.Errorf("%w: %s exceeds %d bytes", rfp.ErrTooLarge, rawURL, limit))
	}

	ct := mediaType(resp.Header().Get("Content-Type"))
	final := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	return &artifact{
		data:        data,
		filename:    artifactName(final, resp.Header().Get("Content-Disposition"), ct),
		contentType: ct,
	}, nil
}

// typeAccepted reports whether the artifact is a document or archive type,
// judged by extension, content type, then leading bytes.
func (o *Orchestrator) typeAccepted(filename, contentType string, data []byte) bool {
	if o.acceptedExt(path.Ext(filename)) || o.acceptedExt(contentTypeExt[contentType]) {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF")) || bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func (o *Orchestrator) acceptedExt(ext string) bool {
	ext = strings.ToLower(ext)
	return ext != "" && (o.allowed[ext] || o.archives[ext])
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

// artifactName picks the filename from Content-Disposition, then the URL
// path. A name without a document extension (download.aspx, get.php)
// takes the one its content type stands for.
func artifactName(rawURL, disposition, contentType string) string {
	var name string
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name = path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	}
	if name == "" || name == "." || name == "/" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "document"
	}
	ext := path.Ext(name)
	if want, ok := contentTypeExt[contentType]; ok && !documentExt[strings.ToLower(ext)] {
		name = strings.TrimSuffix(name, ext) + want
	}
	return name
}

func isRejection(err error) (string, bool) {
	switch {
	case errors.Is(err, rfp.ErrTooLarge):
		return ReasonTooLarge, true
	case errors.Is(err, rfp.ErrDisallowedType):
		return ReasonDisallowed, true
	}
	return "", false
}
