// CLAUDE:SUMMARY Normaliser: detects a buffer's format and dispatches to the pdf, docx, odt, doc, rtf, txt, md or html extractor.
// Package docpipe normalises heterogeneous documents into plain text.
//
// Supported formats:
//   - .pdf   pdfcpu content streams, raw-stream fallback
//   - .docx  word/document.xml
//   - .odt   content.xml
//   - .doc   legacy Word binary, best-effort text runs
//   - .rtf   control-word stripping
//   - .txt   BOM stripping, Windows-1252 fallback
//   - .md    Markdown with syntax removed
//   - .html  bluemonday sanitising, html-to-markdown rendering
//
// Everything works on in-memory buffers.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	text, err := pipe.Normalize(ctx, buf)
package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// Pipeline is the document normaliser.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg, logger: cfg.Logger}
}

// Detect returns the document format from the filename extension, falling
// back to the declared MIME type or extension.
func (p *Pipeline) Detect(filename, declaredType string) (Format, error) {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f, nil
	}
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if f, ok := extFormats[declared]; ok {
		return f, nil
	}
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		if f, ok := mimeFormats[mt]; ok {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", rfp.ErrUnsupportedFormat, filepath.Ext(filename))
}

// sniff guesses the format from leading bytes when the name says nothing.
func sniff(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF, true
	case bytes.HasPrefix(data, []byte(`{\rtf`)):
		return FormatRTF, true
	case bytes.HasPrefix(data, oleMagic):
		return FormatDoc, true
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		if bytes.Contains(data, []byte("word/document.xml")) {
			return FormatDocx, true
		}
		if bytes.Contains(data, []byte("application/vnd.oasis.opendocument.text")) {
			return FormatODT, true
		}
	}
	return "", false
}

// extraction is what every format extractor returns.
type extraction struct {
	text     string
	pages    int
	warnings []string
}

// Normalize extracts the text of buf. Unsupported formats, oversized
// documents and documents without text fail with a KindExtraction error.
func (p *Pipeline) Normalize(ctx context.Context, buf rfp.DocumentBuffer) (*rfp.ExtractedText, error) {
	const op = "docpipe.normalize"
	if err := ctx.Err(); err != nil {
		return nil, rfp.E(rfp.KindExtraction, op, err)
	}
	if int64(len(buf.Data)) > p.cfg.MaxFileSize {
		return nil, rfp.E(rfp.KindExtraction, op,
			fmt.Errorf("%w: %s is %d bytes (max %d)", rfp.ErrTooLarge, buf.Filename, len(buf.Data), p.cfg.MaxFileSize))
	}

	format, err := p.Detect(buf.Filename, buf.DeclaredType)
	if err != nil {
		f, ok := sniff(buf.Data)
		if !ok {
			return nil, rfp.E(rfp.KindExtraction, op, err)
		}
		format = f
	}

	p.logger.Debug("docpipe: normalizing", "filename", buf.Filename, "format", format, "bytes", len(buf.Data))

	ex, err := p.extract(format, buf.Data)
	if err != nil {
		return nil, rfp.E(rfp.KindExtraction, op, fmt.Errorf("%s (%s): %w", buf.Filename, format, err))
	}
	if strings.TrimSpace(ex.text) == "" {
		return nil, rfp.E(rfp.KindExtraction, op, fmt.Errorf("%s (%s): no text content", buf.Filename, format))
	}

	out := rfp.NewExtractedText(buf.Filename, string(format), ex.text)
	out.PageCount = ex.pages
	out.Warnings = ex.warnings
	for _, w := range ex.warnings {
		p.logger.Warn("docpipe: extraction warning", "filename", buf.Filename, "warning", w)
	}
	return out, nil
}

func (p *Pipeline) extract(format Format, data []byte) (ex extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	switch format {
	case FormatPDF:
		return p.extractPDF(data)
	case FormatDocx:
		return extractDocx(data)
	case FormatODT:
		return extractODT(data)
	case FormatDoc:
		return extractDoc(data)
	case FormatRTF:
		return extractRTF(data)
	case FormatTXT:
		return extractText(data)
	case FormatMD:
		return extractMarkdown(data)
	case FormatHTML:
		return extractHTML(data)
	}
	return extraction{}, fmt.Errorf("%w: no parser for %s", rfp.ErrUnsupportedFormat, format)
}
