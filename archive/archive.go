// CLAUDE:SUMMARY In-memory zip expansion with extension filter, per-entry and total size caps, nested archives, zip-slip guard.
// Package archive expands document bundles in memory.
//
// Nothing is written to disk. Entries are filtered by extension and size
// before and while reading; every rejection is reported as a skip.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// Skip reasons.
const (
	ReasonDisallowed = "disallowed type"
	ReasonTooLarge   = "too large"
	ReasonTotalLimit = "archive total size limit"
	ReasonTooDeep    = "nested archive too deep"
	ReasonUnsafePath = "unsafe path"
	ReasonCorrupt    = "corrupt nested archive"
	ReasonEntryLimit = "entry count limit"
	ReasonUnreadable = "unreadable entry"
)

// Config configures the expander.
type Config struct {
	// AllowedExtensions lists document extensions to keep, with the dot.
	AllowedExtensions []string `yaml:"allowed_extensions"`
	// MaxEntrySize caps one extracted entry. Default: 50 MB.
	MaxEntrySize int64 `yaml:"max_entry_size"`
	// MaxTotalSize caps the sum of extracted bytes per archive. Default: 200 MB.
	MaxTotalSize int64 `yaml:"max_total_size"`
	// MaxDepth bounds nested archive expansion. Default: 2.
	MaxDepth int `yaml:"max_depth"`
	// MaxEntries caps the entries examined per archive. Default: 2000.
	MaxEntries int `yaml:"max_entries"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultExtensions are the document types the normaliser understands.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".odt", ".rtf", ".txt", ".md", ".html", ".htm"}

func (c *Config) defaults() {
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = DefaultExtensions
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = 50 << 20
	}
	if c.MaxTotalSize <= 0 {
		c.MaxTotalSize = 200 << 20
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 2
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 2000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is the outcome of one expansion.
type Result struct {
	Documents []rfp.DocumentBuffer
	Skipped   []rfp.Skip
}

// Expander expands zip archives.
type Expander struct {
	cfg     Config
	allowed map[string]bool
}

// New creates an Expander.
func New(cfg Config) *Expander {
	cfg.defaults()
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Expander{cfg: cfg, allowed: allowed}
}

// zipTypes are declared types that name a zip archive.
var zipTypes = map[string]bool{
	".zip":                         true,
	"application/zip":              true,
	"application/x-zip":            true,
	"application/x-zip-compressed": true,
}

// IsArchive reports whether a buffer is a zip archive, judged by its
// extension, its declared type, then its leading bytes. Office formats are
// zips too: their extensions and members mark them as documents.
func IsArchive(filename, declaredType string, data []byte) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".zip":
		return true
	case ".docx", ".odt", ".xlsx", ".pptx", ".ods", ".odp":
		return false
	}
	if officeMembers(data) {
		return false
	}
	declared, _, _ := strings.Cut(strings.ToLower(declaredType), ";")
	return zipTypes[strings.TrimSpace(declared)] || bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func officeMembers(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04")) &&
		(bytes.Contains(data, []byte("word/document.xml")) ||
			bytes.Contains(data, []byte("application/vnd.oasis.opendocument")))
}

// Expand returns the allowed documents in data, owned by opportunity owner.
// A corrupt top-level archive is an error; zero matching entries is not.
func (e *Expander) Expand(data []byte, owner string) (*Result, error) {
	var res Result
	var total int64
	if err := e.expand(data, owner, "", 0, &res, &total); err != nil {
		return nil, err
	}
	e.cfg.Logger.Debug("archive: expanded",
		"opportunity_id", owner, "documents", len(res.Documents),
		"skipped", len(res.Skipped), "bytes", total)
	return &res, nil
}

func (e *Expander) expand(data []byte, owner, prefix string, depth int, res *Result, total *int64) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("archive: open: %w", err)
	}

	for i, f := range zr.File {
		name := prefix + f.Name
		if i >= e.cfg.MaxEntries {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: prefix + "*", Reason: ReasonEntryLimit})
			break
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !safeName(f.Name) {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonUnsafePath})
			continue
		}

		ext := strings.ToLower(path.Ext(f.Name))
		nested := ext == ".zip"
		if !nested && !e.allowed[ext] {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonDisallowed})
			continue
		}
		if nested && depth+1 > e.cfg.MaxDepth {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonTooDeep})
			continue
		}

		limit := e.cfg.MaxEntrySize
		if nested {
			limit = e.cfg.MaxTotalSize
		}
		if f.UncompressedSize64 > uint64(limit) {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonTooLarge})
			continue
		}

		body, err := readLimited(f, limit)
		if err != nil {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: fmt.Sprintf("%s: %v", ReasonUnreadable, err)})
			continue
		}
		if int64(len(body)) > limit {
			// Declared size lied.
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonTooLarge})
			continue
		}

		if nested {
			if err := e.expand(body, owner, name+"/", depth+1, res, total); err != nil {
				res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonCorrupt})
			}
			continue
		}

		if *total+int64(len(body)) > e.cfg.MaxTotalSize {
			res.Skipped = append(res.Skipped, rfp.Skip{Name: name, Reason: ReasonTotalLimit})
			continue
		}
		*total += int64(len(body))

		res.Documents = append(res.Documents, rfp.DocumentBuffer{
			Data:          body,
			Filename:      name,
			DeclaredType:  ext,
			OpportunityID: owner,
		})
	}
	return nil
}

// readLimited reads at most limit+1 bytes so an oversized entry is
// detected without decompressing all of it.
func readLimited(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit+1))
}

func safeName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
