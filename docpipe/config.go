package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize rejects larger documents before any parsing. Default: 100 MiB.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Quality tunes when PDF extraction warnings are raised.
	Quality QualityConfig `json:"quality" yaml:"quality"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

// QualityConfig holds the PDF text-yield thresholds.
type QualityConfig struct {
	// MinCharsPerPage below which an image-bearing PDF is flagged as scanned. Default: 50.
	MinCharsPerPage float64 `json:"min_chars_per_page" yaml:"min_chars_per_page"`
	// MinPrintableRatio below which the text is flagged as garbled. Default: 0.85.
	MinPrintableRatio float64 `json:"min_printable_ratio" yaml:"min_printable_ratio"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 << 20
	}
	if c.Quality.MinCharsPerPage <= 0 {
		c.Quality.MinCharsPerPage = 50
	}
	if c.Quality.MinPrintableRatio <= 0 {
		c.Quality.MinPrintableRatio = 0.85
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
