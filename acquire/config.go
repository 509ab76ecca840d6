package acquire

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/rfpwatch/archive"
)

// Mode selects where retrieved artifacts live.
type Mode string

const (
	// ModeMemory keeps artifacts in memory only.
	ModeMemory Mode = "memory"
	// ModeDisk also writes artifacts under DownloadDir and reuses them on resume.
	ModeDisk Mode = "disk"
)

// Config configures acquisition.
type Config struct {
	Mode Mode `yaml:"mode"`
	// DownloadDir holds one directory per opportunity in disk mode. Default: "downloads".
	DownloadDir string `yaml:"download_dir"`
	// MaxArtifactSize caps one downloaded artifact. Default: 100 MB.
	MaxArtifactSize int64 `yaml:"max_artifact_size"`
	// AllowedExtensions are single-document types accepted for download.
	AllowedExtensions []string `yaml:"allowed_extensions"`
	// ArchiveExtensions are bundle types handed to the archive expander. Default: .zip.
	ArchiveExtensions []string `yaml:"archive_extensions"`
	// DownloadSelectors are tried first, in order, on the detail page.
	DownloadSelectors []string `yaml:"download_selectors"`
	// DownloadHosts are host substrings that mark a link as the artifact.
	DownloadHosts []string `yaml:"download_hosts"`
	// Timeout bounds one download attempt. Default: 5m.
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts bounds retries of transient detail-page and download failures. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`
	// RetryBackoff is the first delay between attempts. Default: 1s.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	UserAgent    string        `yaml:"user_agent"`

	Archive archive.Config `yaml:"archive"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Mode == "" {
		c.Mode = ModeMemory
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "downloads"
	}
	if c.MaxArtifactSize <= 0 {
		c.MaxArtifactSize = 100 << 20
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = archive.DefaultExtensions
	}
	if len(c.ArchiveExtensions) == 0 {
		c.ArchiveExtensions = []string{".zip"}
	}
	if len(c.DownloadSelectors) == 0 {
		c.DownloadSelectors = []string{
			`a[download]`,
			`a.download`,
			`a.attachment`,
			`.attachments a[href]`,
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "rfpwatch/1.0"
	}
	if len(c.Archive.AllowedExtensions) == 0 {
		c.Archive.AllowedExtensions = c.AllowedExtensions
	}
	if c.Archive.Logger == nil {
		c.Archive.Logger = c.Logger
	}
}
