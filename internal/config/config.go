package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitegrab"

	// DefaultMaxDepth is the depth ceiling for links inside the seed's site.
	DefaultMaxDepth = 2

	// DefaultOutsideDepth is the depth ceiling for links to other sites.
	DefaultOutsideDepth = 1

	// DefaultOutputDir receives the archived pages.
	DefaultOutputDir = "downloaded_html"

	// DefaultCombinedDir receives the combined documents.
	DefaultCombinedDir = "combined_html"

	// DefaultMapFile is the URL-to-filename log inside the output directory.
	DefaultMapFile = "url_map.tsv"

	// DefaultCrawlTimeout bounds each fetch made while discovering links.
	DefaultCrawlTimeout = 3 * time.Second

	// DefaultArchiveTimeout bounds each fetch made while saving pages.
	DefaultArchiveTimeout = 10 * time.Second

	// DefaultWorkers is the number of concurrent crawl fetches.
	DefaultWorkers = 1

	// DefaultArchiveConcurrency is the number of concurrent downloads.
	DefaultArchiveConcurrency = 4

	// DefaultBatchSize is the number of seeds crawled at once.
	DefaultBatchSize = 1

	// DefaultParents is how many trailing path segments grouping drops.
	DefaultParents = 1

	// DefaultUserAgent identifies sitegrab in server logs.
	DefaultUserAgent = "sitegrab/1.0 (+https://github.com/nao1215/sitegrab)"

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// Report formats accepted by --report.
const (
	ReportTable    = "table"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// Config holds every option of a crawl run. It is built from CLI flags,
// merged with the config file, validated once and then passed down.
type Config struct {
	// Seeds are the URLs to crawl.
	Seeds []string

	// MaxDepth is the depth ceiling for inside links. The seed is depth 1.
	MaxDepth int

	// OutsideDepth is the depth ceiling for outside links.
	OutsideDepth int

	// OutputDir receives the archived pages and the URL map.
	OutputDir string

	// SameDomain restricts archiving to inside URLs.
	SameDomain bool

	// Group enables writing combined documents after archiving.
	Group bool

	// Parents is how many trailing path segments grouping drops.
	Parents int

	// CombinedDir receives the combined documents.
	CombinedDir string

	// CrawlTimeout bounds each fetch while crawling.
	CrawlTimeout time.Duration

	// ArchiveTimeout bounds each fetch while archiving.
	ArchiveTimeout time.Duration

	// Workers is the number of concurrent crawl fetches.
	Workers int

	// ArchiveConcurrency is the number of concurrent downloads.
	ArchiveConcurrency int

	// MaxPages caps the number of crawl fetches per seed; 0 means no cap.
	MaxPages int

	// BatchSize is the number of seeds crawled at once.
	BatchSize int

	// ProxyAddress routes every request through a SOCKS5 proxy when set.
	ProxyAddress string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the response size limit in bytes; 0 uses the default.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// Quiet limits logging to errors.
	Quiet bool

	// ReportFormat is one of ReportTable, ReportMarkdown or ReportJSON.
	ReportFormat string

	// ReportFile receives the report instead of stdout when set.
	ReportFile string

	// ConfigFilePath is the explicit --config path.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings from the config file.
	SiteConfigs *File

	// DBDir is where the run history database lives.
	DBDir string

	// SaveToDB records each run in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:           DefaultMaxDepth,
		OutsideDepth:       DefaultOutsideDepth,
		OutputDir:          DefaultOutputDir,
		Parents:            DefaultParents,
		CombinedDir:        DefaultCombinedDir,
		CrawlTimeout:       DefaultCrawlTimeout,
		ArchiveTimeout:     DefaultArchiveTimeout,
		Workers:            DefaultWorkers,
		ArchiveConcurrency: DefaultArchiveConcurrency,
		BatchSize:          DefaultBatchSize,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
		ReportFormat:       ReportTable,
		DBDir:              XDGDataDir(),
		SaveToDB:           true,
	}
}

// XDGDataDir returns the data directory that holds the run history.
// On Linux: ~/.local/share/sitegrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitegrab.
// On Linux: ~/.config/sitegrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
		}
	}

	if c.MaxDepth < 1 || c.OutsideDepth < 1 {
		return ErrInvalidDepth
	}
	if c.CrawlTimeout <= 0 || c.ArchiveTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 || c.ArchiveConcurrency <= 0 {
		return ErrInvalidWorkers
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Parents < 0 {
		return ErrInvalidParents
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.OutputDir == "" || (c.Group && c.CombinedDir == "") {
		return ErrEmptyOutputDir
	}

	switch c.ReportFormat {
	case ReportTable, ReportMarkdown, ReportJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidReportFormat, c.ReportFormat)
	}

	return nil
}

// ForSeed returns a copy of c with the config file's settings for seed's host
// applied. Values set in the file override the CLI defaults only where the
// file sets them.
func (c *Config) ForSeed(seed string) (*Config, SiteConfig) {
	out := *c
	if c.SiteConfigs == nil {
		return &out, SiteConfig{}
	}

	host := ""
	if u, err := url.Parse(seed); err == nil {
		host = u.Host
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	if site.Depth > 0 {
		out.MaxDepth = site.Depth
	}
	if site.OutsideDepth > 0 {
		out.OutsideDepth = site.OutsideDepth
	}
	if site.MaxPages > 0 {
		out.MaxPages = site.MaxPages
	}
	if site.UserAgent != "" {
		out.UserAgent = site.UserAgent
	}
	return &out, site
}
