package archive

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitegrab/internal/fetch"
	"github.com/nao1215/sitegrab/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultConcurrency is the number of parallel downloads.
	DefaultConcurrency = 4

	// DefaultMapFileName is the name of the URL-to-filename log.
	DefaultMapFileName = "url_map.tsv"
)

// Fetcher retrieves one page for the Archiver.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Archiver downloads pages into an output directory.
type Archiver struct {
	fetcher     Fetcher
	outputDir   string
	concurrency int
	mapFileName string
	logger      *slog.Logger

	// inflight coalesces URLs that sanitize to the same file.
	inflight singleflight.Group
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithConcurrency sets the number of parallel downloads.
func WithConcurrency(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithMapFileName sets the name of the URL-to-filename log inside the output
// directory. An empty name disables the log.
func WithMapFileName(name string) Option {
	return func(a *Archiver) {
		a.mapFileName = name
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// New creates an Archiver that writes into outputDir.
func New(fetcher Fetcher, outputDir string, opts ...Option) (*Archiver, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	a := &Archiver{
		fetcher:     fetcher,
		outputDir:   outputDir,
		concurrency: DefaultConcurrency,
		mapFileName: DefaultMapFileName,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// OutputDir returns the directory files are written to.
func (a *Archiver) OutputDir() string {
	return a.outputDir
}

// Archive saves every URL in urls and returns what happened to each.
//
// Only an unusable output directory is an error. Download and write failures
// are counted in the result and logged as warnings. If ctx is cancelled the
// URLs not yet started are reported as failed.
func (a *Archiver) Archive(ctx context.Context, urls []string) (*model.ArchiveResult, error) {
	if err := os.MkdirAll(a.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputDir, a.outputDir, err)
	}

	entries := make([]model.ArchiveEntry, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			entries[i] = a.archiveOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // archiveOne never returns an error

	result := &model.ArchiveResult{
		OutputDir: a.outputDir,
		Entries:   make([]model.ArchiveEntry, 0, len(entries)),
	}
	for _, e := range entries {
		result.Add(e)
	}
	result.Sort()

	if a.mapFileName != "" {
		mapPath := filepath.Join(a.outputDir, a.mapFileName)
		merged, err := MergeMap(mapPath, a.outputDir, result.Mapping())
		if err != nil {
			a.logger.Warn("failed to write URL map", "path", mapPath, "error", err)
		} else {
			result.MapFile = mapPath
			a.logger.Debug("URL map updated", "path", mapPath, "lines", len(merged))
		}
	}

	a.logger.Info("archive finished",
		"output_dir", a.outputDir,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}

// archiveOne handles a single URL.
func (a *Archiver) archiveOne(ctx context.Context, rawURL string) model.ArchiveEntry {
	if !isHTTP(rawURL) {
		return model.ArchiveEntry{URL: rawURL, Status: model.ArchiveSkippedScheme}
	}

	name := FileName(rawURL)
	if IsImage(rawURL) {
		a.logger.Debug("skipping image", "url", rawURL)
		return model.ArchiveEntry{URL: rawURL, FileName: name, Status: model.ArchiveSkippedImage}
	}

	if ctx.Err() != nil {
		return model.ArchiveEntry{URL: rawURL, FileName: name, Status: model.ArchiveFailed, Error: ctx.Err().Error()}
	}

	v, _, _ := a.inflight.Do(name, func() (any, error) { //nolint:errcheck // the entry carries the error
		return a.download(ctx, rawURL, name), nil
	})

	entry, _ := v.(model.ArchiveEntry) //nolint:errcheck // download always returns an ArchiveEntry
	if entry.URL != rawURL {
		return sharedEntry(entry, rawURL)
	}
	return entry
}

// sharedEntry is the entry for rawURL when another URL with the same file
// name was downloaded in its place. The file exists only if that download
// left one behind.
func sharedEntry(leader model.ArchiveEntry, rawURL string) model.ArchiveEntry {
	entry := model.ArchiveEntry{URL: rawURL, FileName: leader.FileName}
	if leader.HasFile() {
		entry.Status = model.ArchiveExists
		return entry
	}
	entry.Status = model.ArchiveFailed
	entry.Error = leader.Error
	if entry.Error == "" {
		entry.Error = "shared download for " + leader.URL + " failed"
	}
	return entry
}

// download fetches rawURL into name unless the file already exists.
func (a *Archiver) download(ctx context.Context, rawURL, name string) model.ArchiveEntry {
	entry := model.ArchiveEntry{URL: rawURL, FileName: name}
	path := filepath.Join(a.outputDir, name)

	if _, err := os.Stat(path); err == nil {
		a.logger.Debug("already archived", "url", rawURL, "path", path)
		entry.Status = model.ArchiveExists
		return entry
	}

	resp, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		a.logger.Warn("download failed", "url", rawURL, "error", err)
		entry.Status = model.ArchiveFailed
		entry.Error = err.Error()
		return entry
	}

	if err := writeFileAtomic(path, resp.Body); err != nil {
		a.logger.Warn("write failed", "url", rawURL, "path", path, "error", err)
		entry.Status = model.ArchiveFailed
		entry.Error = err.Error()
		return entry
	}

	sum := sha3.Sum256(resp.Body)
	entry.Status = model.ArchiveSaved
	entry.Bytes = len(resp.Body)
	entry.Digest = hex.EncodeToString(sum[:])
	entry.Title = pageTitle(resp.Body)

	a.logger.Debug("saved", "url", rawURL, "path", path, "bytes", entry.Bytes)
	return entry
}

// writeFileAtomic writes data to a temp file and renames it into place so a
// half-written page never looks archived.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sitegrab-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return err
	}
	return nil
}

// pageTitle returns the trimmed <title> text, or "" if there is none.
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
