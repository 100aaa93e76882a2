// Package progress prints periodic crawl counters while a crawl runs.
//
// The reporter only reads counters through Source.Snapshot. It holds no
// reference to the frontier and never changes crawl state, so stopping or
// slowing it has no effect on the crawl.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// DefaultInterval is how often a line is printed.
const DefaultInterval = time.Second

// Source exposes read-only crawl counters. crawler.Engine implements it.
type Source interface {
	Snapshot() model.CrawlStats
}

// Reporter writes one progress line per interval.
type Reporter struct {
	source   Source
	w        io.Writer
	interval time.Duration
	label    string
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithInterval sets the time between two lines. Non-positive values are
// ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLabel prefixes every line, usually with the seed URL.
func WithLabel(label string) Option {
	return func(r *Reporter) {
		r.label = label
	}
}

// New creates a Reporter that reads source and writes to w.
func New(source Source, w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		source:   source,
		w:        w,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start prints lines until ctx is done or the returned stop function is
// called. stop prints a final line and waits for the goroutine to exit; it
// is safe to call more than once.
func (r *Reporter) Start(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				r.print()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			r.print()
		})
	}
}

// print writes the current counters. Write errors are ignored.
func (r *Reporter) print() {
	_, _ = fmt.Fprintln(r.w, r.Line(r.source.Snapshot()))
}

// Line formats stats as a single progress line.
func (r *Reporter) Line(stats model.CrawlStats) string {
	line := fmt.Sprintf("discovered: %d | fetched: %d | failed: %d | depth exceeded: %d | pending: %d",
		stats.Discovered, stats.Fetched, stats.Failed, stats.DepthExceeded, stats.Pending)
	if r.label != "" {
		return r.label + " " + line
	}
	return line
}
