package crawler

import (
	"sort"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// Result is the frozen outcome of one crawl.
// It is safe for concurrent reads; accessors return copies.
type Result struct {
	// Seed is the normalized seed URL.
	Seed string

	// Domain is the seed authority used for classification.
	Domain string

	// StartedAt and FinishedAt bound the crawl.
	StartedAt  time.Time
	FinishedAt time.Time

	// Cancelled is true when the crawl stopped before the frontier emptied.
	Cancelled bool

	urls     []string
	outcomes []model.PageOutcome
	stats    model.CrawlStats
}

// URLs returns the visited set in lexical order.
func (r *Result) URLs() []string {
	out := make([]string, len(r.urls))
	copy(out, r.urls)
	return out
}

// Contains reports whether u is in the visited set.
func (r *Result) Contains(u string) bool {
	i := sort.SearchStrings(r.urls, u)
	return i < len(r.urls) && r.urls[i] == u
}

// Outcomes returns one record per discovered URL in discovery order.
func (r *Result) Outcomes() []model.PageOutcome {
	out := make([]model.PageOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Outcome returns the record for u.
func (r *Result) Outcome(u string) (model.PageOutcome, bool) {
	for _, o := range r.outcomes {
		if o.URL == u {
			return o, true
		}
	}
	return model.PageOutcome{}, false
}

// Stats returns the final counters.
func (r *Result) Stats() model.CrawlStats {
	return r.stats
}

// URLsByClass returns the visited URLs with the given classification, in
// lexical order.
func (r *Result) URLsByClass(class model.Classification) []string {
	out := make([]string, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		if o.Class == class {
			out = append(out, o.URL)
		}
	}
	sort.Strings(out)
	return out
}
