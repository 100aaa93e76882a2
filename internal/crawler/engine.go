package crawler

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitegrab/internal/fetch"
	"github.com/nao1215/sitegrab/internal/model"
)

// Fetcher retrieves one page for the Engine.
// Any error is treated as "fetch failed"; the Engine does not look inside it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*fetch.Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*fetch.Response, error) {
	return f(ctx, rawURL)
}

// Engine crawls a site from a seed URL.
// An Engine may be reused for several crawls, one at a time.
type Engine struct {
	// fetcher performs the network requests.
	fetcher Fetcher

	// extractor lists the links of a fetched page.
	extractor *Extractor

	// maxDepth is the ceiling for inside URLs. The seed is depth 1.
	maxDepth int

	// outsideDepth is the ceiling for outside URLs.
	outsideDepth int

	// workers is the number of goroutines expanding the frontier.
	workers int

	// maxPages caps the number of fetches; 0 means no cap.
	maxPages int

	// filter holds the ignore/follow path patterns.
	filter pathFilter

	// logger for structured logging.
	logger *slog.Logger

	// current is the state of the running or last finished crawl.
	// Snapshot reads it without taking any engine lock.
	current atomic.Pointer[crawlState]

	// running guards against concurrent Run calls.
	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the depth ceiling for inside URLs.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithOutsideDepth sets the depth ceiling for outside URLs.
func WithOutsideDepth(depth int) Option {
	return func(e *Engine) {
		e.outsideDepth = depth
	}
}

// WithWorkers sets how many pages may be fetched at once.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxPages caps the number of fetches per crawl. 0 disables the cap.
// Entries left over when the cap is hit stay PENDING in the result.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxPages = n
		}
	}
}

// WithIgnorePatterns sets URL path patterns that never enter the frontier.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts the frontier to URLs whose path matches one of
// the patterns. The seed is always crawled.
func WithFollowPatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.follow = patterns
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine that fetches pages with fetcher.
// Defaults: depth 2 inside, 1 outside, one worker, no page cap.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:      fetcher,
		extractor:    NewExtractor(),
		maxDepth:     2,
		outsideDepth: 1,
		workers:      1,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// frontierEntry is a (URL, depth) pair awaiting expansion.
type frontierEntry struct {
	url   string
	depth int
}

// crawlState is everything one Run mutates.
type crawlState struct {
	policy  *Policy
	visited *VisitedSet

	// mu protects frontier, inFlight, outcomes and order. It is never held
	// across a fetch.
	mu       sync.Mutex
	cond     *sync.Cond
	frontier []frontierEntry
	inFlight int
	outcomes map[string]*model.PageOutcome
	order    []string

	fetched       atomic.Int64
	expanded      atomic.Int64
	failed        atomic.Int64
	depthExceeded atomic.Int64
	pending       atomic.Int64
}

func newCrawlState(policy *Policy) *crawlState {
	st := &crawlState{
		policy:   policy,
		visited:  NewVisitedSet(),
		frontier: make([]frontierEntry, 0),
		outcomes: make(map[string]*model.PageOutcome),
		order:    make([]string, 0),
	}
	st.cond = sync.NewCond(&st.mu)
	return st
}

// Run crawls from seed until the frontier is exhausted or ctx is cancelled.
//
// On cancellation no new fetch is started, in-flight fetches finish or time
// out, and Run returns the partial Result together with ctx.Err(). The
// partial Result is always valid.
func (e *Engine) Run(ctx context.Context, seed string) (*Result, error) {
	target, err := NewTarget(seed)
	if err != nil {
		return nil, err
	}

	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	st := newCrawlState(NewPolicy(target, e.maxDepth, e.outsideDepth))
	e.current.Store(st)

	startedAt := time.Now()
	e.logger.Info("crawl started",
		"seed", target.String(),
		"domain", target.Authority(),
		"max_depth", e.maxDepth,
		"outside_depth", e.outsideDepth,
		"workers", e.workers,
	)

	st.visited.Add(target.String())
	st.mu.Lock()
	st.record(target.String(), 1, "")
	st.push([]frontierEntry{{url: target.String(), depth: 1}})
	st.mu.Unlock()

	// Wake idle workers so they notice cancellation.
	stop := context.AfterFunc(ctx, func() {
		st.mu.Lock()
		st.cond.Broadcast()
		st.mu.Unlock()
	})
	defer stop()

	var wg sync.WaitGroup
	for range e.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(ctx, st)
		}()
	}
	wg.Wait()

	result := st.freeze(target, startedAt, ctx.Err() != nil)

	e.logger.Info("crawl finished",
		"seed", target.String(),
		"discovered", result.stats.Discovered,
		"fetched", result.stats.Fetched,
		"failed", result.stats.Failed,
		"depth_exceeded", result.stats.DepthExceeded,
		"cancelled", result.Cancelled,
		"elapsed", result.FinishedAt.Sub(result.StartedAt),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Snapshot returns the counters of the running or last finished crawl.
// It never mutates engine state and may be called from any goroutine.
func (e *Engine) Snapshot() model.CrawlStats {
	st := e.current.Load()
	if st == nil {
		return model.CrawlStats{}
	}
	return st.stats()
}

// work is one worker's loop.
func (e *Engine) work(ctx context.Context, st *crawlState) {
	for {
		entry, ok := st.next(ctx)
		if !ok {
			return
		}
		e.process(ctx, st, entry)
		st.done()
	}
}

// process drives one entry to a terminal state.
func (e *Engine) process(ctx context.Context, st *crawlState, entry frontierEntry) {
	class := st.policy.Classify(entry.url)

	if !class.Allows(entry.depth) {
		st.finish(entry.url, class.Class, model.StateDepthExceeded, 0, "")
		st.depthExceeded.Add(1)
		e.logger.Debug("depth ceiling reached",
			"url", entry.url,
			"depth", entry.depth,
			"class", class.Class,
			"ceiling", class.Ceiling,
		)
		return
	}

	// Cancelled or over budget: the entry stays PENDING.
	if ctx.Err() != nil {
		st.pending.Add(1)
		return
	}
	if !st.claimFetch(e.maxPages) {
		st.pending.Add(1)
		e.logger.Debug("page budget exhausted", "url", entry.url)
		return
	}

	st.setState(entry.url, class.Class, model.StateFetching)
	e.logger.Debug("fetching", "url", entry.url, "depth", entry.depth, "class", class.Class)

	resp, err := e.fetcher.Fetch(ctx, entry.url)
	if err != nil {
		st.finish(entry.url, class.Class, model.StateFailed, 0, err.Error())
		st.failed.Add(1)
		e.logger.Warn("fetch failed", "url", entry.url, "error", err)
		return
	}

	base := entry.url
	if resp.FinalURL != "" {
		base = resp.FinalURL
	}
	links, err := e.extractor.Extract(bytes.NewReader(resp.Body), base)
	if err != nil {
		e.logger.Debug("link extraction failed", "url", entry.url, "error", err)
		links = nil
	}

	children := make([]frontierEntry, 0, len(links))
	for _, link := range links {
		canonical, ok := e.admit(link)
		if !ok {
			continue
		}
		if !st.visited.Add(canonical) {
			continue
		}
		children = append(children, frontierEntry{url: canonical, depth: entry.depth + 1})
	}

	st.mu.Lock()
	for _, child := range children {
		st.record(child.url, child.depth, entry.url)
	}
	st.push(children)
	st.mu.Unlock()

	st.finish(entry.url, class.Class, model.StateExpanded, len(links), "")
	st.expanded.Add(1)
}

// admit canonicalizes a candidate link and reports whether it may enter the
// frontier. Only http and https URLs are crawled and the fragment is dropped
// because it never changes the fetched document.
func (e *Engine) admit(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""

	if !e.filter.allows(u) {
		return "", false
	}
	return u.String(), true
}

// next blocks until an entry is available and claims it.
// It returns false once the frontier is empty with nothing in flight, or
// when ctx is cancelled.
func (st *crawlState) next(ctx context.Context) (frontierEntry, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for len(st.frontier) == 0 && st.inFlight > 0 && ctx.Err() == nil {
		st.cond.Wait()
	}
	if ctx.Err() != nil || len(st.frontier) == 0 {
		return frontierEntry{}, false
	}

	last := len(st.frontier) - 1
	entry := st.frontier[last]
	st.frontier = st.frontier[:last]
	st.inFlight++
	st.pending.Add(-1)
	return entry, true
}

// done releases a claimed entry and wakes waiting workers.
func (st *crawlState) done() {
	st.mu.Lock()
	st.inFlight--
	st.cond.Broadcast()
	st.mu.Unlock()
}

// push appends entries in reverse so the first child is popped first.
// Callers hold st.mu.
func (st *crawlState) push(entries []frontierEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		st.frontier = append(st.frontier, entries[i])
	}
	st.pending.Add(int64(len(entries)))
	if len(entries) > 0 {
		st.cond.Broadcast()
	}
}

// record adds a PENDING outcome for a newly discovered URL.
// Callers hold st.mu.
func (st *crawlState) record(u string, depth int, parent string) {
	st.outcomes[u] = &model.PageOutcome{
		URL:    u,
		Depth:  depth,
		Class:  st.policy.Classify(u).Class,
		State:  model.StatePending,
		Parent: parent,
	}
	st.order = append(st.order, u)
}

// claimFetch counts a fetch against limit and reports whether it is allowed.
func (st *crawlState) claimFetch(limit int) bool {
	n := st.fetched.Add(1)
	if limit > 0 && n > int64(limit) {
		st.fetched.Add(-1)
		return false
	}
	return true
}

func (st *crawlState) setState(u string, class model.Classification, state model.EntryState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if o, ok := st.outcomes[u]; ok {
		o.Class = class
		o.State = state
	}
}

func (st *crawlState) finish(u string, class model.Classification, state model.EntryState, links int, errMsg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if o, ok := st.outcomes[u]; ok {
		o.Class = class
		o.State = state
		o.Links = links
		o.Error = errMsg
	}
}

func (st *crawlState) stats() model.CrawlStats {
	return model.CrawlStats{
		Discovered:    st.visited.Len(),
		Fetched:       int(st.fetched.Load()),
		Expanded:      int(st.expanded.Load()),
		Failed:        int(st.failed.Load()),
		DepthExceeded: int(st.depthExceeded.Load()),
		Pending:       int(st.pending.Load()),
	}
}

// freeze copies the state into an immutable Result.
func (st *crawlState) freeze(target Target, startedAt time.Time, cancelled bool) *Result {
	st.mu.Lock()
	defer st.mu.Unlock()

	outcomes := make([]model.PageOutcome, 0, len(st.order))
	for _, u := range st.order {
		outcomes = append(outcomes, *st.outcomes[u])
	}

	return &Result{
		Seed:       target.String(),
		Domain:     target.Authority(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Cancelled:  cancelled,
		urls:       st.visited.Sorted(),
		outcomes:   outcomes,
		stats:      st.stats(),
	}
}
