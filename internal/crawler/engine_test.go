package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitegrab/internal/fetch"
	"github.com/nao1215/sitegrab/internal/model"
)

// fakeSite serves pages from memory and records every fetch.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string][]string
	failing map[string]bool
	fetches map[string]int
	order   []string
	delay   time.Duration
}

func newFakeSite(pages map[string][]string) *fakeSite {
	return &fakeSite{
		pages:   pages,
		failing: make(map[string]bool),
		fetches: make(map[string]int),
	}
}

func (s *fakeSite) Fetch(ctx context.Context, rawURL string) (*fetch.Response, error) {
	s.mu.Lock()
	s.fetches[rawURL]++
	s.order = append(s.order, rawURL)
	failing := s.failing[rawURL]
	links, ok := s.pages[rawURL]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, &fetch.Error{URL: rawURL, Err: ctx.Err()}
		}
	}

	if failing {
		return nil, &fetch.Error{URL: rawURL, Err: context.DeadlineExceeded}
	}
	if !ok {
		return nil, &fetch.Error{URL: rawURL, StatusCode: 404, Err: fetch.ErrStatus}
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")

	return &fetch.Response{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(b.String())}, nil
}

func (s *fakeSite) count(u string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[u]
}

func (s *fakeSite) fetchOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestEngineScenario crawls the docs example with separate inside and
// outside ceilings.
func TestEngineScenario(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com/docs":   {"https://example.com/docs/a", "https://other.org/x"},
		"https://example.com/docs/a": {"/docs/b", "https://other.org/y"},
		"https://other.org/x":        {"https://other.org/z"},
	})

	engine := NewEngine(site, WithMaxDepth(2), WithOutsideDepth(1), WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com/docs/")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantURLs := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
		"https://example.com/docs/b",
		"https://other.org/x",
		"https://other.org/y",
	}
	if got := result.URLs(); !slices.Equal(got, wantURLs) {
		t.Errorf("URLs() =\n%v\nwant\n%v", got, wantURLs)
	}

	states := map[string]model.EntryState{
		"https://example.com/docs":   model.StateExpanded,
		"https://example.com/docs/a": model.StateExpanded,
		"https://example.com/docs/b": model.StateDepthExceeded,
		"https://other.org/x":        model.StateDepthExceeded,
		"https://other.org/y":        model.StateDepthExceeded,
	}
	for u, want := range states {
		o, ok := result.Outcome(u)
		if !ok {
			t.Errorf("Outcome(%q) missing", u)
			continue
		}
		if o.State != want {
			t.Errorf("Outcome(%q).State = %v, want %v", u, o.State, want)
		}
	}

	if site.count("https://other.org/x") != 0 {
		t.Error("outside URL beyond its ceiling was fetched")
	}
	if result.Contains("https://other.org/z") {
		t.Error("links of an unexpanded outside page were followed")
	}

	x, _ := result.Outcome("https://other.org/x")
	if x.Class != model.ClassOutside || x.Depth != 2 || x.Parent != "https://example.com/docs" {
		t.Errorf("Outcome(other.org/x) = %+v", x)
	}

	stats := result.Stats()
	if stats.Discovered != 5 || stats.Fetched != 2 || stats.Expanded != 2 || stats.DepthExceeded != 3 || stats.Pending != 0 {
		t.Errorf("Stats() = %+v", stats)
	}

	if got := result.URLsByClass(model.ClassOutside); !slices.Equal(got, []string{"https://other.org/x", "https://other.org/y"}) {
		t.Errorf("URLsByClass(outside) = %v", got)
	}
}

// TestEngineDepthFirstOrder checks that one worker expands pages in document
// order, depth first.
func TestEngineDepthFirstOrder(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com":    {"/a", "/b"},
		"https://example.com/a":  {"/a1"},
		"https://example.com/b":  {},
		"https://example.com/a1": {},
	})

	engine := NewEngine(site, WithMaxDepth(5), WithLogger(quietLogger()))
	if _, err := engine.Run(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"https://example.com",
		"https://example.com/a",
		"https://example.com/a1",
		"https://example.com/b",
	}
	if got := site.fetchOrder(); !slices.Equal(got, want) {
		t.Errorf("fetch order = %v, want %v", got, want)
	}
}

// TestEngineCycles checks that a cyclic link graph terminates with every
// URL fetched once.
func TestEngineCycles(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com":   {"/a", "/b", "/", "https://example.com"},
		"https://example.com/a": {"/b", "https://example.com", "/a#section"},
		"https://example.com/b": {"/a", "/b"},
		"https://example.com/":  {"/a"},
	})

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			s := newFakeSite(site.pages)
			engine := NewEngine(s, WithMaxDepth(50), WithWorkers(workers), WithLogger(quietLogger()))
			result, err := engine.Run(context.Background(), "https://example.com")
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			for _, u := range result.URLs() {
				if n := s.count(u); n != 1 {
					t.Errorf("%s fetched %d times, want 1", u, n)
				}
			}
			if result.Contains("https://example.com/a#section") {
				t.Error("fragment was not stripped")
			}
			if got := result.Stats().Discovered; got != 4 {
				t.Errorf("Discovered = %d, want 4", got)
			}
		})
	}
}

// TestEngineFetchFailure checks that a failed page is recorded once and does
// not stop the crawl.
func TestEngineFetchFailure(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com":        {"/broken", "/ok"},
		"https://example.com/ok":     {"/broken", "/more"},
		"https://example.com/more":   {},
		"https://example.com/broken": {"/never"},
	})
	site.failing["https://example.com/broken"] = true

	engine := NewEngine(site, WithMaxDepth(4), WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, u := range []string{"https://example.com/ok", "https://example.com/more", "https://example.com/broken"} {
		if !result.Contains(u) {
			t.Errorf("result is missing %s", u)
		}
	}
	if result.Contains("https://example.com/never") {
		t.Error("links of a failed page were followed")
	}
	if n := site.count("https://example.com/broken"); n != 1 {
		t.Errorf("broken page fetched %d times, want 1", n)
	}

	o, _ := result.Outcome("https://example.com/broken")
	if o.State != model.StateFailed || o.Error == "" {
		t.Errorf("Outcome(broken) = %+v", o)
	}
	if result.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Stats().Failed)
	}
}

// TestEngineNonHTTPLinks checks that only http and https links are admitted.
func TestEngineNonHTTPLinks(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com": {"mailto:me@example.com", "javascript:void(0)", "ftp://example.com/f", "tel:123", "/page"},
	})

	engine := NewEngine(site, WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"https://example.com", "https://example.com/page"}
	if got := result.URLs(); !slices.Equal(got, want) {
		t.Errorf("URLs() = %v, want %v", got, want)
	}
}

// TestEnginePatterns checks ignore and follow patterns.
func TestEnginePatterns(t *testing.T) {
	t.Parallel()

	pages := map[string][]string{
		"https://example.com": {"/docs/a", "/admin/users", "/files/report.pdf", "/blog/post"},
	}

	t.Run("ignore", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(newFakeSite(pages),
			WithIgnorePatterns([]string{"/admin/*", "*.pdf"}),
			WithLogger(quietLogger()))
		result, err := engine.Run(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		want := []string{"https://example.com", "https://example.com/blog/post", "https://example.com/docs/a"}
		if got := result.URLs(); !slices.Equal(got, want) {
			t.Errorf("URLs() = %v, want %v", got, want)
		}
	})

	t.Run("follow", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(newFakeSite(pages),
			WithFollowPatterns([]string{"/docs/*"}),
			WithLogger(quietLogger()))
		result, err := engine.Run(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		want := []string{"https://example.com", "https://example.com/docs/a"}
		if got := result.URLs(); !slices.Equal(got, want) {
			t.Errorf("URLs() = %v, want %v", got, want)
		}
	})
}

// TestEngineMaxPages checks that the page budget leaves the rest pending.
func TestEngineMaxPages(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com":   {"/a", "/b", "/c"},
		"https://example.com/a": {},
		"https://example.com/b": {},
		"https://example.com/c": {},
	})

	engine := NewEngine(site, WithMaxPages(2), WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := result.Stats()
	if stats.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", stats.Fetched)
	}
	if stats.Discovered != 4 {
		t.Errorf("Discovered = %d, want 4", stats.Discovered)
	}
	if stats.Pending != 2 {
		t.Errorf("Pending = %d, want 2", stats.Pending)
	}
	for _, u := range []string{"https://example.com/b", "https://example.com/c"} {
		if o, _ := result.Outcome(u); o.State != model.StatePending {
			t.Errorf("Outcome(%q).State = %v, want PENDING", u, o.State)
		}
	}
}

// TestEngineCancel checks that cancelling returns a valid partial result.
func TestEngineCancel(t *testing.T) {
	t.Parallel()

	pages := map[string][]string{"https://example.com": {}}
	var links []string
	for i := range 50 {
		u := fmt.Sprintf("/p%d", i)
		links = append(links, u)
		pages["https://example.com"+u] = []string{}
	}
	pages["https://example.com"] = links

	site := newFakeSite(pages)
	site.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var fetched atomic.Int64
	fetcher := FetcherFunc(func(ctx context.Context, rawURL string) (*fetch.Response, error) {
		if fetched.Add(1) == 3 {
			cancel()
		}
		return site.Fetch(ctx, rawURL)
	})

	engine := NewEngine(fetcher, WithMaxDepth(3), WithWorkers(2), WithLogger(quietLogger()))
	result, err := engine.Run(ctx, "https://example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("Run() returned nil result on cancellation")
	}
	if !result.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if !result.Contains("https://example.com") {
		t.Error("partial result is missing the seed")
	}
	if got := int(fetched.Load()); got >= 51 {
		t.Errorf("fetched %d pages after cancellation", got)
	}
	if result.Stats().Pending == 0 {
		t.Error("Pending = 0, want leftover entries")
	}
}

// TestEngineWorkersNoDuplicates runs a dense graph with many workers.
func TestEngineWorkersNoDuplicates(t *testing.T) {
	t.Parallel()

	pages := make(map[string][]string)
	for i := range 30 {
		var links []string
		for j := range 30 {
			if i != j {
				links = append(links, fmt.Sprintf("/n%d", j))
			}
		}
		pages[fmt.Sprintf("https://example.com/n%d", i)] = links
	}
	pages["https://example.com"] = []string{"/n0"}

	site := newFakeSite(pages)
	site.delay = time.Millisecond

	engine := NewEngine(site, WithMaxDepth(10), WithWorkers(8), WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := result.Stats().Discovered; got != 31 {
		t.Errorf("Discovered = %d, want 31", got)
	}
	for _, u := range result.URLs() {
		if n := site.count(u); n != 1 {
			t.Errorf("%s fetched %d times", u, n)
		}
	}
}

// TestEngineRedirectBase checks that links resolve against the final URL.
func TestEngineRedirectBase(t *testing.T) {
	t.Parallel()

	fetcher := FetcherFunc(func(_ context.Context, rawURL string) (*fetch.Response, error) {
		if rawURL == "https://example.com/old" {
			return &fetch.Response{
				URL:      rawURL,
				FinalURL: "https://example.com/new/",
				Body:     []byte(`<a href="child">c</a>`),
			}, nil
		}
		return &fetch.Response{URL: rawURL, FinalURL: rawURL}, nil
	})

	engine := NewEngine(fetcher, WithLogger(quietLogger()))
	result, err := engine.Run(context.Background(), "https://example.com/old")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Contains("https://example.com/new/child") {
		t.Errorf("URLs() = %v, want https://example.com/new/child", result.URLs())
	}
}

// TestEngineInvalidSeed checks that a bad seed fails before any fetch.
func TestEngineInvalidSeed(t *testing.T) {
	t.Parallel()

	called := false
	engine := NewEngine(FetcherFunc(func(context.Context, string) (*fetch.Response, error) {
		called = true
		return nil, errors.New("unexpected")
	}))

	if _, err := engine.Run(context.Background(), "not a url"); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("Run() error = %v, want ErrInvalidSeed", err)
	}
	if called {
		t.Error("fetcher was called for an invalid seed")
	}
}

// TestEngineSnapshot checks that Snapshot is readable during and after a run.
func TestEngineSnapshot(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]string{
		"https://example.com":   {"/a"},
		"https://example.com/a": {},
	})
	site.delay = 5 * time.Millisecond

	engine := NewEngine(site, WithLogger(quietLogger()))
	if got := engine.Snapshot(); got != (model.CrawlStats{}) {
		t.Errorf("Snapshot() before Run = %+v, want zero", got)
	}

	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = engine.Snapshot()
			time.Sleep(time.Millisecond)
		}
	}()

	result, err := engine.Run(context.Background(), "https://example.com")
	close(stop)
	<-polled
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := engine.Snapshot(); got != result.Stats() {
		t.Errorf("Snapshot() = %+v, want %+v", got, result.Stats())
	}
}
