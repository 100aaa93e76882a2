package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/nao1215/sitegrab/internal/archive"
	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/crawler"
	"github.com/nao1215/sitegrab/internal/fetch"
	"github.com/nao1215/sitegrab/internal/group"
	"github.com/nao1215/sitegrab/internal/model"
	"github.com/nao1215/sitegrab/internal/progress"
)

// CrawlStep discovers the site from the run's seed and fills URLs, Outcomes
// and Stats.
type CrawlStep struct {
	// engine performs the crawl.
	engine *crawler.Engine

	// maxDepth and outsideDepth are copied into the run record.
	maxDepth     int
	outsideDepth int

	// progressOut receives progress lines when set.
	progressOut io.Writer

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*crawlStepConfig)

// crawlStepConfig collects options before the engine is built.
type crawlStepConfig struct {
	maxDepth       int
	outsideDepth   int
	workers        int
	maxPages       int
	ignorePatterns []string
	followPatterns []string
	progressOut    io.Writer
	logger         *slog.Logger
}

// WithCrawlMaxDepth sets the depth ceiling for inside URLs.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.maxDepth = depth
	}
}

// WithCrawlOutsideDepth sets the depth ceiling for outside URLs.
func WithCrawlOutsideDepth(depth int) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.outsideDepth = depth
	}
}

// WithCrawlWorkers sets the number of concurrent crawl fetches.
func WithCrawlWorkers(n int) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.workers = n
	}
}

// WithCrawlMaxPages caps the number of crawl fetches.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.maxPages = maxPages
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.followPatterns = patterns
	}
}

// WithCrawlProgress prints progress lines to w while the crawl runs.
func WithCrawlProgress(w io.Writer) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.progressOut = w
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.logger = logger
	}
}

// NewCrawlStep creates a crawl step that fetches pages with fetcher.
func NewCrawlStep(fetcher crawler.Fetcher, opts ...CrawlStepOption) *CrawlStep {
	cfg := &crawlStepConfig{
		maxDepth:     config.DefaultMaxDepth,
		outsideDepth: config.DefaultOutsideDepth,
		workers:      config.DefaultWorkers,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	engine := crawler.NewEngine(fetcher,
		crawler.WithMaxDepth(cfg.maxDepth),
		crawler.WithOutsideDepth(cfg.outsideDepth),
		crawler.WithWorkers(cfg.workers),
		crawler.WithMaxPages(cfg.maxPages),
		crawler.WithIgnorePatterns(cfg.ignorePatterns),
		crawler.WithFollowPatterns(cfg.followPatterns),
		crawler.WithLogger(cfg.logger),
	)

	return &CrawlStep{
		engine:       engine,
		maxDepth:     cfg.maxDepth,
		outsideDepth: cfg.outsideDepth,
		progressOut:  cfg.progressOut,
		logger:       cfg.logger,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Engine returns the engine so callers can read Snapshot.
func (s *CrawlStep) Engine() *crawler.Engine {
	return s.engine
}

// Do crawls run.Seed. A cancelled crawl still fills run with the partial
// result and returns ctx.Err().
func (s *CrawlStep) Do(ctx context.Context, run *model.Run) error {
	run.MaxDepth = s.maxDepth
	run.OutsideDepth = s.outsideDepth

	if s.progressOut != nil {
		stop := progress.New(s.engine, s.progressOut, progress.WithLabel("["+run.Seed+"]")).Start(ctx)
		defer stop()
	}

	result, err := s.engine.Run(ctx, run.Seed)
	if result == nil {
		return err
	}

	run.Seed = result.Seed
	run.Domain = result.Domain
	run.URLs = result.URLs()
	run.Outcomes = result.Outcomes()
	run.Stats = result.Stats()
	if result.Cancelled {
		run.Cancelled = true
	}

	return err
}

// SameDomainFilterStep drops URLs outside the seed's site from run.URLs so
// that only inside pages are archived. Outcomes are left untouched.
type SameDomainFilterStep struct {
	logger *slog.Logger
}

// NewSameDomainFilterStep creates the filter step.
func NewSameDomainFilterStep(logger *slog.Logger) *SameDomainFilterStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SameDomainFilterStep{logger: logger}
}

// Name returns the step name.
func (s *SameDomainFilterStep) Name() string {
	return "same_domain_filter"
}

// Do keeps the URLs whose outcome is classified inside.
func (s *SameDomainFilterStep) Do(_ context.Context, run *model.Run) error {
	inside := make(map[string]struct{}, len(run.Outcomes))
	for _, o := range run.Outcomes {
		if o.Class == model.ClassInside {
			inside[o.URL] = struct{}{}
		}
	}

	kept := make([]string, 0, len(run.URLs))
	for _, u := range run.URLs {
		if _, ok := inside[u]; ok {
			kept = append(kept, u)
		}
	}

	s.logger.Debug("filtered outside URLs",
		"seed", run.Seed,
		"before", len(run.URLs),
		"after", len(kept),
	)
	run.URLs = kept
	return nil
}

// ArchiveStep saves every URL in run.URLs and fills run.Archive.
type ArchiveStep struct {
	archiver *archive.Archiver
}

// NewArchiveStep creates an archive step.
func NewArchiveStep(archiver *archive.Archiver) *ArchiveStep {
	return &ArchiveStep{archiver: archiver}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do archives run.URLs. Per-URL failures are counted, not returned.
func (s *ArchiveStep) Do(ctx context.Context, run *model.Run) error {
	result, err := s.archiver.Archive(ctx, run.URLs)
	if err != nil {
		return err
	}
	run.Archive = result
	return ctx.Err()
}

// GroupStep merges the archived pages into combined documents by URL prefix.
type GroupStep struct {
	combiner *group.Combiner
	mapFile  string
	parents  int
	logger   *slog.Logger
}

// NewGroupStep creates a group step. mapFile is read when the archive step
// did not report one.
func NewGroupStep(combiner *group.Combiner, mapFile string, parents int, logger *slog.Logger) *GroupStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupStep{
		combiner: combiner,
		mapFile:  mapFile,
		parents:  parents,
		logger:   logger,
	}
}

// Name returns the step name.
func (s *GroupStep) Name() string {
	return "group"
}

// groupLocks holds one mutex per combined output directory so seeds of a
// batch that share it regroup one at a time from the merged map.
var groupLocks sync.Map

func lockDir(dir string) func() {
	key := dir
	if abs, err := filepath.Abs(dir); err == nil {
		key = abs
	}
	v, _ := groupLocks.LoadOrStore(key, &sync.Mutex{})
	mu, _ := v.(*sync.Mutex) //nolint:errcheck // only *sync.Mutex is stored
	mu.Lock()
	return mu.Unlock
}

// Do reads the URL map, groups it and writes the combined documents.
// The map covers every seed archived into the directory, so the combined
// documents do too.
func (s *GroupStep) Do(ctx context.Context, run *model.Run) error {
	mapFile := s.mapFile
	if run.Archive != nil && run.Archive.MapFile != "" {
		mapFile = run.Archive.MapFile
	}

	unlock := lockDir(s.combiner.OutputDir())
	defer unlock()

	mappings, err := group.ReadMap(mapFile, s.logger)
	if err != nil {
		return err
	}

	groups, err := group.GroupByPrefix(mappings, s.parents)
	if err != nil {
		return err
	}

	summaries, err := s.combiner.Combine(ctx, groups)
	run.Groups = summaries
	return err
}

// Recorder stores finished runs. database.CrawlDB implements it.
type Recorder interface {
	SaveRun(ctx context.Context, run *model.Run) (int64, error)
}

// RecordStep stores the run in the history database.
type RecordStep struct {
	recorder Recorder
}

// NewRecordStep creates a record step.
func NewRecordStep(recorder Recorder) *RecordStep {
	return &RecordStep{recorder: recorder}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do saves run.
func (s *RecordStep) Do(ctx context.Context, run *model.Run) error {
	if _, err := s.recorder.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds the collaborators of the default pipeline that
// do not come from config.Config.
type DefaultPipelineConfig struct {
	// Recorder stores the run when set.
	Recorder Recorder

	// Progress receives progress lines when set.
	Progress io.Writer

	// Logger is passed to every step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineRecorder records each run with r.
func WithPipelineRecorder(r Recorder) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Recorder = r
	}
}

// WithPipelineProgress prints crawl progress to w.
func WithPipelineProgress(w io.Writer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Progress = w
	}
}

// WithPipelineLogger sets the logger used by the steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline builds the pipeline for seed from cfg: crawl, optional
// same-domain filter, archive, optional group, and a final record step when
// a recorder is configured. Settings for seed's host from the config file
// are applied.
func DefaultPipeline(cfg *config.Config, seed string, pipelineOpts []Option, opts ...DefaultPipelineOption) (*Pipeline, error) {
	dc := &DefaultPipelineConfig{}
	for _, opt := range opts {
		opt(dc)
	}
	if dc.Logger == nil {
		dc.Logger = slog.Default()
	}

	seedCfg, site := cfg.ForSeed(seed)

	fetchOpts := []fetch.Option{
		fetch.WithUserAgent(seedCfg.UserAgent),
		fetch.WithMaxBodySize(seedCfg.MaxBodySize),
		fetch.WithProxy(seedCfg.ProxyAddress),
		fetch.WithHeaders(site.Headers),
		fetch.WithLogger(dc.Logger),
	}

	crawlFetcher, err := fetch.New(append(fetchOpts, fetch.WithTimeout(seedCfg.CrawlTimeout))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl fetcher: %w", err)
	}
	archiveFetcher, err := fetch.New(append(fetchOpts, fetch.WithTimeout(seedCfg.ArchiveTimeout))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive fetcher: %w", err)
	}

	archiver, err := archive.New(archiveFetcher, seedCfg.OutputDir,
		archive.WithConcurrency(seedCfg.ArchiveConcurrency),
		archive.WithMapFileName(config.DefaultMapFile),
		archive.WithLogger(dc.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create archiver: %w", err)
	}

	crawlOpts := []CrawlStepOption{
		WithCrawlMaxDepth(seedCfg.MaxDepth),
		WithCrawlOutsideDepth(seedCfg.OutsideDepth),
		WithCrawlWorkers(seedCfg.Workers),
		WithCrawlMaxPages(seedCfg.MaxPages),
		WithCrawlLogger(dc.Logger),
	}
	if len(site.IgnorePatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlFollowPatterns(site.FollowPatterns))
	}
	if dc.Progress != nil {
		crawlOpts = append(crawlOpts, WithCrawlProgress(dc.Progress))
	}

	p := New(pipelineOpts...)
	p.AddStep(NewCrawlStep(crawlFetcher, crawlOpts...))
	if seedCfg.SameDomain {
		p.AddStep(NewSameDomainFilterStep(dc.Logger))
	}
	p.AddStep(NewArchiveStep(archiver))
	if seedCfg.Group {
		combiner := group.NewCombiner(seedCfg.OutputDir, seedCfg.CombinedDir,
			group.WithCombinerLogger(dc.Logger),
		)
		p.AddStep(NewGroupStep(combiner, "", seedCfg.Parents, dc.Logger))
	}
	if dc.Recorder != nil {
		p.AddFinalStep(NewRecordStep(dc.Recorder))
	}

	return p, nil
}
