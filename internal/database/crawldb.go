package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitegrab/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "sitegrab.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB stores run history.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; batch crawls share this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		domain TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		max_depth INTEGER NOT NULL,
		outside_depth INTEGER NOT NULL,
		discovered INTEGER DEFAULT 0,
		fetched INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		depth_exceeded INTEGER DEFAULT 0,
		saved INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		archive_failed INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		error TEXT,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		class TEXT NOT NULL,
		state TEXT NOT NULL,
		parent TEXT,
		error TEXT,
		file_name TEXT,
		archive_status TEXT,
		title TEXT,
		digest TEXT,
		bytes INTEGER DEFAULT 0,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is one row of the runs table without the JSON body.
type RunSummary struct {
	ID            int64
	Seed          string
	Domain        string
	StartedAt     time.Time
	FinishedAt    time.Time
	MaxDepth      int
	OutsideDepth  int
	Discovered    int
	Fetched       int
	Failed        int
	DepthExceeded int
	Saved         int
	Skipped       int
	ArchiveFailed int
	Cancelled     bool
	Error         string
}

// PageRecord is one row of the pages table.
type PageRecord struct {
	URL           string
	Depth         int
	Class         string
	State         string
	Parent        string
	Error         string
	FileName      string
	ArchiveStatus string
	Title         string
	Digest        string
	Bytes         int
}

// SaveRun stores run and its pages in one transaction and sets run.ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	if run.Error != nil && run.ErrorMessage == "" {
		run.ErrorMessage = run.Error.Error()
	}

	runJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}

	var saved, skipped, archiveFailed int
	archived := make(map[string]model.ArchiveEntry)
	if run.Archive != nil {
		saved, skipped, archiveFailed = run.Archive.Saved, run.Archive.Skipped, run.Archive.Failed
		for _, e := range run.Archive.Entries {
			archived[e.URL] = e
		}
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (seed, domain, started_at, finished_at, max_depth, outside_depth,
		discovered, fetched, failed, depth_exceeded, saved, skipped, archive_failed,
		cancelled, error, run_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Seed,
		run.Domain,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.MaxDepth,
		run.OutsideDepth,
		run.Stats.Discovered,
		run.Stats.Fetched,
		run.Stats.Failed,
		run.Stats.DepthExceeded,
		saved,
		skipped,
		archiveFailed,
		run.Cancelled,
		run.ErrorMessage,
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, depth, class, state, parent, error,
		file_name, archive_status, title, digest, bytes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range run.Outcomes {
		a := archived[o.URL]
		if _, err := stmt.ExecContext(ctx,
			id, o.URL, o.Depth, o.Class.String(), o.State.String(), o.Parent, o.Error,
			a.FileName, string(a.Status), a.Title, a.Digest, a.Bytes,
		); err != nil {
			return 0, fmt.Errorf("failed to save page %s: %w", o.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return id, nil
}

// ListSeeds returns every seed with at least one recorded run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// ListRuns returns the runs for seed, newest first. An empty seed lists
// every run. limit <= 0 means no limit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, seed, domain, started_at, finished_at, max_depth, outside_depth,
		discovered, fetched, failed, depth_exceeded, saved, skipped, archive_failed,
		cancelled, COALESCE(error, '')
	FROM runs
	WHERE (? = '' OR seed = ?)
	ORDER BY started_at DESC, id DESC
	`
	args := []any{seed, seed}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedAt, finishedAt string
		if err := rows.Scan(&s.ID, &s.Seed, &s.Domain, &startedAt, &finishedAt,
			&s.MaxDepth, &s.OutsideDepth, &s.Discovered, &s.Fetched, &s.Failed,
			&s.DepthExceeded, &s.Saved, &s.Skipped, &s.ArchiveFailed, &s.Cancelled, &s.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.FinishedAt = parseTimestamp(finishedAt)
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// GetRun returns the full record of a run.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	var runJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	run.ID = id

	return &run, nil
}

// GetPages returns the pages of a run ordered by URL.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID int64) ([]PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, depth, class, state, COALESCE(parent, ''), COALESCE(error, ''),
		COALESCE(file_name, ''), COALESCE(archive_status, ''), COALESCE(title, ''),
		COALESCE(digest, ''), bytes
	FROM pages
	WHERE run_id = ?
	ORDER BY url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		if err := rows.Scan(&p.URL, &p.Depth, &p.Class, &p.State, &p.Parent, &p.Error,
			&p.FileName, &p.ArchiveStatus, &p.Title, &p.Digest, &p.Bytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// DeleteRunsBefore removes runs started before t and returns how many were
// deleted.
func (cdb *CrawlDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	cutoff := formatTimestamp(t)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pages WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete pages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02 15:04:05.000000"

// formatTimestamp renders t in UTC with timestampLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are the layouts SQLite may hand back, most specific first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the first matching layout, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
