package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/group"
	"github.com/nao1215/sitegrab/internal/model"
)

// newTestSite serves a seed page linking to /a and /b, and /a linking to /c.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/":  `<html><head><title>Home</title></head><body><a href="/a">a</a> <a href="/b">b</a></body></html>`,
		"/a": `<html><head><title>A</title></head><body><a href="/c">c</a></body></html>`,
		"/b": `<html><head><title>B</title></head><body>leaf</body></html>`,
		"/c": `<html><head><title>C</title></head><body>deep</body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// emptyConfigFile writes a config file without site settings so that a
// .sitegrab in the home directory does not leak into the tests.
func emptyConfigFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sitegrab.yaml")
	if err := os.WriteFile(path, []byte("defaults: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// executeRoot runs the root command with args and returns stdout and stderr.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// TestNewCrawlCmd tests the crawl command flags.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	defaults := map[string]string{
		"depth":               "2",
		"outside-depth":       "1",
		"output":              config.DefaultOutputDir,
		"workers":             "1",
		"archive-concurrency": "4",
		"parents":             "1",
		"combined-output":     config.DefaultCombinedDir,
		"timeout":             "3s",
		"archive-timeout":     "10s",
		"report":              config.ReportTable,
		"batch":               "1",
		"max-pages":           "0",
		"max-body-size":       "5.0 MiB",
	}
	for name, want := range defaults {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Fatalf("expected %s flag", name)
			}
			if flag.DefValue != want {
				t.Errorf("%s default = %q, want %q", name, flag.DefValue, want)
			}
		})
	}

	t.Run("shorthands", func(t *testing.T) {
		t.Parallel()
		for name, short := range map[string]string{
			"depth": "d", "output": "o", "quiet": "q", "timeout": "t",
			"workers": "w", "batch": "b", "config": "c",
		} {
			flag := cmd.Flags().Lookup(name)
			if flag == nil || flag.Shorthand != short {
				t.Errorf("expected -%s for --%s", short, name)
			}
		}
	})
}

// TestCrawlCmdConfigErrors tests that invalid invocations fail before any
// request is made.
func TestCrawlCmdConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("no seed", func(t *testing.T) {
		t.Parallel()
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t))
		if !errors.Is(err, config.ErrNoSeed) {
			t.Errorf("expected ErrNoSeed, got %v", err)
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t), "ftp://example.com")
		if !errors.Is(err, config.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})

	t.Run("invalid depth", func(t *testing.T) {
		t.Parallel()
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t), "-d", "0", "https://example.com")
		if !errors.Is(err, config.ErrInvalidDepth) {
			t.Errorf("expected ErrInvalidDepth, got %v", err)
		}
		if err != nil && !strings.HasPrefix(err.Error(), "configuration error") {
			t.Errorf("expected configuration error prefix, got %v", err)
		}
	})

	t.Run("invalid report format", func(t *testing.T) {
		t.Parallel()
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t), "--report", "xml", "https://example.com")
		if !errors.Is(err, config.ErrInvalidReportFormat) {
			t.Errorf("expected ErrInvalidReportFormat, got %v", err)
		}
	})

	t.Run("invalid max body size", func(t *testing.T) {
		t.Parallel()
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t), "--max-body-size", "lots", "https://example.com")
		if !errors.Is(err, config.ErrInvalidMaxBodySize) {
			t.Errorf("expected ErrInvalidMaxBodySize, got %v", err)
		}
		if err != nil && !strings.HasPrefix(err.Error(), "configuration error") {
			t.Errorf("expected configuration error prefix, got %v", err)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		_, _, err := executeRoot(t, "crawl", "--no-db", "-c", missing, "https://example.com")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestCrawlCmd tests complete crawls against a local site.
func TestCrawlCmd(t *testing.T) {
	t.Parallel()

	t.Run("archives every discovered page", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		outDir := filepath.Join(t.TempDir(), "out")

		stdout, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t), "-o", outDir, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mappings, err := group.ReadMap(filepath.Join(outDir, config.DefaultMapFile), nil)
		if err != nil {
			t.Fatalf("failed to read map: %v", err)
		}
		if len(mappings) != 4 {
			t.Errorf("expected 4 archived pages, got %d: %v", len(mappings), mappings)
		}
		for _, m := range mappings {
			if _, err := os.Stat(filepath.Join(outDir, m.FileName)); err != nil {
				t.Errorf("file for %s missing: %v", m.URL, err)
			}
		}

		if !strings.Contains(stdout, "Seed:") || !strings.Contains(stdout, srv.URL) {
			t.Errorf("expected table report on stdout, got: %s", stdout)
		}
	})

	t.Run("quiet prints nothing", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		stdout, _, err := executeRoot(t, "crawl", "--no-db", "-q", "-c", emptyConfigFile(t),
			"-o", t.TempDir(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected no output, got: %s", stdout)
		}
	})

	t.Run("depth limits fetching", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		reportFile := filepath.Join(t.TempDir(), "reports", "run.json")

		_, _, err := executeRoot(t, "crawl", "--no-db", "-q", "-c", emptyConfigFile(t),
			"-d", "1", "-o", t.TempDir(), "--report", "json", "--report-file", reportFile, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportFile) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		var got struct {
			Seed  string           `json:"seed"`
			Stats model.CrawlStats `json:"stats"`
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if got.Stats.Fetched != 1 {
			t.Errorf("expected only the seed to be fetched, got %d", got.Stats.Fetched)
		}
		if got.Stats.Discovered != 3 || got.Stats.DepthExceeded != 2 {
			t.Errorf("unexpected stats: %+v", got.Stats)
		}

		info, err := os.Stat(reportFile)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}
	})

	t.Run("records the run in the database", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		dbDir := t.TempDir()

		_, _, err := executeRoot(t, "crawl", "-q", "-c", emptyConfigFile(t),
			"--db-dir", dbDir, "-o", t.TempDir(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), srv.URL, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(runs))
		}
		if runs[0].Saved != 4 {
			t.Errorf("expected 4 saved pages, got %d", runs[0].Saved)
		}
	})

	t.Run("groups pages after archiving", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		combined := filepath.Join(t.TempDir(), "combined")

		_, _, err := executeRoot(t, "crawl", "--no-db", "-q", "-c", emptyConfigFile(t),
			"-o", t.TempDir(), "--group", "--parents", "1", "--combined-output", combined, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(combined, group.OutputName(""))) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("root group not written: %v", err)
		}
		if !strings.Contains(string(data), "<!-- START OF "+srv.URL+"/a -->") {
			t.Errorf("combined document missing page /a: %s", data)
		}
	})

	t.Run("several seeds use a batch report", func(t *testing.T) {
		t.Parallel()

		first := newTestSite(t)
		second := newTestSite(t)

		stdout, _, err := executeRoot(t, "crawl", "--no-db", "-c", emptyConfigFile(t),
			"-b", "2", "-o", t.TempDir(), "--report", "markdown", first.URL, second.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "## Batch Summary") {
			t.Errorf("expected batch summary, got: %s", stdout)
		}
	})
}

// TestRunsError tests the exit error built from failed runs.
func TestRunsError(t *testing.T) {
	t.Parallel()

	ok := model.NewRun("https://ok.example")
	failed := model.NewRun("https://bad.example")
	failed.Error = errors.New("boom")
	cancelled := model.NewRun("https://stopped.example")
	cancelled.Error = context.Canceled
	cancelled.Cancelled = true

	if err := runsError([]*model.Run{ok, cancelled}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := runsError([]*model.Run{ok, failed})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "1 of 2 seeds failed") || !strings.Contains(err.Error(), "bad.example") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestBuildConfigMaxBodySize tests that --max-body-size accepts
// human-readable sizes.
func TestBuildConfigMaxBodySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  int64
	}{
		{value: "64KiB", want: 64 * 1024},
		{value: "20MB", want: 20 * 1000 * 1000},
		{value: "1048576", want: 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()

			cmd := NewCrawlCmd()
			if err := cmd.Flags().Set("max-body-size", tt.value); err != nil {
				t.Fatal(err)
			}
			if err := cmd.Flags().Set("config", emptyConfigFile(t)); err != nil {
				t.Fatal(err)
			}

			cfg, err := buildConfig(cmd, []string{"https://example.com"})
			if err != nil {
				t.Fatalf("buildConfig() error = %v", err)
			}
			if cfg.MaxBodySize != tt.want {
				t.Errorf("MaxBodySize = %d, want %d", cfg.MaxBodySize, tt.want)
			}
		})
	}
}
