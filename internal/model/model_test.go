package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestClassificationString tests the String method of Classification.
func TestClassificationString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		class    Classification
		expected string
	}{
		{ClassInside, "inside"},
		{ClassOutside, "outside"},
		{Classification(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.class.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.class.String(), tc.expected)
			}
		})
	}
}

// TestClassificationText tests text round trips used by JSON encoding.
func TestClassificationText(t *testing.T) {
	t.Parallel()

	t.Run("known names parse", func(t *testing.T) {
		t.Parallel()

		var c Classification
		if err := c.UnmarshalText([]byte("outside")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c != ClassOutside {
			t.Errorf("expected ClassOutside, got %v", c)
		}
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		t.Parallel()

		var c Classification
		if err := c.UnmarshalText([]byte("sideways")); err == nil {
			t.Error("expected error for unknown classification")
		}
	})
}

// TestClassificationResultAllows tests depth ceiling checks.
func TestClassificationResultAllows(t *testing.T) {
	t.Parallel()

	r := ClassificationResult{Class: ClassOutside, Ceiling: 1}

	if !r.Allows(1) {
		t.Error("depth equal to ceiling should be allowed")
	}
	if r.Allows(2) {
		t.Error("depth above ceiling should not be allowed")
	}
}

// TestEntryState tests state names and terminal detection.
func TestEntryState(t *testing.T) {
	t.Parallel()

	t.Run("terminal states", func(t *testing.T) {
		t.Parallel()

		terminal := map[EntryState]bool{
			StatePending:       false,
			StateFetching:      false,
			StateExpanded:      true,
			StateFailed:        true,
			StateDepthExceeded: true,
		}
		for state, want := range terminal {
			if state.Terminal() != want {
				t.Errorf("%s: Terminal() = %v, expected %v", state, state.Terminal(), want)
			}
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()
		if EntryState(99).String() != "UNKNOWN" {
			t.Errorf("expected UNKNOWN, got %q", EntryState(99).String())
		}
	})

	t.Run("text round trip", func(t *testing.T) {
		t.Parallel()

		text, err := StateDepthExceeded.MarshalText()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var s EntryState
		if err := s.UnmarshalText(text); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s != StateDepthExceeded {
			t.Errorf("expected DEPTH_EXCEEDED, got %s", s)
		}
	})
}

// TestArchiveResult tests counters and the URL-to-file mapping.
func TestArchiveResult(t *testing.T) {
	t.Parallel()

	r := &ArchiveResult{}
	r.Add(ArchiveEntry{URL: "https://b.example/", FileName: "b.example_index.html", Status: ArchiveSaved})
	r.Add(ArchiveEntry{URL: "https://a.example/", FileName: "a.example_index.html", Status: ArchiveExists})
	r.Add(ArchiveEntry{URL: "https://a.example/logo.png", Status: ArchiveSkippedImage})
	r.Add(ArchiveEntry{URL: "https://c.example/", FileName: "c.example_index.html", Status: ArchiveFailed})
	r.Sort()

	if r.Saved != 1 || r.Skipped != 2 || r.Failed != 1 {
		t.Errorf("unexpected counters: saved=%d skipped=%d failed=%d", r.Saved, r.Skipped, r.Failed)
	}

	if r.Entries[0].URL != "https://a.example/" {
		t.Errorf("expected entries sorted by URL, first is %q", r.Entries[0].URL)
	}

	mapping := r.Mapping()
	if len(mapping) != 2 {
		t.Fatalf("expected 2 mapped entries, got %d", len(mapping))
	}
	for _, e := range mapping {
		if !e.HasFile() {
			t.Errorf("mapping contains entry without file: %+v", e)
		}
	}
}

// TestRun tests Run helpers and JSON output.
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("new run is empty", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com")
		if r.Seed != "https://example.com" {
			t.Errorf("unexpected seed %q", r.Seed)
		}
		if r.URLs == nil || len(r.URLs) != 0 {
			t.Error("expected empty non-nil URLs")
		}
		if r.Duration() != 0 {
			t.Error("unfinished run should have zero duration")
		}
	})

	t.Run("duration after finish", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com")
		r.FinishedAt = r.StartedAt.Add(3 * time.Second)
		if r.Duration() != 3*time.Second {
			t.Errorf("expected 3s, got %v", r.Duration())
		}
	})

	t.Run("counts by class", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com")
		r.Outcomes = []PageOutcome{
			{URL: "https://example.com", Class: ClassInside},
			{URL: "https://example.com/a", Class: ClassInside},
			{URL: "https://other.org/x", Class: ClassOutside},
		}
		if got := r.CountByClass(ClassInside); got != 2 {
			t.Errorf("expected 2 inside, got %d", got)
		}
		if got := r.CountByClass(ClassOutside); got != 1 {
			t.Errorf("expected 1 outside, got %d", got)
		}
	})

	t.Run("json uses state and class names", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com")
		r.Outcomes = []PageOutcome{{URL: "https://other.org/x", Class: ClassOutside, State: StateDepthExceeded}}

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		out := string(data)
		if !strings.Contains(out, `"class":"outside"`) {
			t.Errorf("expected class name in JSON, got %s", out)
		}
		if !strings.Contains(out, `"state":"DEPTH_EXCEEDED"`) {
			t.Errorf("expected state name in JSON, got %s", out)
		}
	})
}
