package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/sitegrab/internal/model"
)

// mapLocks holds one mutex per map file path. Archivers of concurrent seeds
// that share an output directory update the same map.
var mapLocks sync.Map

// lockMap locks the map at path and returns the unlock function.
func lockMap(path string) func() {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	v, _ := mapLocks.LoadOrStore(key, &sync.Mutex{})
	mu, _ := v.(*sync.Mutex) //nolint:errcheck // only *sync.Mutex is stored
	mu.Lock()
	return mu.Unlock
}

// WriteMap writes one "URL<TAB>filename" line per entry to path, replacing
// the file atomically.
func WriteMap(path string, entries []model.ArchiveEntry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s\t%s\n", e.URL, e.FileName)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}
	return nil
}

// MergeMap folds entries into the map at path and returns the merged lines.
//
// Lines already in the map are kept while their file still exists in dir,
// so seeds archived into the same directory accumulate. An entry for a URL
// already listed replaces its line. The result is sorted by URL.
func MergeMap(path, dir string, entries []model.ArchiveEntry) ([]model.ArchiveEntry, error) {
	unlock := lockMap(path)
	defer unlock()

	existing, err := readMap(path)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]model.ArchiveEntry, len(existing)+len(entries))
	for _, e := range existing {
		if _, err := os.Stat(filepath.Join(dir, filepath.Base(e.FileName))); err != nil {
			continue
		}
		byURL[e.URL] = e
	}
	for _, e := range entries {
		byURL[e.URL] = e
	}

	merged := make([]model.ArchiveEntry, 0, len(byURL))
	for _, e := range byURL {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].URL < merged[j].URL
	})

	if err := WriteMap(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// readMap parses an existing map. A missing file is an empty map and
// malformed lines are ignored.
func readMap(path string) ([]model.ArchiveEntry, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from user-provided output directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	defer f.Close()

	var entries []model.ArchiveEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		entries = append(entries, model.ArchiveEntry{URL: parts[0], FileName: parts[1], Status: model.ArchiveExists})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	return entries, nil
}
