package group

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Mapping is one line of the URL map: a URL and the file it was saved to.
type Mapping struct {
	URL      string
	FileName string
}

// ReadMap parses a URL map written by the archiver.
//
// Each non-blank line must hold exactly two tab-separated fields. Other lines
// are skipped with a warning. A file that cannot be read is an error.
func ReadMap(path string, logger *slog.Logger) ([]Mapping, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapNotReadable, err)
	}
	defer f.Close()

	mappings := make([]Mapping, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			logger.Warn("skipping malformed map line", "path", path, "line", lineNo, "content", line)
			continue
		}
		mappings = append(mappings, Mapping{URL: parts[0], FileName: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapNotReadable, err)
	}

	return mappings, nil
}
