package group

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultChunkSize is the maximum size of one piece in bytes.
	DefaultChunkSize = 5 * 1024 * 1024

	// DefaultChunkPrefix names the pieces "combined_1.html", "combined_2.html", ...
	DefaultChunkPrefix = "combined"

	chunkSeparator = "\n\n"
)

// Chunker concatenates the .html files of a directory into pieces no larger
// than a byte budget.
type Chunker struct {
	inputDir  string
	outputDir string
	prefix    string
	maxSize   int64
	logger    *slog.Logger
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkPrefix sets the piece name prefix.
func WithChunkPrefix(prefix string) ChunkerOption {
	return func(c *Chunker) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithChunkOutputDir sets where pieces are written. Defaults to the input
// directory.
func WithChunkOutputDir(dir string) ChunkerOption {
	return func(c *Chunker) {
		if dir != "" {
			c.outputDir = dir
		}
	}
}

// WithMaxChunkSize sets the piece size budget in bytes.
func WithMaxChunkSize(size int64) ChunkerOption {
	return func(c *Chunker) {
		c.maxSize = size
	}
}

// WithChunkerLogger sets a custom logger.
func WithChunkerLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) {
		c.logger = logger
	}
}

// NewChunker creates a Chunker over inputDir.
func NewChunker(inputDir string, opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		inputDir:  inputDir,
		outputDir: inputDir,
		prefix:    DefaultChunkPrefix,
		maxSize:   DefaultChunkSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Chunk writes the pieces and returns their paths.
//
// Files are read in name order and joined with a blank line. A piece is
// closed before the next file would push it past the budget. A single file
// larger than the budget is skipped with a warning. Pieces from an earlier
// run with the same prefix are not read back in.
func (c *Chunker) Chunk() ([]string, error) {
	if c.maxSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if err := os.MkdirAll(c.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputDir, c.outputDir, err)
	}

	files, err := filepath.Glob(filepath.Join(c.inputDir, "*.html"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	ownPiece := regexp.MustCompile(`^` + regexp.QuoteMeta(c.prefix) + `_[0-9]+\.html$`)

	written := make([]string, 0)
	current := make([]string, 0)
	var currentSize int64

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		name := filepath.Join(c.outputDir, fmt.Sprintf("%s_%d.html", c.prefix, len(written)+1))
		if err := os.WriteFile(name, []byte(strings.Join(current, chunkSeparator)), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		c.logger.Info("wrote piece", "path", name, "bytes", currentSize, "files", len(current))
		written = append(written, name)
		current = current[:0]
		currentSize = 0
		return nil
	}

	for _, file := range files {
		if ownPiece.MatchString(filepath.Base(file)) {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			c.logger.Warn("cannot stat file, skipping", "path", file, "error", err)
			continue
		}
		if info.Size() > c.maxSize {
			c.logger.Warn("file exceeds piece size, skipping", "path", file, "bytes", info.Size(), "limit", c.maxSize)
			continue
		}

		data, err := os.ReadFile(file) //nolint:gosec // file comes from a directory listing
		if err != nil {
			c.logger.Warn("cannot read file, skipping", "path", file, "error", err)
			continue
		}

		size := int64(len(data))
		var sep int64
		if len(current) > 0 {
			sep = int64(len(chunkSeparator))
		}
		if currentSize+sep+size > c.maxSize {
			if err := flush(); err != nil {
				return written, err
			}
			sep = 0
		}

		current = append(current, string(data))
		currentSize += sep + size
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
