// Package report writes run summaries.
//
// This package contains writers for different output formats:
//   - TableWriter: aligned text tables for terminal display
//   - MarkdownWriter: Markdown documents for sharing
//   - JSONWriter: structured JSON output for tool integration
//
// Writers implement the Writer interface, so they can be used
// interchangeably and combined with MultiWriter.
package report
