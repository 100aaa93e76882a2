// Package model defines the data structures shared by the crawl, archive,
// grouping and reporting packages.
//
// This package contains the following main types:
//   - ClassificationResult: inside/outside tag plus the applicable depth ceiling
//   - PageOutcome: the terminal state a frontier entry reached during a crawl
//   - ArchiveResult: counts and per-URL entries produced by the archive step
//   - Run: the record a pipeline accumulates for one seed URL
//
// Models live in their own package so that crawler, archive, database and
// report can share them without import cycles. All of them serialize to JSON
// for report output and database storage.
package model
