// Package pipeline runs the processing steps for one seed in sequence.
//
// A seed goes through crawl, optional same-domain filtering, archive,
// optional grouping and finally recording in the run history. Each stage is a
// Step that reads and extends the shared model.Run.
//
// Final steps run even when an earlier step failed or the context was
// cancelled, so partial runs are still recorded.
//
// BatchProcessor crawls several seeds concurrently with errgroup.
package pipeline
