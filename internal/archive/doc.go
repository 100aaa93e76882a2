// Package archive saves crawled pages as local files.
//
// Every URL maps to one deterministic file name made only of
// [A-Za-z0-9_.-] characters (see FileName). Archiving is idempotent: a URL
// whose file already exists is skipped, so running the archiver twice over
// the same directory fetches nothing the second time. URLs whose path ends
// in an image extension are never downloaded.
//
// After each run the archiver writes a tab-separated log that maps every
// archived URL to its file name. The grouping step reads that log.
package archive
