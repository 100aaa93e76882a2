// Package group merges archived pages into combined documents.
//
// GroupByPrefix buckets the entries of the archive's URL map by URL path
// with the last N segments removed, and a Combiner writes one document per
// bucket with each page wrapped in START/END comments naming its URL. A
// Chunker instead concatenates every page of a directory into pieces of
// bounded size.
package group
