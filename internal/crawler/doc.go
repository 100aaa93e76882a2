// Package crawler implements the crawl traversal engine.
//
// # Architecture
//
// The package is built from three parts:
//
//   - Policy: classifies a URL as inside or outside the seed's site and
//     supplies the depth ceiling for that classification
//   - Extractor: resolves the href of every anchor element in a page against
//     the page URL
//   - Engine: owns the visited set and the frontier, asks a Fetcher for each
//     page, runs the Extractor and enqueues new links one hop deeper
//
// The Engine expands an explicit work-list instead of recursing, so very deep
// sites cannot exhaust the goroutine stack. The work-list is a stack and
// children are pushed in reverse, which gives the same depth-first visit
// order as a recursive crawl when a single worker is used.
//
// # Inside and outside
//
// A URL is inside when its authority (host and optional port, exactly as
// written) equals the authority of the seed URL. Every other URL is outside.
// There is no path-prefix matching: https://example.com/blog is inside for
// the seed https://example.com/docs.
//
// # Depth
//
// The seed is at depth 1 and every link hop adds one. An entry deeper than
// its classification's ceiling is recorded as DEPTH_EXCEEDED and is neither
// fetched nor expanded, but it stays in the visited set and therefore in the
// crawl result.
//
// # Concurrency
//
// WithWorkers enables parallel expansion. The visited set is the only
// synchronization point between workers: a test-and-insert decides which
// worker owns a URL, so no URL is fetched twice. Locks never span a fetch.
//
// # Usage
//
//	engine := crawler.NewEngine(fetcher,
//	    crawler.WithMaxDepth(2),
//	    crawler.WithOutsideDepth(1),
//	)
//	result, err := engine.Run(ctx, "https://example.com/docs/")
package crawler
