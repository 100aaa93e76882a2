// Package main provides the entry point for the sitegrab CLI.
//
// sitegrab crawls a web site from a seed URL with separate depth limits for
// links inside and outside the seed's site, saves the pages as local files
// and can merge them into combined documents grouped by URL path.
//
// Usage:
//
//	sitegrab crawl <seed-url>
//	sitegrab group -m downloaded_html/url_map.tsv
//	sitegrab chunk -d downloaded_html
//
// See --help for all available options.
package main

// main is the entry point for sitegrab.
func main() {
	Execute()
}
